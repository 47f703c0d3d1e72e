package failures

import (
	"sync"

	"github.com/dkoosis/tally/pkg/build"
)

// Collector records the failed cases of one task and hands them to a
// Recorder when the task's root suite finishes.
type Collector struct {
	taskPath string
	recorder Recorder

	mu       sync.Mutex
	failures Batch
}

var _ build.TestListener = (*Collector)(nil)

// NewCollector returns a collector that submits under taskPath.
func NewCollector(taskPath string, recorder Recorder) *Collector {
	return &Collector{taskPath: taskPath, recorder: recorder}
}

func (c *Collector) BeforeSuite(*build.TestDescriptor) {}

func (c *Collector) BeforeTest(*build.TestDescriptor) {}

// AfterTest records a failed test case. Suites that reach it, such as a
// package reported through a test-level callback, are not cases and are
// skipped.
func (c *Collector) AfterTest(test *build.TestDescriptor, result build.TestResult) {
	if test.IsComposite() || result.FailedTestCount <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, TestCase{ClassName: test.ClassName, Name: test.Name})
}

// AfterSuite submits the sorted failures once the task's root suite is done.
// Nested suites and tasks without failures submit nothing.
func (c *Collector) AfterSuite(suite *build.TestDescriptor, _ build.TestResult) {
	if suite.Parent != nil {
		return
	}
	c.mu.Lock()
	if len(c.failures) == 0 {
		c.mu.Unlock()
		return
	}
	batch := append(Batch(nil), c.failures...)
	c.mu.Unlock()

	sortBatch(batch)
	c.recorder.AddFailures(c.taskPath, batch)
}
