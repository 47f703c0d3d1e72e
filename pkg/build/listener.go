package build

import "time"

// ResultType is the outcome of a test or suite.
type ResultType int

const (
	Success ResultType = iota
	Failure
	Skipped
)

func (r ResultType) String() string {
	switch r {
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	case Skipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// TestDescriptor identifies a suite or a test case. The task's root suite is
// the only descriptor without a parent.
type TestDescriptor struct {
	Name      string
	ClassName string
	Parent    *TestDescriptor
}

// IsComposite reports whether the descriptor is a suite. Suites carry no
// class name.
func (d *TestDescriptor) IsComposite() bool {
	return d.ClassName == ""
}

// TestResult carries the counts for a finished test or suite. For a single
// test case exactly one of the three outcome counts is 1.
type TestResult struct {
	Type                ResultType
	TestCount           int
	SuccessfulTestCount int
	FailedTestCount     int
	SkippedTestCount    int
	StartTime           time.Time
	EndTime             time.Time
}

// Add folds other's counts into r and widens its time range.
func (r *TestResult) Add(other TestResult) {
	r.TestCount += other.TestCount
	r.SuccessfulTestCount += other.SuccessfulTestCount
	r.FailedTestCount += other.FailedTestCount
	r.SkippedTestCount += other.SkippedTestCount
	if r.StartTime.IsZero() || (!other.StartTime.IsZero() && other.StartTime.Before(r.StartTime)) {
		r.StartTime = other.StartTime
	}
	if other.EndTime.After(r.EndTime) {
		r.EndTime = other.EndTime
	}
	if other.Type == Failure || r.FailedTestCount > 0 {
		r.Type = Failure
	}
}

// TestListener observes the test events of one task.
type TestListener interface {
	BeforeSuite(suite *TestDescriptor)
	AfterSuite(suite *TestDescriptor, result TestResult)
	BeforeTest(test *TestDescriptor)
	AfterTest(test *TestDescriptor, result TestResult)
}

type broadcast []TestListener

func (b broadcast) BeforeSuite(suite *TestDescriptor) {
	for _, l := range b {
		l.BeforeSuite(suite)
	}
}

func (b broadcast) AfterSuite(suite *TestDescriptor, result TestResult) {
	for _, l := range b {
		l.AfterSuite(suite, result)
	}
}

func (b broadcast) BeforeTest(test *TestDescriptor) {
	for _, l := range b {
		l.BeforeTest(test)
	}
}

func (b broadcast) AfterTest(test *TestDescriptor, result TestResult) {
	for _, l := range b {
		l.AfterTest(test, result)
	}
}
