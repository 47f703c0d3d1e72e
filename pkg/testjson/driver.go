package testjson

import (
	"time"

	"github.com/dkoosis/tally/pkg/build"
)

// Driver replays the go test -json events of one task as TestListener
// callbacks. The task is the root suite, each package a child suite, and
// each test (including subtests) a case whose class name is the package.
//
// A Driver is not safe for concurrent use.
type Driver struct {
	l    build.TestListener
	root *build.TestDescriptor

	pkgs  map[string]*pkgSuite
	order []string
	total build.TestResult

	started  bool
	finished bool
}

type pkgSuite struct {
	desc   *build.TestDescriptor
	tests  map[string]*build.TestDescriptor
	result build.TestResult
	done   bool
}

// NewDriver returns a driver whose root suite is named name.
func NewDriver(name string, l build.TestListener) *Driver {
	return &Driver{
		l:    l,
		root: &build.TestDescriptor{Name: name},
		pkgs: make(map[string]*pkgSuite),
	}
}

// Start opens the root suite. Handle calls it implicitly.
func (d *Driver) Start() {
	if d.started {
		return
	}
	d.started = true
	d.l.BeforeSuite(d.root)
}

// Handle dispatches one event. Events without a package are ignored.
func (d *Driver) Handle(e TestEvent) {
	if d.finished || e.Package == "" {
		return
	}
	d.Start()
	pkg := d.pkg(e.Package)

	switch {
	case e.Action == ActionRun && e.Test != "":
		d.test(pkg, e.Test)
	case e.IsTerminal() && e.Test != "":
		desc := d.test(pkg, e.Test)
		res := caseResult(e)
		pkg.result.Add(res)
		d.l.AfterTest(desc, res)
	case e.IsTerminal():
		if e.Action == ActionFail {
			pkg.result.Type = build.Failure
		}
		d.closePkg(pkg, eventTimes(e))
	}
}

// Finish closes packages that never reported a result and then the root
// suite. Later calls return the same result without emitting events.
func (d *Driver) Finish() build.TestResult {
	if d.finished {
		return d.total
	}
	d.Start()
	for _, name := range d.order {
		d.closePkg(d.pkgs[name], build.TestResult{})
	}
	d.finished = true
	d.l.AfterSuite(d.root, d.total)
	return d.total
}

// Result returns the counts accumulated so far.
func (d *Driver) Result() build.TestResult {
	return d.total
}

func (d *Driver) pkg(name string) *pkgSuite {
	if p, ok := d.pkgs[name]; ok {
		return p
	}
	p := &pkgSuite{
		desc:  &build.TestDescriptor{Name: name, Parent: d.root},
		tests: make(map[string]*build.TestDescriptor),
	}
	d.pkgs[name] = p
	d.order = append(d.order, name)
	d.l.BeforeSuite(p.desc)
	return p
}

// test returns the descriptor for name, announcing it on first sight so every
// AfterTest is preceded by a BeforeTest.
func (d *Driver) test(pkg *pkgSuite, name string) *build.TestDescriptor {
	if desc, ok := pkg.tests[name]; ok {
		return desc
	}
	desc := &build.TestDescriptor{Name: name, ClassName: pkg.desc.Name, Parent: pkg.desc}
	pkg.tests[name] = desc
	d.l.BeforeTest(desc)
	return desc
}

func (d *Driver) closePkg(pkg *pkgSuite, times build.TestResult) {
	if pkg.done {
		return
	}
	pkg.done = true
	if !times.EndTime.IsZero() {
		pkg.result.StartTime = times.StartTime
		pkg.result.EndTime = times.EndTime
	}
	d.l.AfterSuite(pkg.desc, pkg.result)
	d.total.Add(pkg.result)
}

func caseResult(e TestEvent) build.TestResult {
	res := eventTimes(e)
	res.TestCount = 1
	switch e.Action {
	case ActionPass:
		res.Type = build.Success
		res.SuccessfulTestCount = 1
	case ActionFail:
		res.Type = build.Failure
		res.FailedTestCount = 1
	case ActionSkip:
		res.Type = build.Skipped
		res.SkippedTestCount = 1
	}
	return res
}

func eventTimes(e TestEvent) build.TestResult {
	if e.Time.IsZero() {
		return build.TestResult{}
	}
	elapsed := time.Duration(e.Elapsed * float64(time.Second))
	return build.TestResult{StartTime: e.Time.Add(-elapsed), EndTime: e.Time}
}
