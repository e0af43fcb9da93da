package framework

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

type environment struct {
	results    Results
	testLogger TestLogger
	filter     Filter
	lock       sync.Mutex
}

// Context is the state of a single test or group of tests. It is similar to Go's *testing.T,
// and implements the same Errorf/FailNow methods so that it can be used with the assert and
// require packages.
//
// A Context is owned by the goroutine that runs its action. Run may be called concurrently on
// the same parent Context from several goroutines; each subtest gets its own Context.
type Context struct {
	env         *environment
	id          TestID
	debugLogger CapturingLogger
	failed      bool
	skipped     bool
	skipReason  string
	errors      []error
}

// Run executes the top-level action of a test run and returns the accumulated results.
func Run(
	filter Filter,
	testLogger TestLogger,
	action func(*Context),
) Results {
	if testLogger == nil {
		testLogger = nullTestLogger{}
	}
	env := &environment{
		filter:     filter,
		testLogger: testLogger,
	}
	c := &Context{env: env}
	c.run(action)
	return env.results
}

func (c *Context) run(action func(*Context)) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			if c.skipped {
				return
			}
			c.failed = true
			var addError error
			if _, ok := r.(*Context); ok {
				if len(c.errors) == 0 {
					addError = errors.New("test failed with no failure message")
				}
			} else {
				addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
			}
			if addError != nil {
				c.errors = append(c.errors, addError)
				c.env.testLogger.TestError(c.id, addError)
			}
		}
		if len(c.id.Path) == 0 {
			return // the root context only groups its subtests
		}
		result := TestResult{TestID: c.id, Errors: c.errors, Duration: time.Since(start)}
		c.env.lock.Lock()
		c.env.results.Tests = append(c.env.results.Tests, result)
		if c.failed {
			c.env.results.Failures = append(c.env.results.Failures, result)
		}
		c.env.lock.Unlock()
	}()

	action(c)
}

func (c *Context) ID() TestID {
	return c.id
}

// Run runs a subtest. It returns the result of the subtest, which is also added to the
// overall Results.
func (c *Context) Run(name string, action func(*Context)) TestResult {
	id := c.id.Plus(name)

	c.env.testLogger.TestStarted(id)
	if c.env.filter != nil && !c.env.filter(id) {
		c.env.testLogger.TestSkipped(id, "excluded by filter parameters")
		result := TestResult{TestID: id, Skipped: true}
		c.env.lock.Lock()
		c.env.results.Tests = append(c.env.results.Tests, result)
		c.env.lock.Unlock()
		return result
	}
	c1 := &Context{
		id:  id,
		env: c.env,
	}
	start := time.Now()
	c1.run(action)
	result := TestResult{TestID: id, Errors: c1.errors, Skipped: c1.skipped, Duration: time.Since(start)}
	if c1.skipped {
		c.env.testLogger.TestSkipped(id, c1.skipReason)
		c.env.lock.Lock()
		c.env.results.Tests = append(c.env.results.Tests, result)
		c.env.lock.Unlock()
	} else {
		c.env.testLogger.TestFinished(id, c1.failed, c1.debugLogger.Output())
	}
	return result
}

func (c *Context) Errorf(format string, args ...interface{}) {
	c.failed = true
	err := fmt.Errorf(format, args...)
	c.errors = append(c.errors, err)
	c.env.testLogger.TestError(c.id, err)
}

func (c *Context) Failed() bool {
	return c.failed
}

func (c *Context) FailNow() {
	panic(c)
}

func (c *Context) Skip() {
	c.skipped = true
	panic(c)
}

func (c *Context) SkipWithReason(reason string) {
	c.skipReason = reason
	c.Skip()
}

func (c *Context) Debug(message string, args ...interface{}) {
	c.debugLogger.Printf(message, args...)
}

func (c *Context) DebugLogger() Logger {
	return &c.debugLogger
}
