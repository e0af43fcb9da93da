package framework

import (
	"fmt"
	"strings"
	"time"
)

type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

type TestResult struct {
	TestID   TestID
	Errors   []error
	Skipped  bool
	Duration time.Duration
}

func (r TestResult) Failed() bool {
	return !r.Skipped && len(r.Errors) != 0
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Skipped returns the number of tests that did not run.
func (r Results) Skipped() int {
	n := 0
	for _, t := range r.Tests {
		if t.Skipped {
			n++
		}
	}
	return n
}

type TestID struct {
	Path []string
}

// Plus returns a new TestID with an additional path element. The receiver's path is copied,
// so sibling IDs created concurrently never share a backing array.
func (t TestID) Plus(name string) TestID {
	p := make([]string, 0, len(t.Path)+1)
	p = append(p, t.Path...)
	return TestID{Path: append(p, name)}
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

type TestFailure struct {
	ID  TestID
	Err error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.ID, f.Err)
}

// PrintResults writes a summary of all failed tests.
func PrintResults(results Results) {
	fmt.Printf("%d tests run, %d failed, %d skipped\n",
		len(results.Tests)-results.Skipped(), len(results.Failures), results.Skipped())
	for _, f := range results.Failures {
		fmt.Printf("FAILED: %s\n", f.TestID)
		for _, e := range f.Errors {
			for _, line := range strings.Split(e.Error(), "\n") {
				fmt.Printf("  %s\n", line)
			}
		}
	}
}
