// Package report writes the outcome of a data-driven test run as JUnit XML or as a spreadsheet.
package report

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/etf-validator/etf-contract-tests/ddt"
)

type Status string

const (
	Passed  Status = "PASSED"
	Failed  Status = "FAILED"
	Skipped Status = "SKIPPED"
)

// Entry is the flattened outcome of one case.
type Entry struct {
	Index        int
	Name         string
	TestID       string
	Input        string
	Request      string
	Expected     string
	Status       Status
	Duration     time.Duration
	TestObjectID string
	TestRunID    string
	ResultPath   string
	// Stage is the stage in which a failed case stopped.
	Stage   string
	Message string
}

// Entries converts the suite results, keeping the case order.
func Entries(results ddt.SuiteResults) []Entry {
	ret := make([]Entry, 0, len(results.Cases))
	for _, o := range results.Cases {
		e := Entry{
			Index:    o.Case.Index,
			Name:     o.Case.Name(),
			TestID:   o.Result.TestID.String(),
			Input:    filepath.Base(o.Case.InputPath),
			Request:  filepath.Base(o.Case.RequestTemplatePath),
			Expected: filepath.Base(o.Case.ExpectedPath),
			Status:   Passed,
			Duration: o.Result.Duration,
		}
		if o.Execution != nil {
			e.TestObjectID = o.Execution.TestObjectID
			e.TestRunID = o.Execution.TestRunID
			e.ResultPath = o.Execution.ResultPath
		}
		switch {
		case o.Result.Skipped:
			e.Status = Skipped
		case o.Result.Failed():
			e.Status = Failed
			var msgs []string
			for _, err := range o.Result.Errors {
				msgs = append(msgs, err.Error())
			}
			e.Message = strings.Join(msgs, "\n")
		}
		var ce *ddt.CaseError
		if errors.As(o.Err, &ce) {
			e.Stage = string(ce.Stage)
		}
		ret = append(ret, e)
	}
	return ret
}

type summary struct {
	total, failed, skipped int
}

func summarize(entries []Entry) summary {
	s := summary{total: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case Failed:
			s.failed++
		case Skipped:
			s.skipped++
		}
	}
	return s
}
