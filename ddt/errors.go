package ddt

import (
	"fmt"
	"time"

	"github.com/etf-validator/etf-contract-tests/etf"
	"github.com/etf-validator/etf-contract-tests/xmlcompare"
)

// DiscoveryError means that no set of cases could be built from the fixture tree. It aborts
// the whole suite.
type DiscoveryError struct {
	Root    string
	Message string
	Err     error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot discover test cases in %s: %s: %s", e.Root, e.Message, e.Err)
	}
	return fmt.Sprintf("cannot discover test cases in %s: %s", e.Root, e.Message)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// RequestTemplateError means that a request property file could not be turned into a
// request body.
type RequestTemplateError struct {
	Path    string
	Message string
	Err     error
}

func (e *RequestTemplateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid request template %s: %s: %s", e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("invalid request template %s: %s", e.Path, e.Message)
}

func (e *RequestTemplateError) Unwrap() error {
	return e.Err
}

// TimeoutError means that a test run did not complete within the poll budget.
type TimeoutError struct {
	TestRunID string
	Polls     int
	Waited    time.Duration
	// LastProgress is the last progress reported by the service, as "pos/max".
	LastProgress string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("test run %s did not finish after %d polls (%s), last progress %s",
		e.TestRunID, e.Polls, e.Waited, e.LastProgress)
}

// ComparisonMismatch means that the result document differs from the expected one.
type ComparisonMismatch struct {
	ExpectedPath string
	ActualPath   string
	Difference   xmlcompare.Difference
}

func (e *ComparisonMismatch) Error() string {
	return fmt.Sprintf("result %s differs from %s: %s\n  expected: %s\n  actual:   %s",
		e.ActualPath, e.ExpectedPath, e.Difference.Kind,
		e.Difference.ExpectedDescription(), e.Difference.ActualDescription())
}

// CaseError is returned by Driver.Execute. It records which case failed and in which stage;
// Err is one of the typed errors of this package or an *etf.RemoteServiceError.
type CaseError struct {
	Case  Case
	Stage etf.Stage
	Err   error
}

func (e *CaseError) Error() string {
	return fmt.Sprintf("case %d (%s) failed in stage %s: %s", e.Case.Index, e.Case.Name(), e.Stage, e.Err)
}

func (e *CaseError) Unwrap() error {
	return e.Err
}
