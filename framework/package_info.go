// Package framework contains the low-level implementation of test harness infrastructure
// that is not specific to ETF or to data-driven tests.
//
// The general model is:
//
// 1. There is a general notion of a test context which is similar to Go's *testing.T,
// allowing pieces of test logic to be associated with a test identifier and to accumulate
// success/failure results. Subtests may be started from several goroutines at once.
//
// 2. Test progress is reported to a TestLogger as it happens, and debug output is captured
// per test so that it can be shown only for failed tests.
//
// The domain-specific code that knows what is being tested is responsible for talking to
// the service under test and for providing a domain-specific test API on top of the test
// context.
package framework
