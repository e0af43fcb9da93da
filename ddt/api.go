package ddt

import (
	"context"

	"github.com/etf-validator/etf-contract-tests/framework"

	"github.com/stretchr/testify/require"
)

// T represents one data-driven test case while it runs.
//
// It implements the same basic functionality as Go's testing.T, but in an environment that is
// outside of the Go test runner, with debug logging provided by our lower-level framework
// package. To make test assertions, you can use the assert and require packages, passing the
// *T as if it were a *testing.T.
type T struct {
	context   *framework.Context
	ctx       context.Context
	driver    *Driver
	execution *Execution
	err       error
}

func newTestScope(ctx context.Context, context *framework.Context, driver *Driver) *T {
	return &T{context: context, ctx: ctx, driver: driver}
}

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow is called by assertions when a test should fail and immediately exit. The methods in
// the require package call FailNow.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Debug logs some debug output for the test. The output will be passed to the test logger at
// the end of the test.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

// RequireCasePasses runs the whole workflow for c. It fails and immediately exits the test if
// any stage fails or if the result differs from the expected document.
func (t *T) RequireCasePasses(c Case) *Execution {
	if !c.StemsAgree() {
		t.Debug("Warning: file names of case %s do not match, the files are paired by position", c)
	}
	t.execution, t.err = t.driver.Execute(t.ctx, c, t.context.DebugLogger())
	if m, ok := Mismatch(t.err); ok {
		require.Fail(t, "result differs from expected document", "%s", m)
	}
	require.NoError(t, t.err)
	return t.execution
}
