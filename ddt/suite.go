package ddt

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/etf-validator/etf-contract-tests/etf"
	"github.com/etf-validator/etf-contract-tests/framework"
	"github.com/etf-validator/etf-contract-tests/metric"
)

// TestNamePrefix starts the id of every data-driven test.
const TestNamePrefix = "Data Test: "

// SuiteConfig describes one run of the data-driven tests.
type SuiteConfig struct {
	// Root is the fixture tree with the data, request and expected directories.
	Root string
	// Parallel is the number of cases executed at the same time. Defaults to 1.
	Parallel   int
	Filter     framework.Filter
	TestLogger framework.TestLogger
	// Logger receives suite-level messages. Each case logs to its own debug logger.
	Logger framework.Logger
	// StartupTimeout is how long to wait for the service to report itself healthy. Zero means
	// that the first heartbeat must succeed.
	StartupTimeout time.Duration
	// StartupOutput shows the progress of the startup wait.
	StartupOutput io.Writer
}

// CaseOutcome is the result of one case.
type CaseOutcome struct {
	Case      Case
	Result    framework.TestResult
	Execution *Execution
	Err       error
}

// SuiteResults holds the framework results and the per-case outcomes in case order.
type SuiteResults struct {
	framework.Results
	Cases []CaseOutcome
}

// TestName returns the test id element of c.
func TestName(c Case) string {
	return TestNamePrefix + c.Name()
}

// RunTestSuite checks that the service is healthy, discovers the cases and runs them. An
// error is returned only if the suite could not start; failed cases are reported in the
// results.
func RunTestSuite(ctx context.Context, client *etf.Client, driver *Driver, config SuiteConfig) (SuiteResults, error) {
	logger := config.Logger
	if logger == nil {
		logger = framework.NullLogger()
	}
	metric.SuitesRunning.Inc()
	defer metric.SuitesRunning.Dec()

	if err := client.AwaitHeartbeat(ctx, config.StartupTimeout, config.StartupOutput, logger); err != nil {
		return SuiteResults{}, err
	}
	cases, err := Discover(config.Root)
	if err != nil {
		return SuiteResults{}, err
	}
	logger.Printf("Discovered %d test cases in %s", len(cases), config.Root)
	for _, c := range cases {
		if !c.StemsAgree() {
			logger.Printf("Warning: file names of case %s do not match, the files are paired by position", c)
		}
	}

	parallel := config.Parallel
	if parallel < 1 {
		parallel = 1
	}
	if parallel > len(cases) {
		parallel = len(cases)
	}

	queue := framework.NewOrderedQueue[CaseOutcome](len(cases))
	results := framework.Run(config.Filter, config.TestLogger, func(fc *framework.Context) {
		jobs := make(chan Case, len(cases))
		var wg sync.WaitGroup
		for i := 0; i < parallel; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for c := range jobs {
					queue.Accept(c.Index+1, runCase(ctx, fc, driver, c))
				}
			}()
		}
		for _, c := range cases {
			jobs <- c
		}
		close(jobs)
		wg.Wait()
	})
	queue.Close()

	ret := SuiteResults{Results: results}
	for outcome := range queue.C {
		ret.Cases = append(ret.Cases, outcome)
	}
	return ret, nil
}

func runCase(ctx context.Context, fc *framework.Context, driver *Driver, c Case) CaseOutcome {
	outcome := CaseOutcome{Case: c}
	metric.CasesRunning.Inc()
	outcome.Result = fc.Run(TestName(c), func(cc *framework.Context) {
		t := newTestScope(ctx, cc, driver)
		defer func() {
			outcome.Execution, outcome.Err = t.execution, t.err
		}()
		t.RequireCasePasses(c)
	})
	metric.CasesRunning.Dec()

	switch {
	case outcome.Result.Skipped:
		metric.CasesTotal.WithLabelValues(metric.ResultSkipped).Inc()
	case outcome.Result.Failed():
		metric.CasesTotal.WithLabelValues(metric.ResultFailed).Inc()
	default:
		metric.CasesTotal.WithLabelValues(metric.ResultPassed).Inc()
	}
	return outcome
}
