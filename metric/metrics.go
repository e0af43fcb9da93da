// Package metric holds the Prometheus instruments of the data-driven test runs.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SuitesRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "etf_ddt_suites_running",
		Help: "The number of data-driven test suites currently running",
	})

	CasesRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "etf_ddt_cases_running",
		Help: "The number of test cases currently being executed",
	})

	CasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etf_ddt_cases_total",
		Help: "The number of test cases run, by result",
	}, []string{"result"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "etf_ddt_stage_duration_seconds",
		Help:    "Time spent in each stage of a test case",
		Buckets: prometheus.ExponentialBuckets(0.05, 4, 10),
	}, []string{"stage"})

	StageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etf_ddt_stage_failures_total",
		Help: "The number of test cases that failed in each stage",
	}, []string{"stage"})

	PollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etf_ddt_progress_polls_total",
		Help: "The number of progress queries sent to the test service",
	})
)

// Results of CasesTotal.
const (
	ResultPassed  = "passed"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)
