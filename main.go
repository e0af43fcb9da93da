package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/etf-validator/etf-contract-tests/config"
	"github.com/etf-validator/etf-contract-tests/ddt"
	"github.com/etf-validator/etf-contract-tests/etf"
	"github.com/etf-validator/etf-contract-tests/framework"
	"github.com/etf-validator/etf-contract-tests/report"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const junitSuiteName = "etf-data-driven-tests"

func main() {
	os.Exit(run())
}

func run() int {
	var params commandParams
	if !params.Read(os.Args) {
		return 1
	}
	params.applyOverrides()

	conf, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %s\n", err)
		return 1
	}
	logger := log.WithField("run", uuid.New().String())

	if params.metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(params.metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("Metrics server failed: %s", err)
			}
		}()
	}

	client := etf.NewClient(etf.Config{
		BaseURL:    conf.BaseURL(),
		Username:   conf.API.Username,
		Password:   conf.API.Password,
		HTTPClient: &http.Client{Timeout: conf.API.Timeout},
	})
	driver := ddt.NewDriver(client, ddt.DriverConfig{
		OutputDir:         conf.DDT.Output,
		PollInterval:      conf.DDT.PollInterval,
		MaxPolls:          conf.DDT.MaxPolls,
		ContinueOnTimeout: !conf.DDT.FailOnTimeout,
		Synthesizer:       ddt.Synthesizer{RawValues: conf.DDT.RawValues},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println()
	framework.PrintFilterDescription(os.Stdout, params.filters)
	fmt.Printf("Running data-driven tests from %s against %s\n", conf.DDT.Dir, client.BaseURL())

	var suiteLogger framework.Logger = framework.NullLogger()
	if params.debugAll {
		suiteLogger = logger
	}
	testLogger := &ConsoleTestLogger{
		Out:                  os.Stdout,
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}

	start := time.Now()
	results, err := ddt.RunTestSuite(ctx, client, driver, ddt.SuiteConfig{
		Root:       conf.DDT.Dir,
		Parallel:   conf.DDT.Parallel,
		Filter:     params.filters.AsFilter,
		TestLogger: testLogger,
		Logger:     suiteLogger,

		StartupTimeout: conf.API.StartupTimeout,
		StartupOutput:  os.Stdout,
	})
	if err != nil {
		logger.Errorf("Test suite could not run: %s", err)
		return 1
	}
	duration := time.Since(start)

	fmt.Println()
	framework.PrintResults(results.Results)
	if err := writeReports(params, conf, results, duration); err != nil {
		logger.Errorf("Cannot write report: %s", err)
		return 1
	}
	if !results.OK() {
		fmt.Printf("\nTo repeat this run: %s\n", params.commandLine(os.Args[0]))
		return 1
	}
	return 0
}

func writeReports(params commandParams, conf *config.Map, results ddt.SuiteResults, duration time.Duration) error {
	entries := report.Entries(results)
	if params.junitFile != "" {
		file := report.NewJUnitFile(junitSuiteName, entries, duration,
			report.Property{Name: "endpoint", Value: conf.BaseURL()},
			report.Property{Name: "dir", Value: conf.DDT.Dir},
		)
		if err := file.WriteFile(params.junitFile); err != nil {
			return err
		}
	}
	if params.xlsxFile != "" {
		if err := report.WriteXLSX(params.xlsxFile, entries, duration); err != nil {
			return err
		}
	}
	return nil
}
