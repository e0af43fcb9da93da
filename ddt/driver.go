package ddt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/etf-validator/etf-contract-tests/etf"
	"github.com/etf-validator/etf-contract-tests/framework"
	"github.com/etf-validator/etf-contract-tests/metric"
	"github.com/etf-validator/etf-contract-tests/xmlcompare"
)

// Stages of a case that happen locally, in addition to the remote stages defined by etf.
const (
	StageRequest etf.Stage = "request"
	StageCompare etf.Stage = "compare"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultMaxPolls     = 43200

	// ResultFileName is the name of the downloaded result document in each case directory.
	ResultFileName = "TestRunResult.xml"
	outputSubdir   = "tmp_outputs"
)

// DriverConfig configures a Driver. Zero values select the defaults.
type DriverConfig struct {
	// OutputDir receives one subdirectory per case below tmp_outputs.
	OutputDir    string
	PollInterval time.Duration
	MaxPolls     int
	// ContinueOnTimeout downloads and compares whatever result exists when the poll budget is
	// used up, instead of failing the case with a TimeoutError.
	ContinueOnTimeout bool
	Synthesizer       Synthesizer
	// Comparator defaults to one using xmlcompare.DefaultIgnoreSet.
	Comparator *xmlcompare.Comparator
}

// Execution is what the Driver learned about a case. It is returned even if the case failed,
// with the fields of the stages that were reached.
type Execution struct {
	Case         Case
	TestObjectID string
	TestRunID    string
	Request      Request
	Polls        int
	Progress     etf.Progress
	ResultPath   string
	Comparison   xmlcompare.Result
}

// Driver runs cases against the test service. A Driver has no per-case state; Execute may be
// called concurrently.
type Driver struct {
	client *etf.Client
	config DriverConfig
}

func NewDriver(client *etf.Client, config DriverConfig) *Driver {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.MaxPolls <= 0 {
		config.MaxPolls = DefaultMaxPolls
	}
	if config.Comparator == nil {
		config.Comparator = xmlcompare.New(xmlcompare.DefaultIgnoreSet())
	}
	return &Driver{client: client, config: config}
}

// ResultPath returns where the result document of c is stored.
func (d *Driver) ResultPath(c Case) string {
	return filepath.Join(d.config.OutputDir, outputSubdir, c.Name(), ResultFileName)
}

// Execute uploads the input of c, starts a test run, waits for it to finish, downloads the
// result and compares it with the expected document. Any failure is returned as a *CaseError;
// a differing result is a *ComparisonMismatch inside it.
func (d *Driver) Execute(ctx context.Context, c Case, logger framework.Logger) (*Execution, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	ex := &Execution{Case: c}

	err := d.stage(etf.StageUpload, c, logger, func() (err error) {
		ex.TestObjectID, err = d.client.UploadTestObject(ctx, c.InputPath, logger)
		if err == nil {
			logger.Printf("Uploaded %s as test object %s", c.InputPath, ex.TestObjectID)
		}
		return err
	})
	if err != nil {
		return ex, err
	}

	err = d.stage(StageRequest, c, logger, func() (err error) {
		ex.Request, err = d.config.Synthesizer.Synthesize(c, ex.TestObjectID)
		if err == nil {
			logger.Printf("Test run request: %s", ex.Request.Canonical)
		}
		return err
	})
	if err != nil {
		return ex, err
	}

	err = d.stage(etf.StageStart, c, logger, func() (err error) {
		ex.TestRunID, err = d.client.StartTestRun(ctx, ex.Request.Body, logger)
		if err == nil {
			logger.Printf("Started test run %s", ex.TestRunID)
		}
		return err
	})
	if err != nil {
		return ex, err
	}

	err = d.stage(etf.StageProgress, c, logger, func() error {
		return d.awaitCompletion(ctx, ex, logger)
	})
	if err != nil {
		return ex, err
	}

	ex.ResultPath = d.ResultPath(c)
	err = d.stage(etf.StageFetch, c, logger, func() error {
		return d.download(ctx, ex, logger)
	})
	if err != nil {
		return ex, err
	}

	err = d.stage(StageCompare, c, logger, func() (err error) {
		ex.Comparison, err = d.config.Comparator.CompareFiles(c.ExpectedPath, ex.ResultPath)
		if err != nil {
			return err
		}
		if ex.Comparison.HasDifferences {
			return &ComparisonMismatch{
				ExpectedPath: c.ExpectedPath,
				ActualPath:   ex.ResultPath,
				Difference:   *ex.Comparison.FirstDifference,
			}
		}
		return nil
	})
	return ex, err
}

func (d *Driver) stage(stage etf.Stage, c Case, logger framework.Logger, action func() error) error {
	logger.Printf("Stage %s", stage)
	start := time.Now()
	err := action()
	metric.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	if err != nil {
		metric.StageFailures.WithLabelValues(string(stage)).Inc()
		return &CaseError{Case: c, Stage: stage, Err: err}
	}
	return nil
}

func (d *Driver) awaitCompletion(ctx context.Context, ex *Execution, logger framework.Logger) error {
	start := time.Now()
	timer := time.NewTimer(d.config.PollInterval)
	defer timer.Stop()
	for ex.Polls < d.config.MaxPolls {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		ex.Polls++
		metric.PollsTotal.Inc()
		p, err := d.client.GetProgress(ctx, ex.TestRunID, logger)
		if err != nil {
			return err
		}
		ex.Progress = p
		if p.Done() {
			logger.Printf("Test run %s finished after %d polls", ex.TestRunID, ex.Polls)
			return nil
		}
		logger.Printf("Test run %s progress %s", ex.TestRunID, p)
		timer.Reset(d.config.PollInterval)
	}

	timeout := &TimeoutError{
		TestRunID:    ex.TestRunID,
		Polls:        ex.Polls,
		Waited:       time.Since(start),
		LastProgress: ex.Progress.String(),
	}
	if d.config.ContinueOnTimeout {
		logger.Printf("%s; fetching the result anyway", timeout)
		return nil
	}
	return timeout
}

func (d *Driver) download(ctx context.Context, ex *Execution, logger framework.Logger) error {
	if err := os.MkdirAll(filepath.Dir(ex.ResultPath), 0o755); err != nil {
		return fmt.Errorf("cannot create output directory: %w", err)
	}
	f, err := os.Create(ex.ResultPath)
	if err != nil {
		return fmt.Errorf("cannot create result file: %w", err)
	}
	err = d.client.DownloadResult(ctx, ex.TestRunID, f, logger)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("cannot write result file: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(ex.ResultPath)
		ex.ResultPath = ""
		return err
	}
	logger.Printf("Saved result of test run %s to %s", ex.TestRunID, ex.ResultPath)
	return nil
}

// Mismatch returns the comparison mismatch inside err, if there is one.
func Mismatch(err error) (*ComparisonMismatch, bool) {
	var m *ComparisonMismatch
	ok := errors.As(err, &m)
	return m, ok
}
