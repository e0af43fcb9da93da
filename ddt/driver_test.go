package ddt

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/etf-validator/etf-contract-tests/etf"
	"github.com/etf-validator/etf-contract-tests/etfmock"
	"github.com/etf-validator/etf-contract-tests/framework"
	"github.com/etf-validator/etf-contract-tests/xmlcompare"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	expectedResult = `<TestRun><creationDate>2021-03-04</creationDate><status>PASSED</status></TestRun>`
	actualResult   = "<TestRun>\n  <creationDate>2024-10-19</creationDate>\n  <status>PASSED</status>\n</TestRun>\n"
)

func withFakeService(t *testing.T, configure func(*etfmock.Service), action func(*etfmock.Service, *etf.Client)) {
	service := etfmock.New("/v2")
	if configure != nil {
		configure(service)
	}
	server := httptest.NewServer(service.Handler())
	t.Cleanup(server.Close)
	action(service, etf.NewClient(etf.Config{BaseURL: server.URL + "/v2"}))
}

func fastDriver(client *etf.Client, outputDir string) *Driver {
	return NewDriver(client, DriverConfig{OutputDir: outputDir, PollInterval: time.Millisecond, MaxPolls: 5})
}

func sampleCase(t *testing.T) Case {
	root := writeFixtures(t, map[string]fixture{
		"sample": {input: actualResult, request: "etsIds=ets-1\narguments.lang=en\n", expected: expectedResult},
	})
	cases, err := Discover(root)
	require.NoError(t, err)
	return cases[0]
}

func requireCaseError(t *testing.T, err error, stage etf.Stage) *CaseError {
	t.Helper()
	var ce *CaseError
	require.True(t, errors.As(err, &ce), "expected CaseError, got %v", err)
	assert.Equal(t, stage, ce.Stage)
	return ce
}

func TestExecutePassingCase(t *testing.T) {
	withFakeService(t, func(s *etfmock.Service) { s.Steps = 3 }, func(service *etfmock.Service, client *etf.Client) {
		c := sampleCase(t)
		output := t.TempDir()
		var log framework.CapturingLogger

		ex, err := fastDriver(client, output).Execute(context.Background(), c, &log)
		require.NoError(t, err)

		assert.Equal(t, 3, ex.Polls)
		assert.True(t, ex.Progress.Done())
		assert.False(t, ex.Comparison.HasDifferences)
		assert.Equal(t, filepath.Join(output, "tmp_outputs", "sample", "TestRunResult.xml"), ex.ResultPath)
		saved, err := os.ReadFile(ex.ResultPath)
		require.NoError(t, err)
		assert.Equal(t, actualResult, string(saved))

		runs := service.Runs()
		require.Len(t, runs, 1)
		assert.Equal(t, ex.TestRunID, runs[0].ID)
		assert.Equal(t, ex.Request.Body, string(runs[0].Body))
		assert.Contains(t, ex.Request.Body, `"executableTestSuiteIds": ["ets-1"]`)
		assert.Contains(t, ex.Request.Body, `"arguments": {"lang": "en"}`)
		assert.Contains(t, ex.Request.Body, `"testObject": {"id": "`+ex.TestObjectID+`"}`)
		assert.NotEmpty(t, log.Output())
	})
}

func TestExecuteReportsFirstDifference(t *testing.T) {
	configure := func(s *etfmock.Service) {
		s.Result = func(etfmock.Run) []byte {
			return []byte(`<TestRun><creationDate>x</creationDate><status>FAILED</status></TestRun>`)
		}
	}
	withFakeService(t, configure, func(_ *etfmock.Service, client *etf.Client) {
		ex, err := fastDriver(client, t.TempDir()).Execute(context.Background(), sampleCase(t), nil)
		requireCaseError(t, err, StageCompare)
		m, ok := Mismatch(err)
		require.True(t, ok)
		assert.Equal(t, xmlcompare.TextValue, m.Difference.Kind)
		assert.Equal(t, "'PASSED' at /TestRun[1]/status[1]/text()[1]", m.Difference.ExpectedDescription())
		assert.Equal(t, "'FAILED' at /TestRun[1]/status[1]/text()[1]", m.Difference.ActualDescription())
		assert.True(t, ex.Comparison.HasDifferences)
	})
}

func TestExecuteMalformedResult(t *testing.T) {
	configure := func(s *etfmock.Service) {
		s.Result = func(etfmock.Run) []byte { return []byte("<TestRun>") }
	}
	withFakeService(t, configure, func(_ *etfmock.Service, client *etf.Client) {
		_, err := fastDriver(client, t.TempDir()).Execute(context.Background(), sampleCase(t), nil)
		requireCaseError(t, err, StageCompare)
		var de *xmlcompare.DocumentError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "actual", de.Side)
		_, isMismatch := Mismatch(err)
		assert.False(t, isMismatch)
	})
}

func TestExecuteStopsAtFailingStage(t *testing.T) {
	for endpoint, stage := range map[string]etf.Stage{
		etfmock.EndpointUpload:   etf.StageUpload,
		etfmock.EndpointStart:    etf.StageStart,
		etfmock.EndpointProgress: etf.StageProgress,
		etfmock.EndpointFetch:    etf.StageFetch,
	} {
		t.Run(endpoint, func(t *testing.T) {
			withFakeService(t, func(s *etfmock.Service) { s.FailStage = endpoint }, func(service *etfmock.Service, client *etf.Client) {
				output := t.TempDir()
				_, err := fastDriver(client, output).Execute(context.Background(), sampleCase(t), nil)
				ce := requireCaseError(t, err, stage)
				var rse *etf.RemoteServiceError
				require.True(t, errors.As(err, &rse))
				assert.Equal(t, 500, rse.StatusCode)
				assert.Equal(t, "sample", ce.Case.Name())
				if stage == etf.StageUpload {
					assert.Empty(t, service.Runs())
				}
			})
		})
	}
}

func TestFailedFetchLeavesNoResultFile(t *testing.T) {
	withFakeService(t, func(s *etfmock.Service) { s.FailStage = etfmock.EndpointFetch }, func(_ *etfmock.Service, client *etf.Client) {
		c := sampleCase(t)
		d := fastDriver(client, t.TempDir())
		stale := d.ResultPath(c)
		require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
		require.NoError(t, os.WriteFile(stale, []byte(actualResult), 0o600))

		ex, err := d.Execute(context.Background(), c, nil)
		requireCaseError(t, err, etf.StageFetch)
		assert.Empty(t, ex.ResultPath)
		assert.NoFileExists(t, stale)
	})
}

func TestExecuteRequestTemplateError(t *testing.T) {
	withFakeService(t, nil, func(service *etfmock.Service, client *etf.Client) {
		c := sampleCase(t)
		require.NoError(t, os.WriteFile(c.RequestTemplatePath, []byte("arguments.lang=en\n"), 0o600))

		_, err := fastDriver(client, t.TempDir()).Execute(context.Background(), c, nil)
		requireCaseError(t, err, StageRequest)
		var rte *RequestTemplateError
		assert.True(t, errors.As(err, &rte))
		assert.Empty(t, service.Runs())
	})
}

func TestExecuteTimeout(t *testing.T) {
	withFakeService(t, func(s *etfmock.Service) { s.Steps = 100 }, func(_ *etfmock.Service, client *etf.Client) {
		output := t.TempDir()
		ex, err := fastDriver(client, output).Execute(context.Background(), sampleCase(t), nil)
		requireCaseError(t, err, etf.StageProgress)
		var te *TimeoutError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, 5, te.Polls)
		assert.Equal(t, "5/100", te.LastProgress)
		assert.Equal(t, 5, ex.Polls)
		assert.NoFileExists(t, filepath.Join(output, "tmp_outputs", "sample", ResultFileName))
	})
}

func TestExecuteContinueOnTimeout(t *testing.T) {
	withFakeService(t, func(s *etfmock.Service) { s.Steps = 100 }, func(_ *etfmock.Service, client *etf.Client) {
		driver := NewDriver(client, DriverConfig{
			OutputDir:         t.TempDir(),
			PollInterval:      time.Millisecond,
			MaxPolls:          2,
			ContinueOnTimeout: true,
		})
		ex, err := driver.Execute(context.Background(), sampleCase(t), nil)
		require.NoError(t, err)
		assert.Equal(t, 2, ex.Polls)
		assert.False(t, ex.Progress.Done())
		assert.FileExists(t, ex.ResultPath)
	})
}

func TestExecuteIsCancelledByContext(t *testing.T) {
	withFakeService(t, func(s *etfmock.Service) { s.Steps = 100 }, func(_ *etfmock.Service, client *etf.Client) {
		driver := NewDriver(client, DriverConfig{OutputDir: t.TempDir(), PollInterval: time.Hour})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := driver.Execute(ctx, sampleCase(t), nil)
		requireCaseError(t, err, etf.StageProgress)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}

func TestProgressAsStrings(t *testing.T) {
	configure := func(s *etfmock.Service) {
		s.Steps = 2
		s.ProgressAsStrings = true
	}
	withFakeService(t, configure, func(_ *etfmock.Service, client *etf.Client) {
		ex, err := fastDriver(client, t.TempDir()).Execute(context.Background(), sampleCase(t), nil)
		require.NoError(t, err)
		assert.Equal(t, 2, ex.Polls)
	})
}

func TestNewDriverDefaults(t *testing.T) {
	d := NewDriver(etf.NewClient(etf.Config{BaseURL: "http://localhost"}), DriverConfig{OutputDir: "build"})
	assert.Equal(t, DefaultPollInterval, d.config.PollInterval)
	assert.Equal(t, DefaultMaxPolls, d.config.MaxPolls)
	assert.Equal(t, xmlcompare.DefaultIgnoreSet().Names(), d.config.Comparator.IgnoreSet().Names())
	assert.Equal(t, filepath.Join("build", "tmp_outputs", "7", ResultFileName), d.ResultPath(Case{Index: 7, InputPath: "...xml"}))
}
