// Package etf is a client for the subset of the ETF web API that the data-driven tests use:
// the heartbeat, test object upload, test run creation, run progress and run results.
package etf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/etf-validator/etf-contract-tests/framework"
	"github.com/etf-validator/etf-contract-tests/servicedef"

	"github.com/alessio/shellescape"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Config describes how to reach the service.
type Config struct {
	// BaseURL is the endpoint including the API base path, such as
	// http://localhost/etf-webapp/v2.
	BaseURL string
	// Username enables basic authentication if it is non-empty.
	Username string
	Password string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client talks to one ETF instance. It holds no per-run state and is safe for concurrent
// use by several cases.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// Progress is the normalized state of a test run.
type Progress struct {
	Max string
	Pos string
}

// Done returns true when the run has processed all of its steps.
func (p Progress) Done() bool {
	return p.Max != "" && p.Max == p.Pos
}

func (p Progress) String() string {
	return p.Pos + "/" + p.Max
}

func NewClient(config Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		username:   config.Username,
		password:   config.Password,
		httpClient: httpClient,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// CheckHeartbeat verifies that the service reports itself as healthy. It expects HTTP 204
// and a Service-Status header of GOOD.
func (c *Client) CheckHeartbeat(ctx context.Context, logger framework.Logger) error {
	req, err := c.newRequest(ctx, http.MethodHead, "/heartbeat", nil)
	if err != nil {
		return err
	}
	resp, body, err := c.do(req, StageHeartbeat, logger)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusNoContent {
		return unexpectedStatus(StageHeartbeat, req, resp, body)
	}
	if status := resp.Header.Get(servicedef.HeaderServiceStatus); status != servicedef.ServiceStatusGood {
		return &RemoteServiceError{
			Stage:      StageHeartbeat,
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("service status is %q, not %q", status, servicedef.ServiceStatusGood),
		}
	}
	return nil
}

// UploadTestObject uploads a test input file and returns the id of the temporary test
// object that the service creates for it.
func (c *Client) UploadTestObject(ctx context.Context, path string, logger framework.Logger) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening test input: %w", err)
	}

	bodyReader, bodyWriter := io.Pipe()
	form := multipart.NewWriter(bodyWriter)
	go func() {
		defer f.Close()
		part, err := form.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = form.Close()
		}
		_ = bodyWriter.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/TestObjects?action=upload", bodyReader)
	if err != nil {
		_ = bodyReader.Close()
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, body, err := c.do(req, StageUpload, logger, "-F", "file=@"+path)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", unexpectedStatus(StageUpload, req, resp, body)
	}
	var created servicedef.TestObjectUploadResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", malformed(StageUpload, req, resp, body, err)
	}
	if created.TestObject == nil || created.TestObject.ID == "" {
		return "", missingField(StageUpload, req, resp, body, "testObject.id")
	}
	return created.TestObject.ID, nil
}

// StartTestRun posts a test run request and returns the id of the created run.
func (c *Client) StartTestRun(ctx context.Context, request string, logger framework.Logger) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/TestRuns", strings.NewReader(request))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, body, err := c.do(req, StageStart, logger, "-d", request)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated {
		return "", unexpectedStatus(StageStart, req, resp, body)
	}
	var created servicedef.TestRunCreatedResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", malformed(StageStart, req, resp, body, err)
	}
	if created.EtfItemCollection == nil {
		return "", missingField(StageStart, req, resp, body, "EtfItemCollection")
	}
	if n := normalize(created.EtfItemCollection.ReturnedItems); n != "1" {
		return "", &RemoteServiceError{
			Stage:      StageStart,
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Snippet:    snippet(body),
			Message:    fmt.Sprintf("expected EtfItemCollection.returnedItems to be 1, got %q", n),
		}
	}
	if created.EtfItemCollection.TestRuns == nil {
		return "", missingField(StageStart, req, resp, body, "EtfItemCollection.testRuns")
	}
	run := created.EtfItemCollection.TestRuns.TestRun
	if run.Type() == ldvalue.ArrayType && run.Count() == 1 {
		run = run.GetByIndex(0)
	}
	id := normalize(run.GetByKey("id"))
	if run.Type() != ldvalue.ObjectType || id == "" {
		return "", missingField(StageStart, req, resp, body, "EtfItemCollection.testRuns.TestRun.id")
	}
	return id, nil
}

// GetProgress queries the progress of a test run.
func (c *Client) GetProgress(ctx context.Context, testRunID string, logger framework.Logger) (Progress, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/TestRuns/"+url.PathEscape(testRunID)+"/progress", nil)
	if err != nil {
		return Progress{}, err
	}
	resp, body, err := c.do(req, StageProgress, logger)
	if err != nil {
		return Progress{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Progress{}, unexpectedStatus(StageProgress, req, resp, body)
	}
	var progress servicedef.TestRunProgress
	if err := json.Unmarshal(body, &progress); err != nil {
		return Progress{}, malformed(StageProgress, req, resp, body, err)
	}
	p := Progress{Max: normalize(progress.Max), Pos: normalize(progress.Pos)}
	if p.Max == "" {
		return Progress{}, missingField(StageProgress, req, resp, body, "max")
	}
	return p, nil
}

// DownloadResult writes the XML result document of a test run to dest.
func (c *Client) DownloadResult(ctx context.Context, testRunID string, dest io.Writer, logger framework.Logger) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/TestRuns/"+url.PathEscape(testRunID)+".xml", nil)
	if err != nil {
		return err
	}
	if logger == nil {
		logger = framework.NullLogger()
	}
	logger.Printf("%s", c.curl(req))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(StageFetch, req, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxSnippetLength*2))
		return unexpectedStatus(StageFetch, req, resp, body)
	}
	n, err := io.Copy(dest, resp.Body)
	if err != nil {
		return &RemoteServiceError{
			Stage:      StageFetch,
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Message:    "error reading result document",
			Err:        err,
		}
	}
	logger.Printf("Received %d bytes of test run results", n)
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}

// do executes a request and reads the whole response body.
func (c *Client) do(req *http.Request, stage Stage, logger framework.Logger, curlArgs ...string) (*http.Response, []byte, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	logger.Printf("%s", c.curl(req, curlArgs...))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, transportError(stage, req, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &RemoteServiceError{
			Stage:      stage,
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Message:    "error reading response body",
			Err:        err,
		}
	}
	logger.Printf("HTTP %d: %s", resp.StatusCode, snippet(body))
	return resp, body, nil
}

// curl renders a request as a command line that reproduces it. The password is masked.
func (c *Client) curl(req *http.Request, extraArgs ...string) string {
	args := []string{"curl", "-X", req.Method}
	if req.Method == http.MethodHead {
		args = []string{"curl", "-I"}
	}
	if c.username != "" {
		args = append(args, "-u", c.username+":***")
	}
	if ct := req.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "multipart/") {
		args = append(args, "-H", "Content-Type: "+ct)
	}
	args = append(args, extraArgs...)
	args = append(args, req.URL.String())
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, shellescape.Quote(a))
	}
	return strings.Join(quoted, " ")
}

// normalize renders a JSON scalar so that numbers and numeric strings compare equal.
func normalize(v ldvalue.Value) string {
	switch v.Type() {
	case ldvalue.NumberType:
		return strconv.FormatFloat(v.Float64Value(), 'f', -1, 64)
	case ldvalue.StringType:
		s := strings.TrimSpace(v.StringValue())
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return s
	case ldvalue.BoolType:
		return strconv.FormatBool(v.BoolValue())
	default:
		return ""
	}
}

func unexpectedStatus(stage Stage, req *http.Request, resp *http.Response, body []byte) error {
	return &RemoteServiceError{
		Stage:      stage,
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Snippet:    snippet(body),
		Message:    fmt.Sprintf("unexpected response status %d", resp.StatusCode),
	}
}

func malformed(stage Stage, req *http.Request, resp *http.Response, body []byte, err error) error {
	return &RemoteServiceError{
		Stage:      stage,
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Snippet:    snippet(body),
		Message:    "malformed JSON response",
		Err:        err,
	}
}

func missingField(stage Stage, req *http.Request, resp *http.Response, body []byte, field string) error {
	return &RemoteServiceError{
		Stage:      stage,
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Snippet:    snippet(body),
		Message:    fmt.Sprintf("response has no %s", field),
	}
}

func transportError(stage Stage, req *http.Request, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return &RemoteServiceError{
		Stage:   stage,
		Method:  req.Method,
		URL:     req.URL.String(),
		Message: "request failed",
		Err:     err,
	}
}
