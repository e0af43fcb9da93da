package etf

import (
	"fmt"
	"strings"
)

// Stage identifies the step of the per-case workflow in which a remote call failed.
type Stage string

const (
	StageHeartbeat Stage = "heartbeat"
	StageUpload    Stage = "upload"
	StageStart     Stage = "start"
	StageProgress  Stage = "progress"
	StageFetch     Stage = "fetch"
)

const maxSnippetLength = 512

// RemoteServiceError is returned for an unexpected status code, a transport failure or a
// response that lacks a required field.
type RemoteServiceError struct {
	Stage      Stage
	Method     string
	URL        string
	StatusCode int
	// Snippet is the beginning of the response body, if there was one.
	Snippet string
	Message string
	Err     error
}

func (e *RemoteServiceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Stage, e.Message)
	if e.Method != "" {
		fmt.Fprintf(&b, " (%s %s", e.Method, e.URL)
		if e.StatusCode != 0 {
			fmt.Fprintf(&b, ", HTTP %d", e.StatusCode)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err)
	}
	if e.Snippet != "" {
		fmt.Fprintf(&b, "\nresponse: %s", e.Snippet)
	}
	return b.String()
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxSnippetLength {
		return s[:maxSnippetLength] + "..."
	}
	return s
}
