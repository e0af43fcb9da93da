// Package servicedef contains the JSON representations of the ETF web API resources that
// the harness reads.
package servicedef

import "gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

const (
	// HeaderServiceStatus is set by the heartbeat resource.
	HeaderServiceStatus = "Service-Status"
	// ServiceStatusGood is the Service-Status value of a healthy service.
	ServiceStatusGood = "GOOD"
)

// TestObjectUploadResponse is returned by POST /TestObjects?action=upload.
type TestObjectUploadResponse struct {
	TestObject *TestObjectRef `json:"testObject"`
}

type TestObjectRef struct {
	ID string `json:"id"`
}

// TestRunCreatedResponse is returned by POST /TestRuns.
type TestRunCreatedResponse struct {
	EtfItemCollection *EtfItemCollection `json:"EtfItemCollection"`
}

type EtfItemCollection struct {
	// ReturnedItems is a number, but some service versions render it as a string.
	ReturnedItems ldvalue.Value `json:"returnedItems"`
	TestRuns      *TestRuns     `json:"testRuns"`
}

type TestRuns struct {
	// TestRun is a single object when one run was created and an array otherwise.
	TestRun ldvalue.Value `json:"TestRun"`
}

// TestRunProgress is returned by GET /TestRuns/{id}/progress. Both fields may be encoded as
// numbers or as numeric strings.
type TestRunProgress struct {
	Max ldvalue.Value `json:"max"`
	Pos ldvalue.Value `json:"pos"`
}
