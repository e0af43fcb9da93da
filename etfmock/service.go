// Package etfmock is an in-process imitation of the ETF web API endpoints used by the
// data-driven tests. It keeps uploaded test objects and test runs in memory, so that the
// harness can be exercised without a real validator.
package etfmock

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

// Names of the endpoints, as accepted by Service.FailStage.
const (
	EndpointHeartbeat = "heartbeat"
	EndpointUpload    = "upload"
	EndpointStart     = "start"
	EndpointProgress  = "progress"
	EndpointFetch     = "fetch"
)

// Service is the fake. Exported fields configure its behavior and must be set before the
// handler receives requests.
type Service struct {
	// HeartbeatStatus is the Service-Status header value. Defaults to GOOD.
	HeartbeatStatus string
	// Steps is the progress maximum of each run; every progress query advances the run by one
	// step. Defaults to 1.
	Steps int
	// ProgressAsStrings renders max and pos as JSON strings instead of numbers.
	ProgressAsStrings bool
	// Result returns the XML result document of a run. By default the uploaded test object
	// is returned unchanged.
	Result func(Run) []byte
	// FailStage makes one endpoint answer with HTTP 500.
	FailStage string

	basePath string
	objects  map[string]TestObject
	runs     map[string]*Run
	runOrder []string
	lock     sync.Mutex
}

// TestObject is an uploaded test input.
type TestObject struct {
	ID       string
	Filename string
	Content  []byte
}

// Run is a test run created by POST /TestRuns.
type Run struct {
	ID         string
	Body       []byte
	Request    map[string]interface{}
	TestObject TestObject
	Polls      int
}

// New creates a Service that serves its endpoints below basePath, for instance "/v2".
func New(basePath string) *Service {
	return &Service{
		basePath: strings.TrimSuffix(basePath, "/"),
		objects:  make(map[string]TestObject),
		runs:     make(map[string]*Run),
	}
}

// Handler returns the HTTP handler of the fake service.
func (s *Service) Handler() http.Handler {
	router := httprouter.New()
	router.HEAD(s.basePath+"/heartbeat", s.heartbeat)
	router.POST(s.basePath+"/TestObjects", s.upload)
	router.POST(s.basePath+"/TestRuns", s.startRun)
	router.GET(s.basePath+"/TestRuns/:id", s.result)
	router.GET(s.basePath+"/TestRuns/:id/progress", s.progress)
	return router
}

// Runs returns copies of all runs in creation order.
func (s *Service) Runs() []Run {
	s.lock.Lock()
	defer s.lock.Unlock()
	ret := make([]Run, 0, len(s.runOrder))
	for _, id := range s.runOrder {
		ret = append(ret, *s.runs[id])
	}
	return ret
}

// SetHeartbeatStatus changes HeartbeatStatus while the handler is in use.
func (s *Service) SetHeartbeatStatus(status string) {
	s.lock.Lock()
	s.HeartbeatStatus = status
	s.lock.Unlock()
}

// TestObjects returns the number of uploaded test objects.
func (s *Service) TestObjects() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.objects)
}

func (s *Service) failing(w http.ResponseWriter, endpoint string) bool {
	if s.FailStage != endpoint {
		return false
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "injected failure in " + endpoint})
	return true
}

func (s *Service) heartbeat(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if s.failing(w, EndpointHeartbeat) {
		return
	}
	s.lock.Lock()
	status := s.HeartbeatStatus
	s.lock.Unlock()
	if status == "" {
		status = "GOOD"
	}
	w.Header().Set("Service-Status", status)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) upload(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.failing(w, EndpointUpload) {
		return
	}
	if r.URL.Query().Get("action") != "upload" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing action=upload"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	obj := TestObject{ID: newID(), Filename: header.Filename, Content: content}
	s.lock.Lock()
	s.objects[obj.ID] = obj
	s.lock.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"testObject": map[string]interface{}{"id": obj.ID, "label": obj.Filename},
	})
}

func (s *Service) startRun(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.failing(w, EndpointStart) {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var request map[string]interface{}
	if err := json.Unmarshal(body, &request); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	objectID := ""
	if to, ok := request["testObject"].(map[string]interface{}); ok {
		objectID, _ = to["id"].(string)
	}
	s.lock.Lock()
	obj, found := s.objects[objectID]
	if !found {
		s.lock.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown test object %q", objectID)})
		return
	}
	run := &Run{ID: newID(), Body: body, Request: request, TestObject: obj}
	s.runs[run.ID] = run
	s.runOrder = append(s.runOrder, run.ID)
	s.lock.Unlock()

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"EtfItemCollection": map[string]interface{}{
			"returnedItems": 1,
			"testRuns": map[string]interface{}{
				"TestRun": map[string]interface{}{"id": run.ID, "label": request["label"]},
			},
		},
	})
}

func (s *Service) progress(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	if s.failing(w, EndpointProgress) {
		return
	}
	steps := s.Steps
	if steps <= 0 {
		steps = 1
	}
	s.lock.Lock()
	run, found := s.runs[ps.ByName("id")]
	if !found {
		s.lock.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown test run"})
		return
	}
	if run.Polls < steps {
		run.Polls++
	}
	pos := run.Polls
	s.lock.Unlock()

	var body map[string]interface{}
	if s.ProgressAsStrings {
		body = map[string]interface{}{"max": fmt.Sprint(steps), "pos": fmt.Sprint(pos)}
	} else {
		body = map[string]interface{}{"max": steps, "pos": pos}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Service) result(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	if s.failing(w, EndpointFetch) {
		return
	}
	id := ps.ByName("id")
	if !strings.HasSuffix(id, ".xml") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "only XML results are available"})
		return
	}
	s.lock.Lock()
	run, found := s.runs[strings.TrimSuffix(id, ".xml")]
	var snapshot Run
	if found {
		snapshot = *run
	}
	s.lock.Unlock()
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown test run"})
		return
	}
	doc := snapshot.TestObject.Content
	if s.Result != nil {
		doc = s.Result(snapshot)
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func newID() string {
	return "EID" + uuid.New().String()
}
