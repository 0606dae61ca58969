// Package testutil provides common test utilities and helpers for CareBear tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BTreeMap/CareBear/internal/api"
	"github.com/BTreeMap/CareBear/internal/crisis"
	"github.com/BTreeMap/CareBear/internal/flow"
	"github.com/BTreeMap/CareBear/internal/messaging"
	"github.com/BTreeMap/CareBear/internal/mood"
	"github.com/BTreeMap/CareBear/internal/store"
	"github.com/BTreeMap/CareBear/internal/util"
)

// TB is the subset of testing.TB the assertion helpers need.
type TB interface {
	Helper()
	Errorf(format string, args ...interface{})
	Error(args ...interface{})
	Fatalf(format string, args ...interface{})
}

// TestSeed makes reply pools deterministic across test runs.
const TestSeed = 1

// NewTestEngine creates an engine with the default lexicon and rules, an
// in-memory state store and a seeded picker.
func NewTestEngine() *flow.Engine {
	return flow.NewEngine(mood.NewDefaultClassifier(), crisis.NewDefaultScreener(), store.NewMemoryStateStore(),
		flow.WithPicker(util.NewSeededPicker(TestSeed)))
}

// NewTestConversation wraps a fresh test engine.
func NewTestConversation(opts ...messaging.ConversationOption) *messaging.Conversation {
	return messaging.NewConversation(NewTestEngine(), opts...)
}

// NewTestServer creates a test API server with in-memory dependencies.
// A nil conv gets a fresh test conversation.
func NewTestServer(conv *messaging.Conversation, opts ...api.Option) *api.Server {
	if conv == nil {
		conv = NewTestConversation()
	}
	return api.NewServer(conv, opts...)
}

// Serve runs req through h and returns the recorded response.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t TB, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// DecodeResult unmarshals the "result" field of a JSON envelope into target.
func DecodeResult(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	MustUnmarshalJSON(t, rr.Body.Bytes(), &envelope)
	if len(envelope.Result) == 0 {
		t.Fatalf("response has no result: %s", rr.Body.String())
	}
	MustUnmarshalJSON(t, envelope.Result, target)
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = bytes.NewBuffer(MustMarshalJSON(t, body))
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
