package testutil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewTestServer(t *testing.T) {
	server := NewTestServer(nil)
	if server == nil {
		t.Fatal("NewTestServer returned nil")
	}

	rr := Serve(server.Handler(), CreateHTTPRequest(t, http.MethodGet, "/healthz", nil))
	AssertHTTPStatus(t, http.StatusOK, rr.Code, "healthz")
	AssertJSONResponse(t, rr, "ok")
}

func TestNewTestConversationIsSeeded(t *testing.T) {
	ctx := context.Background()
	a, err := NewTestConversation().Chat(ctx, "k", "I feel sad today")
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewTestConversation().Chat(ctx, "k", "I feel sad today")
	if err != nil {
		t.Fatal(err)
	}
	if a.Reply != b.Reply {
		t.Errorf("seeded conversations disagree: %q vs %q", a.Reply, b.Reply)
	}
}

func TestAssertHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		expected   int
		actual     int
		shouldFail bool
	}{
		{"matching status codes", 200, 200, false},
		{"different status codes", 200, 404, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}

			AssertHTTPStatus(mockT, tt.expected, tt.actual, "test context")

			if tt.shouldFail != mockT.failed {
				t.Errorf("failed = %v, want %v", mockT.failed, tt.shouldFail)
			}
		})
	}
}

func TestAssertJSONResponse(t *testing.T) {
	tests := []struct {
		name           string
		jsonBody       string
		expectedStatus string
		shouldFail     bool
	}{
		{"valid JSON with matching status", `{"status":"ok","result":"test"}`, "ok", false},
		{"valid JSON with different status", `{"status":"error","message":"test"}`, "ok", true},
		{"invalid JSON", `{"status":}`, "ok", true},
		{"missing status field", `{"result":"test"}`, "ok", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			rr := httptest.NewRecorder()
			rr.Body.WriteString(tt.jsonBody)

			// Fatalf on the mock panics to stop the helper, as testing.T would.
			defer func() {
				if r := recover(); r != nil && !tt.shouldFail {
					t.Errorf("Unexpected panic: %v", r)
				}
			}()

			response := AssertJSONResponse(mockT, rr, tt.expectedStatus)

			if tt.shouldFail && !mockT.failed {
				t.Error("Expected test to fail but it passed")
			}
			if !tt.shouldFail && mockT.failed {
				t.Errorf("Expected test to pass but it failed: %s", mockT.errorMsg)
			}
			if !tt.shouldFail && response == nil {
				t.Error("Expected response map to be returned")
			}
		})
	}
}

func TestDecodeResult(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Body.WriteString(`{"status":"ok","result":{"session_id":"abc"}}`)

	var got struct {
		SessionID string `json:"session_id"`
	}
	DecodeResult(t, rr, &got)
	if got.SessionID != "abc" {
		t.Errorf("SessionID = %q", got.SessionID)
	}
}

func TestCreateHTTPRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		url    string
		body   interface{}
	}{
		{"GET request with no body", http.MethodGet, "/why", nil},
		{"POST request with JSON body", http.MethodPost, "/chat", map[string]string{"message": "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := CreateHTTPRequest(t, tt.method, tt.url, tt.body)

			if req.Method != tt.method {
				t.Errorf("Expected method %s, got %s", tt.method, req.Method)
			}
			if req.URL.Path != tt.url {
				t.Errorf("Expected URL %s, got %s", tt.url, req.URL.Path)
			}
			if tt.body != nil && req.Header.Get("Content-Type") != "application/json" {
				t.Error("JSON body should set Content-Type")
			}
		})
	}
}

func TestMustUnmarshalJSON(t *testing.T) {
	jsonData := MustMarshalJSON(t, map[string]interface{}{"key": "value", "number": 123})
	var target map[string]interface{}

	MustUnmarshalJSON(t, jsonData, &target)

	if target["key"] != "value" {
		t.Errorf("Expected key to be 'value', got %v", target["key"])
	}
	if target["number"].(float64) != 123 {
		t.Errorf("Expected number to be 123, got %v", target["number"])
	}
}

// mockTestingT records failures instead of failing the real test.
type mockTestingT struct {
	failed   bool
	errorMsg string
}

func (m *mockTestingT) Helper() {}

func (m *mockTestingT) Errorf(format string, args ...interface{}) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
}

func (m *mockTestingT) Error(args ...interface{}) {
	m.failed = true
	m.errorMsg = fmt.Sprint(args...)
}

func (m *mockTestingT) Fatalf(format string, args ...interface{}) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
	panic("test failed")
}
