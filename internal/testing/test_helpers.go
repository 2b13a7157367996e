// test_helpers.go - checkout service wired to the mock inventory backend
package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sitecheckout/internal/backend"
	"sitecheckout/internal/checkout"
	"sitecheckout/internal/middleware"
	"sitecheckout/internal/security"
	"sitecheckout/internal/session"
	"sitecheckout/internal/stock"
	"sitecheckout/internal/ws"
)

const TestPassword = "0000"

// TestConfig holds configuration for test runs
type TestConfig struct {
	Password   string
	SessionTTL time.Duration
	Today      time.Time
}

// TestSuite provides utilities for integration testing
type TestSuite struct {
	Config   TestConfig
	Backend  *MockInventoryBackend
	Server   *httptest.Server
	Client   *http.Client
	Sessions *session.Store
	Hub      *ws.Hub
}

// NewTestSuite starts a mock backend and a checkout server in front of it
func NewTestSuite(t *testing.T) *TestSuite {
	t.Helper()

	config := TestConfig{
		Password:   TestPassword,
		SessionTTL: time.Hour,
		Today:      time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC),
	}

	mock := NewMockInventoryBackend()
	client := backend.NewClient(mock.URL(), 5*time.Second)

	gate, err := security.NewGate(config.Password)
	if err != nil {
		t.Fatalf("Failed to create password gate: %v", err)
	}

	suite := &TestSuite{
		Config:   config,
		Backend:  mock,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Sessions: session.NewStore(config.SessionTTL),
		Hub:      ws.NewHub(),
	}

	h := checkout.New(checkout.Deps{
		Sessions: suite.Sessions,
		Source:   client,
		Backend:  client,
		Stock:    stock.NewService(gate, client),
		Hub:      suite.Hub,
		Now:      func() time.Time { return config.Today },
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /ws", h.ServeWS)
	suite.Server = httptest.NewServer(mux)

	t.Cleanup(suite.Cleanup)
	return suite
}

// Cleanup shuts down both servers
func (ts *TestSuite) Cleanup() {
	ts.Server.Close()
	ts.Backend.Close()
}

// APIResult is the decoded response envelope with the data left raw
type APIResult struct {
	Status  int
	Success bool
	Data    json.RawMessage
	Error   middleware.APIError
}

// MakeAPIRequest sends a JSON request on behalf of a checkout session
func (ts *TestSuite) MakeAPIRequest(method, path string, body interface{}, sessionID string) (*http.Response, error) {
	var reqBody *bytes.Buffer

	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(bodyBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(checkout.SessionHeader, sessionID)
	}

	return ts.Client.Do(req)
}

// Call performs a request and decodes the envelope, failing the test on transport errors
func (ts *TestSuite) Call(t *testing.T, method, path string, body interface{}, sessionID string) APIResult {
	t.Helper()

	resp, err := ts.MakeAPIRequest(method, path, body, sessionID)
	ts.AssertNoError(t, err)
	defer resp.Body.Close()

	result := APIResult{Status: resp.StatusCode}
	if resp.StatusCode >= 400 {
		if err := json.NewDecoder(resp.Body).Decode(&result.Error); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}
		return result
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	result.Success = envelope.Success
	result.Data = envelope.Data
	return result
}

// State decodes the data of a result as session state
func (ts *TestSuite) State(t *testing.T, result APIResult) checkout.StateView {
	t.Helper()
	if result.Status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d (%s: %s)", result.Status, result.Error.Code, result.Error.Details)
	}
	var state checkout.StateView
	if err := json.Unmarshal(result.Data, &state); err != nil {
		t.Fatalf("Failed to decode state: %v", err)
	}
	return state
}

// NewSession opens a checkout session and returns its initial state
func (ts *TestSuite) NewSession(t *testing.T) checkout.StateView {
	t.Helper()
	return ts.State(t, ts.Call(t, http.MethodPost, "/api/session", nil, ""))
}

// AddRow appends a row and returns the new state
func (ts *TestSuite) AddRow(t *testing.T, sessionID string) checkout.StateView {
	t.Helper()
	return ts.State(t, ts.Call(t, http.MethodPost, "/api/rows", nil, sessionID))
}

// Edit sends one field edit and returns the raw result
func (ts *TestSuite) Edit(t *testing.T, sessionID, rowID, field, value string) APIResult {
	t.Helper()
	return ts.Call(t, http.MethodPatch, "/api/rows/"+rowID, map[string]string{"field": field, "value": value}, sessionID)
}

// FillRow sets every field of a row, in UI order
func (ts *TestSuite) FillRow(t *testing.T, sessionID, rowID string, fields [][2]string) checkout.StateView {
	t.Helper()
	var state checkout.StateView
	for _, f := range fields {
		state = ts.State(t, ts.Edit(t, sessionID, rowID, f[0], f[1]))
	}
	return state
}

// GlovesRow is a complete Gloves/Leather/M request
func GlovesRow(name, qty string) [][2]string {
	return [][2]string{
		{"name", name},
		{"foreman", "Ivanov"},
		{"item", "Gloves"},
		{"type", "Leather"},
		{"size", "M"},
		{"quantity", qty},
	}
}

// WSURL returns the websocket address of a session
func (ts *TestSuite) WSURL(sessionID string) string {
	return "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/ws?session=" + sessionID
}

// AssertStatusCode checks if response has expected status code
func (ts *TestSuite) AssertStatusCode(t *testing.T, result APIResult, expected int) {
	t.Helper()
	if result.Status != expected {
		t.Errorf("Expected status code %d, got %d (%s)", expected, result.Status, result.Error.Code)
	}
}

// AssertErrorCode checks the API error code of a failed result
func (ts *TestSuite) AssertErrorCode(t *testing.T, result APIResult, status int, code string) {
	t.Helper()
	if result.Status != status || result.Error.Code != code {
		t.Errorf("Expected %d %s, got %d %s", status, code, result.Status, result.Error.Code)
	}
}

// AssertNoError fails the test if error is not nil
func (ts *TestSuite) AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// WaitForCondition waits for a condition to be true or timeout
func (ts *TestSuite) WaitForCondition(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func intValue(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}
