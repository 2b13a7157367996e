// mock_backend.go - in-memory stand-in for the inventory backend
package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"sitecheckout/internal/catalog"
	"sitecheckout/internal/order"
)

// MockInventoryBackend serves the inventory endpoints the checkout page calls.
type MockInventoryBackend struct {
	Server *httptest.Server
	mu     sync.RWMutex

	Stock       []catalog.StockEntry
	Foremen     []string
	Workers     []string
	Submissions [][]order.Entry
	Actions     []string

	// Configuration for failure simulation
	ShouldFailCatalog    bool
	ShouldRejectSubmit   bool
	ShouldRejectActions  bool
	SimulateNetworkDelay time.Duration

	// Counters for tracking
	CatalogRequests int
	SearchRequests  int
	SubmitAttempts  int
}

// NewMockInventoryBackend creates a mock backend stocked with the test catalog.
func NewMockInventoryBackend() *MockInventoryBackend {
	mock := &MockInventoryBackend{
		Stock:   DefaultStock(),
		Foremen: []string{"Ivanov", "Kuznetsov"},
		Workers: []string{"Petrov Alexei", "Petrova Maria", "Sidorov Ivan"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /get_items_and_types", mock.handleItemsAndTypes)
	mux.HandleFunc("GET /get_foremen", mock.handleForemen)
	mux.HandleFunc("GET /search", mock.handleSearch)
	mux.HandleFunc("POST /submit", mock.handleSubmit)
	mux.HandleFunc("GET /load_stock", mock.handleAction("load_stock"))
	mux.HandleFunc("GET /load_all_data", mock.handleAction("load_all_data"))
	mux.HandleFunc("POST /download_stock", mock.handleAction("download_stock"))
	mux.HandleFunc("POST /download_all_data", mock.handleAction("download_all_data"))

	mock.Server = httptest.NewServer(mux)
	return mock
}

// DefaultStock is the stock table every suite starts from.
func DefaultStock() []catalog.StockEntry {
	return []catalog.StockEntry{
		{Item: "Gloves", ItemType: "Leather", Size: "M", Quantity: 2},
		{Item: "Gloves", ItemType: "Leather", Size: "L", Quantity: 6},
		{Item: "Gloves", ItemType: "Rubber", Size: "M", Quantity: 4},
		{Item: "T-shirt", ItemType: "Orange", Size: "S", Quantity: 10},
		{Item: "T-shirt", ItemType: "Orange", Size: "M", Quantity: 20},
		{Item: "T-shirt", ItemType: "Orange", Size: "L", Quantity: 0},
		{Item: "Helmet", ItemType: "", Size: "One", Quantity: 3},
	}
}

// Close shuts down the mock server
func (m *MockInventoryBackend) Close() {
	m.Server.Close()
}

// URL returns the mock server's base URL
func (m *MockInventoryBackend) URL() string {
	return m.Server.URL
}

// SetFailureMode toggles the simulated failures
func (m *MockInventoryBackend) SetFailureMode(catalog, submit, actions bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldFailCatalog = catalog
	m.ShouldRejectSubmit = submit
	m.ShouldRejectActions = actions
}

// SubmitCount returns how many submit requests reached the backend
func (m *MockInventoryBackend) SubmitCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.SubmitAttempts
}

// LastSubmission returns the most recent accepted batch
func (m *MockInventoryBackend) LastSubmission() ([]order.Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.Submissions) == 0 {
		return nil, false
	}
	return m.Submissions[len(m.Submissions)-1], true
}

// ActionLog returns the stock actions that ran, in order
func (m *MockInventoryBackend) ActionLog() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.Actions...)
}

func (m *MockInventoryBackend) delay() {
	m.mu.RLock()
	d := m.SimulateNetworkDelay
	m.mu.RUnlock()
	if d > 0 {
		time.Sleep(d)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HTTP Handlers

func (m *MockInventoryBackend) handleItemsAndTypes(w http.ResponseWriter, r *http.Request) {
	m.delay()

	m.mu.Lock()
	m.CatalogRequests++
	fail := m.ShouldFailCatalog
	stock := append([]catalog.StockEntry(nil), m.Stock...)
	m.mu.Unlock()

	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database is locked"})
		return
	}
	writeJSON(w, http.StatusOK, catalog.FromStock(stock))
}

func (m *MockInventoryBackend) handleForemen(w http.ResponseWriter, r *http.Request) {
	m.delay()

	m.mu.RLock()
	fail := m.ShouldFailCatalog
	foremen := append([]string(nil), m.Foremen...)
	m.mu.RUnlock()

	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database is locked"})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"foremen": foremen})
}

func (m *MockInventoryBackend) handleSearch(w http.ResponseWriter, r *http.Request) {
	m.delay()

	query := strings.ToLower(r.URL.Query().Get("q"))
	searchType := r.URL.Query().Get("type")

	m.mu.Lock()
	m.SearchRequests++
	workers := append([]string(nil), m.Workers...)
	m.mu.Unlock()

	matched := []string{}
	if query != "" && searchType == "name" {
		for _, name := range workers {
			if strings.Contains(strings.ToLower(name), query) {
				matched = append(matched, name)
			}
		}
	}
	writeJSON(w, http.StatusOK, matched)
}

func (m *MockInventoryBackend) handleSubmit(w http.ResponseWriter, r *http.Request) {
	m.delay()

	var req struct {
		Data []order.Entry `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "failure", "message": err.Error()})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubmitAttempts++

	if m.ShouldRejectSubmit {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "failure", "message": "mock: submit rejected"})
		return
	}
	if len(req.Data) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "failure", "message": "No data received"})
		return
	}

	for _, e := range req.Data {
		m.Workers = addName(m.Workers, e.Name)
		m.Foremen = addName(m.Foremen, e.Foreman)
	}
	m.Submissions = append(m.Submissions, req.Data)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (m *MockInventoryBackend) handleAction(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.delay()

		m.mu.Lock()
		defer m.mu.Unlock()

		if m.ShouldRejectActions {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "failure", "message": "mock: sheet unavailable"})
			return
		}
		m.Actions = append(m.Actions, name)
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}

func addName(names []string, name string) []string {
	for _, n := range names {
		if n == name {
			return names
		}
	}
	names = append(names, name)
	sort.Strings(names)
	return names
}
