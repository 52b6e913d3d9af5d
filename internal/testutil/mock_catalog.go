// Package testutil provides testing utilities for the pokedex pipeline.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// CatalogPath is the listing endpoint served by MockCatalog.
const CatalogPath = "/api/v2/pokemon"

// MockRecord is one listing entry served by the mock.
type MockRecord struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// MockResponse overrides the listing with a canned response.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockCatalog is a configurable mock of the paginated catalog API.
type MockCatalog struct {
	server   *httptest.Server
	mu       sync.RWMutex
	records  []MockRecord
	override *MockResponse

	// Tracking
	requestCount int
	lastQuery    url.Values
	lastHeader   http.Header
}

// NewMockCatalog starts a mock serving total generated records with ids 1..total.
func NewMockCatalog(total int) *MockCatalog {
	mock := &MockCatalog{}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	mock.records = GenerateRecords(mock.server.URL, 1, total)
	return mock
}

// GenerateRecords returns count records with ids starting at first, whose
// resource URLs are rooted at baseURL.
func GenerateRecords(baseURL string, first, count int) []MockRecord {
	records := make([]MockRecord, 0, count)
	for id := first; id < first+count; id++ {
		records = append(records, MockRecord{
			Name: fmt.Sprintf("pokemon-%d", id),
			URL:  fmt.Sprintf("%s%s/%d/", baseURL, CatalogPath, id),
		})
	}
	return records
}

// URL returns the mock server root URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// CatalogURL returns the full listing endpoint URL.
func (m *MockCatalog) CatalogURL() string {
	return m.server.URL + CatalogPath
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// SetRecords replaces the served dataset.
func (m *MockCatalog) SetRecords(records []MockRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
}

// Records returns a copy of the served dataset.
func (m *MockCatalog) Records() []MockRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MockRecord(nil), m.records...)
}

// SetResponse makes every request return resp instead of the listing.
func (m *MockCatalog) SetResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.override = &resp
}

// ClearResponse restores the listing behavior.
func (m *MockCatalog) ClearResponse() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.override = nil
}

// RequestCount returns the number of requests made to the server.
func (m *MockCatalog) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// LastQuery returns the query of the most recent request.
func (m *MockCatalog) LastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

// LastHeader returns the headers of the most recent request.
func (m *MockCatalog) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

func (m *MockCatalog) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	m.lastQuery = r.URL.Query()
	m.lastHeader = r.Header.Clone()
	override := m.override
	records := m.records
	m.mu.Unlock()

	if override != nil {
		if override.Delay > 0 {
			time.Sleep(override.Delay)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(override.StatusCode)
		w.Write([]byte(override.Body))
		return
	}

	if r.URL.Path != CatalogPath {
		http.NotFound(w, r)
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		limit = 20
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	start := min(offset, len(records))
	end := min(start+limit, len(records))

	page := struct {
		Count    int          `json:"count"`
		Next     *string      `json:"next"`
		Previous *string      `json:"previous"`
		Results  []MockRecord `json:"results"`
	}{
		Count:   len(records),
		Results: records[start:end],
	}
	if end < len(records) {
		next := fmt.Sprintf("%s%s?offset=%d&limit=%d", m.server.URL, CatalogPath, end, limit)
		page.Next = &next
	}
	if start > 0 {
		prev := fmt.Sprintf("%s%s?offset=%d&limit=%d", m.server.URL, CatalogPath, max(start-limit, 0), limit)
		page.Previous = &prev
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(page)
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `Not Found`,
	}
}
