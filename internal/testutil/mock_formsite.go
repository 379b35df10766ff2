// Package testutil provides testing utilities for the Formsite exporter.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockFormsite is a configurable mock Formsite API server for testing.
type MockFormsite struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	PagesServed  []int // page parameter of every results request, in order
}

// NewMockFormsite creates a new mock Formsite server.
func NewMockFormsite() *MockFormsite {
	mock := &MockFormsite{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		if pageStr := r.URL.Query().Get("page"); pageStr != "" {
			if page, err := strconv.Atoi(pageStr); err == nil {
				mock.PagesServed = append(mock.PagesServed, page)
			}
		}
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server URL, usable as the client base URL.
func (m *MockFormsite) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockFormsite) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockFormsite) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PagesServed = nil
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockFormsite) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPagesServed returns the page numbers requested, in order.
func (m *MockFormsite) GetPagesServed() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, len(m.PagesServed))
	copy(out, m.PagesServed)
	return out
}

// SetHandler sets a custom handler for a specific path.
func (m *MockFormsite) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockFormsite) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetResultsPages serves the given page bodies for a form's results
// endpoint, keyed by the "page" query parameter. Every response carries
// the last-page header derived from len(pages).
func (m *MockFormsite) SetResultsPages(formID string, pages []string) {
	m.SetHandler(fmt.Sprintf("/forms/%s/results", formID), func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 || page > len(pages) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"error":{"status":422,"message":"invalid page"}}`))
			return
		}
		w.Header().Set("Pagination-Page-Last", strconv.Itoa(len(pages)))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(pages[page-1]))
	})
}

// SetItems serves an items metadata document for a form.
func (m *MockFormsite) SetItems(formID, body string) {
	m.SetResponse(fmt.Sprintf("/forms/%s/items", formID), MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	})
}

// SetFile serves raw file content at a path (for download tests).
func (m *MockFormsite) SetFile(path, content string) {
	m.SetResponse(path, MockResponse{
		StatusCode: http.StatusOK,
		Body:       content,
		Headers:    map[string]string{"Content-Type": "application/octet-stream"},
	})
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":{"status":429,"message":"too many requests"}}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":{"status":500,"message":"internal error"}}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
