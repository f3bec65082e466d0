// Package testutil provides testing utilities for the image finder.
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

// SearchPath is the path the mock serves searches on.
const SearchPath = "/v1/search"

// MockResponse defines the behavior for a mock search response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockPexels is a configurable mock Pexels server for testing.
type MockPexels struct {
	server *httptest.Server
	mu     sync.RWMutex

	// pages maps "query/page" to a canned response.
	pages    map[string]MockResponse
	fallback *MockResponse

	// Tracking
	RequestCount      int
	LastQuery         url.Values
	LastRequestHeader http.Header
}

// NewMockPexels creates a new mock Pexels server.
func NewMockPexels() *MockPexels {
	mock := &MockPexels{
		pages: make(map[string]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastQuery = r.URL.Query()
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		if r.URL.Path != SearchPath {
			http.NotFound(w, r)
			return
		}

		query := r.URL.Query().Get("query")
		page := r.URL.Query().Get("page")

		mock.mu.RLock()
		resp, exists := mock.pages[pageKey(query, page)]
		fallback := mock.fallback
		mock.mu.RUnlock()

		switch {
		case exists:
			writeResponse(w, resp)
		case fallback != nil:
			writeResponse(w, *fallback)
		default:
			writeResponse(w, NewPhotosResponse(atoi(page)))
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockPexels) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPexels) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockPexels) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastQuery = nil
	m.LastRequestHeader = nil
}

// SetPage configures the response for one (query, page) pair.
func (m *MockPexels) SetPage(query string, page int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[pageKey(query, strconv.Itoa(page))] = resp
}

// SetFallback configures the response for every unconfigured pair.
func (m *MockPexels) SetFallback(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &resp
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockPexels) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastQuery returns the query parameters of the last request.
func (m *MockPexels) GetLastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// GetLastRequestHeader returns the headers of the last request.
func (m *MockPexels) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// NewPhotosResponse creates a 200 OK search response holding photos with the given IDs.
func NewPhotosResponse(page int, ids ...int64) MockResponse {
	type src struct {
		Original string `json:"original"`
		Medium   string `json:"medium"`
	}
	type photo struct {
		ID           int64  `json:"id"`
		Alt          string `json:"alt"`
		Photographer string `json:"photographer"`
		Src          src    `json:"src"`
	}

	photos := make([]photo, 0, len(ids))
	for _, id := range ids {
		photos = append(photos, photo{
			ID:           id,
			Alt:          fmt.Sprintf("photo %d", id),
			Photographer: fmt.Sprintf("photographer %d", id),
			Src: src{
				Original: fmt.Sprintf("https://images.pexels.com/photos/%d/original.jpeg", id),
				Medium:   fmt.Sprintf("https://images.pexels.com/photos/%d/medium.jpeg", id),
			},
		})
	}

	body, _ := json.Marshal(map[string]any{
		"page":          page,
		"per_page":      12,
		"total_results": len(ids),
		"photos":        photos,
	})

	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type":          "application/json",
			"X-Ratelimit-Limit":     "20000",
			"X-Ratelimit-Remaining": "19999",
			"X-Ratelimit-Reset":     strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10),
		},
	}
}

// NewErrorResponse creates a response with the given status and a JSON error body.
func NewErrorResponse(statusCode int) MockResponse {
	return MockResponse{
		StatusCode: statusCode,
		Body:       fmt.Sprintf(`{"error": %q}`, http.StatusText(statusCode)),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not valid JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"photos": [`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
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
}

func pageKey(query, page string) string {
	return query + "/" + page
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
