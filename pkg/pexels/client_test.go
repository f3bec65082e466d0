package pexels

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/image-finder/internal/testutil"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	cfg := DefaultConfig("test-api-key")
	cfg.BaseURL = baseURL

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "default config",
			config:      DefaultConfig("key"),
			expectError: false,
		},
		{
			name: "empty api key is accepted",
			config: Config{
				BaseURL: DefaultBaseURL,
				PerPage: DefaultPerPage,
			},
			expectError: false,
		},
		{
			name: "empty base url",
			config: Config{
				APIKey:  "key",
				PerPage: DefaultPerPage,
			},
			expectError: true,
			errorMsg:    "base url is required",
		},
		{
			name: "per page too small",
			config: Config{
				APIKey:  "key",
				BaseURL: DefaultBaseURL,
				PerPage: 0,
			},
			expectError: true,
			errorMsg:    "per_page must be between 1 and 80 (got 0)",
		},
		{
			name: "per page too large",
			config: Config{
				APIKey:  "key",
				BaseURL: DefaultBaseURL,
				PerPage: 81,
			},
			expectError: true,
			errorMsg:    "per_page must be between 1 and 80 (got 81)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if client == nil {
				t.Error("Client is nil")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("abc")

	if cfg.APIKey != "abc" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "abc")
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.PerPage != 12 {
		t.Errorf("PerPage = %d, want 12", cfg.PerPage)
	}
	if cfg.Redis != nil {
		t.Error("Redis should be nil by default")
	}
}

func TestSearch_RequestShape(t *testing.T) {
	mock := testutil.NewMockPexels()
	defer mock.Close()

	client := newTestClient(t, mock.URL())

	if _, err := client.Search(context.Background(), "red cars", 3); err != nil {
		t.Fatalf("Search() failed: %v", err)
	}

	query := mock.GetLastQuery()
	if got := query.Get("query"); got != "red cars" {
		t.Errorf("query = %q, want %q", got, "red cars")
	}
	if got := query.Get("page"); got != "3" {
		t.Errorf("page = %q, want %q", got, "3")
	}
	if got := query.Get("per_page"); got != "12" {
		t.Errorf("per_page = %q, want %q", got, "12")
	}

	header := mock.GetLastRequestHeader()
	if got := header.Get("Authorization"); got != "test-api-key" {
		t.Errorf("Authorization = %q, want %q", got, "test-api-key")
	}
	if got := header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want %q", got, "application/json")
	}
}

func TestSearch_DecodesPhotos(t *testing.T) {
	mock := testutil.NewMockPexels()
	defer mock.Close()
	mock.SetPage("nature", 1, testutil.NewPhotosResponse(1, 10, 11, 12))

	client := newTestClient(t, mock.URL())

	result, err := client.Search(context.Background(), "nature", 1)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}

	if len(result.Photos) != 3 {
		t.Fatalf("len(Photos) = %d, want 3", len(result.Photos))
	}

	first := result.Photos[0]
	if first.ID != 10 {
		t.Errorf("ID = %d, want 10", first.ID)
	}
	if first.Photographer != "photographer 10" {
		t.Errorf("Photographer = %q", first.Photographer)
	}
	if first.Src.Medium == "" || first.Src.Original == "" {
		t.Errorf("Src = %+v, want medium and original set", first.Src)
	}
	if result.TotalResults != 3 {
		t.Errorf("TotalResults = %d, want 3", result.TotalResults)
	}
}

func TestSearch_EmptyPhotosIsSuccess(t *testing.T) {
	mock := testutil.NewMockPexels()
	defer mock.Close()
	mock.SetPage("zzzz", 1, testutil.NewPhotosResponse(1))

	client := newTestClient(t, mock.URL())

	result, err := client.Search(context.Background(), "zzzz", 1)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(result.Photos) != 0 {
		t.Errorf("len(Photos) = %d, want 0", len(result.Photos))
	}
}

func TestSearch_Failures(t *testing.T) {
	tests := []struct {
		name          string
		response      testutil.MockResponse
		expectedClass ErrorClass
		expectedCode  int
		expectedErr   error
	}{
		{
			name:          "not found",
			response:      testutil.NewErrorResponse(http.StatusNotFound),
			expectedClass: ErrorClassClient,
			expectedCode:  http.StatusNotFound,
		},
		{
			name:          "unauthorized",
			response:      testutil.NewErrorResponse(http.StatusUnauthorized),
			expectedClass: ErrorClassClient,
			expectedCode:  http.StatusUnauthorized,
		},
		{
			name:          "server error",
			response:      testutil.NewErrorResponse(http.StatusBadGateway),
			expectedClass: ErrorClassServer,
			expectedCode:  http.StatusBadGateway,
		},
		{
			name:          "malformed json",
			response:      testutil.NewMalformedResponse(),
			expectedClass: ErrorClassDecode,
			expectedCode:  http.StatusOK,
		},
		{
			name: "missing photos",
			response: testutil.MockResponse{
				StatusCode: http.StatusOK,
				Body:       `{"page": 1, "per_page": 12}`,
			},
			expectedClass: ErrorClassDecode,
			expectedCode:  http.StatusOK,
			expectedErr:   ErrMissingPhotos,
		},
		{
			name: "null photos",
			response: testutil.MockResponse{
				StatusCode: http.StatusOK,
				Body:       `{"photos": null}`,
			},
			expectedClass: ErrorClassDecode,
			expectedCode:  http.StatusOK,
			expectedErr:   ErrMissingPhotos,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockPexels()
			defer mock.Close()
			mock.SetFallback(tt.response)

			client := newTestClient(t, mock.URL())

			result, err := client.Search(context.Background(), "anything", 1)
			if err == nil {
				t.Fatalf("Expected error, got result %+v", result)
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Error %v is not an *APIError", err)
			}
			if apiErr.ErrorClass != tt.expectedClass {
				t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, tt.expectedClass)
			}
			if apiErr.StatusCode != tt.expectedCode {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.expectedCode)
			}
			if tt.expectedErr != nil && !errors.Is(err, tt.expectedErr) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.expectedErr)
			}
		})
	}
}

func TestSearch_NetworkError(t *testing.T) {
	mock := testutil.NewMockPexels()
	baseURL := mock.URL()
	mock.Close()

	client := newTestClient(t, baseURL)

	_, err := client.Search(context.Background(), "nature", 1)
	if err == nil {
		t.Fatal("Expected error for closed server")
	}
	if got := ClassOf(err); got != ErrorClassNetwork {
		t.Errorf("ClassOf(err) = %q, want %q", got, ErrorClassNetwork)
	}
}

func TestSearch_Timeout(t *testing.T) {
	mock := testutil.NewMockPexels()
	defer mock.Close()
	slow := testutil.NewPhotosResponse(1, 1)
	slow.Delay = 200 * time.Millisecond
	mock.SetFallback(slow)

	cfg := DefaultConfig("key")
	cfg.BaseURL = mock.URL()
	cfg.Timeout = 20 * time.Millisecond
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	_, err = client.Search(context.Background(), "nature", 1)
	if got := ClassOf(err); got != ErrorClassNetwork {
		t.Errorf("ClassOf(err) = %q, want %q (err=%v)", got, ErrorClassNetwork, err)
	}
}

func TestQuota_WithoutRedis(t *testing.T) {
	client := newTestClient(t, DefaultBaseURL)

	state, err := client.Quota(context.Background())
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if state != nil {
		t.Errorf("Quota() = %+v, want nil without Redis", state)
	}
}

func TestSearchResult_HasNext(t *testing.T) {
	var nilResult *SearchResult
	if nilResult.HasNext() {
		t.Error("nil result should not have a next page")
	}

	result := &SearchResult{NextPage: "https://api.pexels.com/v1/search/?page=2&per_page=12&query=nature"}
	if !result.HasNext() {
		t.Error("HasNext() = false, want true")
	}
}
