package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trakly/trakboard/internal/errors"
)

func TestRetryableClient_DoWithRetry_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	client := NewRetryableClient(5*time.Second, 2)
	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.DoWithRetry(context.Background(), req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body after return: %v", err)
	}
	if string(body) != `{"success": true}` {
		t.Errorf("Unexpected body %q", body)
	}
}

func TestRetryableClient_DoWithRetry_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second) // Longer than timeout
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewRetryableClient(500*time.Millisecond, 0) // Short timeout, no retries
	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	if _, err := client.DoWithRetry(context.Background(), req); err == nil {
		t.Error("Expected timeout error, but got none")
	}
}

func TestRetryableClient_DoWithRetry_RetryOn500(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewRetryableClient(5*time.Second, 3).WithBackoff(time.Millisecond)
	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.DoWithRetry(context.Background(), req)
	if err != nil {
		t.Fatalf("Request failed after retries: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestRetryableClient_DoWithRetry_NoRetryOn400(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest) // 400 should not be retried
	}))
	defer server.Close()

	client := NewRetryableClient(5*time.Second, 3)
	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.DoWithRetry(context.Background(), req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("Expected 1 attempt (no retries), got %d", got)
	}
}

func TestRetryableClient_RetryResendsBody(t *testing.T) {
	var attempts int32
	var mu sync.Mutex
	var lastBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		lastBody = string(b)
		mu.Unlock()
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewRetryableClient(5*time.Second, 1).WithBackoff(time.Millisecond)
	req, err := NewJSONRequest(http.MethodPatch, server.URL, "", map[string]string{"workflow_column_id": "col-2"})
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if err := client.DoJSONRequest(context.Background(), req, nil); err != nil {
		t.Fatalf("PATCH failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if lastBody != `{"workflow_column_id":"col-2"}` {
		t.Errorf("Retried body = %q", lastBody)
	}
}

func TestNewJSONRequest_Headers(t *testing.T) {
	req, err := NewJSONRequest(http.MethodGet, "http://example.test/api/v1/issues", "tok", nil)
	if err != nil {
		t.Fatalf("NewJSONRequest: %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("Authorization = %q", got)
	}
	if req.Header.Get(RequestIDHeader) == "" {
		t.Error("missing request id")
	}
	if req.Header.Get("Content-Type") != "" {
		t.Error("Content-Type set on a bodiless request")
	}

	other, _ := NewJSONRequest(http.MethodGet, "http://example.test", "", nil)
	if other.Header.Get(RequestIDHeader) == req.Header.Get(RequestIDHeader) {
		t.Error("request ids repeat")
	}
	if other.Header.Get("Authorization") != "" {
		t.Error("Authorization set without a token")
	}
}

func TestRetryableClient_DoJSONRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message": "hello", "count": 42}`))
	}))
	defer server.Close()

	client := NewDefaultClient()
	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	var result struct {
		Message string `json:"message"`
		Count   int    `json:"count"`
	}
	if err := client.DoJSONRequest(context.Background(), req, &result); err != nil {
		t.Fatalf("JSON request failed: %v", err)
	}

	if result.Message != "hello" {
		t.Errorf("Expected message 'hello', got '%s'", result.Message)
	}
	if result.Count != 42 {
		t.Errorf("Expected count 42, got %d", result.Count)
	}
}

func TestRetryableClient_DoJSONRequest_HttpError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Issue not found"}`))
	}))
	defer server.Close()

	req, _ := http.NewRequest("GET", server.URL, nil)
	err := NewDefaultClient().DoJSONRequest(context.Background(), req, &struct{}{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.StatusCode(err) != http.StatusNotFound {
		t.Errorf("StatusCode = %d, err = %v", errors.StatusCode(err), err)
	}
}
