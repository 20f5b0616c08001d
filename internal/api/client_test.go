package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rednet-io/rednet-go/internal/config"
)

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://rednet.example.com/")

		if c.baseURL != "https://rednet.example.com" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://rednet.example.com")
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 3)
		}
		if c.retryBackoff != time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, time.Second)
		}
		if c.Header("User-Agent") != config.DefaultUserAgent {
			t.Errorf("User-Agent = %q, want %q", c.Header("User-Agent"), config.DefaultUserAgent)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with timeout option", func(t *testing.T) {
		c := NewClient("https://rednet.example.com", WithTimeout(5*time.Second))
		if c.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 5*time.Second)
		}
	})

	t.Run("with retries option", func(t *testing.T) {
		c := NewClient("https://rednet.example.com", WithRetries(5, 2*time.Second))
		if c.maxRetries != 5 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 5)
		}
		if c.retryBackoff != 2*time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 2*time.Second)
		}
	})

	t.Run("with retry policy", func(t *testing.T) {
		c := NewClient("https://rednet.example.com", WithRetryPolicy(3, 10*time.Second, []int{418}))
		if c.backoffFactor != 3 {
			t.Errorf("backoffFactor = %v, want 3", c.backoffFactor)
		}
		if !c.retryStatus[418] || c.retryStatus[503] {
			t.Errorf("retryStatus = %v, want only 418", c.retryStatus)
		}
	})

	t.Run("with logger option", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("https://rednet.example.com", WithLogger(logger))
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
	})

	t.Run("with custom HTTP client", func(t *testing.T) {
		customClient := &http.Client{Timeout: 10 * time.Second}
		c := NewClient("https://rednet.example.com", WithHTTPClient(customClient))
		if c.httpClient != customClient {
			t.Error("custom HTTP client not set")
		}
	})

	t.Run("with headers and prefix", func(t *testing.T) {
		c := NewClient("https://rednet.example.com",
			WithPrefix("/api"),
			WithHeaders(map[string]string{"X-Team": "red"}),
		)
		if got := c.URL("/agent"); got != "https://rednet.example.com/api/agent" {
			t.Errorf("URL() = %q, want %q", got, "https://rednet.example.com/api/agent")
		}
		if c.Header("X-Team") != "red" {
			t.Errorf("X-Team = %q, want %q", c.Header("X-Team"), "red")
		}
	})
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.BaseURL = "https://rednet.example.com"
	cfg.APIPrefix = "/v1"
	cfg.Token = "tok"
	off := false
	cfg.Retry.Enabled = &off

	c, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig() error: %v", err)
	}

	if c.maxRetries != 0 {
		t.Errorf("maxRetries = %d, want 0 with retries disabled", c.maxRetries)
	}
	if c.Header("Authorization") != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", c.Header("Authorization"), "Bearer tok")
	}
	if c.URL("/agent") != "https://rednet.example.com/v1/agent" {
		t.Errorf("URL() = %q", c.URL("/agent"))
	}
	if c.channelCfg.ReconnectDelay != config.DefaultReconnectDelay {
		t.Errorf("channel ReconnectDelay = %v, want %v", c.channelCfg.ReconnectDelay, config.DefaultReconnectDelay)
	}
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	t.Run("Error method", func(t *testing.T) {
		err := &APIError{
			StatusCode: 404,
			Message:    "Not Found",
			Body:       []byte(`{"error": "agent not found"}`),
		}
		expected := "rednet api error 404: Not Found"
		if err.Error() != expected {
			t.Errorf("Error() = %q, want %q", err.Error(), expected)
		}
	})

	t.Run("IsRetryable", func(t *testing.T) {
		tests := []struct {
			code     int
			expected bool
		}{
			{500, true},
			{502, true},
			{503, true},
			{504, true},
			{429, true},
			{408, true},
			{400, false},
			{401, false},
			{404, false},
			{200, false},
		}

		for _, tt := range tests {
			err := &APIError{StatusCode: tt.code}
			if got := err.IsRetryable(); got != tt.expected {
				t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
			}
		}
	})
}

func TestClientError(t *testing.T) {
	err := &ClientError{Kind: KindTimeout}
	if err.Error() != "Timeout" {
		t.Errorf("Error() = %q, want %q", err.Error(), "Timeout")
	}

	wrapped := &ClientError{Kind: KindConnection, Err: io.EOF}
	if !errors.Is(wrapped, io.EOF) {
		t.Error("ClientError should unwrap to its cause")
	}
	if !wrapped.IsRetryable() {
		t.Error("connection errors should be retryable")
	}
	if (&ClientError{Kind: KindInvalidSchema}).IsRetryable() {
		t.Error("schema errors should not be retryable")
	}
}

// TestDoRequest tests the HTTP request functionality.
func TestDoRequest(t *testing.T) {
	t.Run("successful request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("Accept header = %q, want %q", r.Header.Get("Accept"), "application/json")
			}
			if r.Header.Get("User-Agent") != config.DefaultUserAgent {
				t.Errorf("User-Agent = %q, want %q", r.Header.Get("User-Agent"), config.DefaultUserAgent)
			}
			if r.URL.Path != "/api/agent" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/api/agent")
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status": "ok"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithPrefix("/api"))
		body, err := c.doRequest(context.Background(), http.MethodGet, "/agent", nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"status": "ok"}` {
			t.Errorf("body = %q, want %q", string(body), `{"status": "ok"}`)
		}
	})

	t.Run("json body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", r.Header.Get("Content-Type"))
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"name":"alpha"}` {
				t.Errorf("body = %q", body)
			}
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.Request(context.Background(), http.MethodPost, "/agent", nil, map[string]string{"name": "alpha"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("error response carries server message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"statusCode":401,"message":"Unauthorized operator"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/operator", nil, nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T: %v", err, err)
		}
		if apiErr.StatusCode != http.StatusUnauthorized {
			t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusUnauthorized)
		}
		if apiErr.Message != "Unauthorized operator" {
			t.Errorf("Message = %q, want %q", apiErr.Message, "Unauthorized operator")
		}
	})

	t.Run("plain text error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`nope`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/agent/x", nil, nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.Message != "Not Found" {
			t.Errorf("Message = %q, want %q", apiErr.Message, "Not Found")
		}
		if string(apiErr.Body) != "nope" {
			t.Errorf("Body = %q, want %q", apiErr.Body, "nope")
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		c := NewClient(url)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/agent", nil, nil)

		var clientErr *ClientError
		if !errors.As(err, &clientErr) {
			t.Fatalf("expected *ClientError, got %T: %v", err, err)
		}
		if clientErr.Kind != KindConnection {
			t.Errorf("Kind = %v, want %v", clientErr.Kind, KindConnection)
		}
	})

	t.Run("invalid schema", func(t *testing.T) {
		c := NewClient("gopher://rednet.example.com")
		_, err := c.doRequest(context.Background(), http.MethodGet, "/agent", nil, nil)

		var clientErr *ClientError
		if !errors.As(err, &clientErr) {
			t.Fatalf("expected *ClientError, got %T: %v", err, err)
		}
		if clientErr.Kind != KindInvalidSchema {
			t.Errorf("Kind = %v, want %v", clientErr.Kind, KindInvalidSchema)
		}
	})

	t.Run("invalid url", func(t *testing.T) {
		c := NewClient("http://bad host")
		_, err := c.doRequest(context.Background(), http.MethodGet, "/agent", nil, nil)

		var clientErr *ClientError
		if !errors.As(err, &clientErr) {
			t.Fatalf("expected *ClientError, got %T: %v", err, err)
		}
		if clientErr.Kind != KindInvalidURL {
			t.Errorf("Kind = %v, want %v", clientErr.Kind, KindInvalidURL)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithTimeout(20*time.Millisecond))
		_, err := c.doRequest(context.Background(), http.MethodGet, "/agent", nil, nil)

		var clientErr *ClientError
		if !errors.As(err, &clientErr) {
			t.Fatalf("expected *ClientError, got %T: %v", err, err)
		}
		if clientErr.Kind != KindTimeout {
			t.Errorf("Kind = %v, want %v", clientErr.Kind, KindTimeout)
		}
	})
}

func TestDoWithRetry(t *testing.T) {
	t.Run("succeeds on first try", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
		body, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"ok": true}` {
			t.Errorf("body = %q, want %q", string(body), `{"ok": true}`)
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("retries on 503 and resends body", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&attempts, 1)
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"n":1}` {
				t.Errorf("attempt %d body = %q", n, body)
			}
			if n < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodPost, "/test", nil, []byte(`{"n":1}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("retries on 408", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				w.WriteHeader(http.StatusRequestTimeout)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 2 {
			t.Errorf("attempts = %d, want 2", attempts)
		}
	})

	t.Run("does not retry 501", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusNotImplemented)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil); err == nil {
			t.Fatal("expected error, got nil")
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("does not retry on 4xx", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`bad request`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`error`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(2, 10*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "max retries exceeded") {
			t.Errorf("error should contain 'max retries exceeded', got %v", err)
		}
		// 1 initial + 2 retries = 3 attempts
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("context cancellation during retry", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(5, 50*time.Millisecond))
		ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
		defer cancel()

		_, err := c.doWithRetry(ctx, http.MethodGet, "/test", nil, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "context") {
			t.Errorf("error should be context-related, got %v", err)
		}
	})
}
