package httpapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/services"
	"reelforge/internal/services/httpapi"
)

func TestPostJSONSendsBearerAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("X-Request-ID"); got != "req-1" {
			t.Errorf("request id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	}))
	defer srv.Close()

	client, err := httpapi.New("synthesis", config.Collaborator{BaseURL: srv.URL + "/", APIKey: "secret", RequestsPerSecond: 100})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var out struct {
		Value string `json:"value"`
	}
	ctx := services.WithRequestID(context.Background(), "req-1")
	if err := client.PostJSON(ctx, "/v1/echo", map[string]string{"a": "b"}, &out); err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if out.Value != "ok" {
		t.Fatalf("decoded %q", out.Value)
	}
}

func TestStatusErrorsAreClassified(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusBadGateway)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		http.Error(w, "upstream exploded", int(status.Load()))
	}))
	defer srv.Close()
	client, _ := httpapi.New("avatar", config.Collaborator{BaseURL: srv.URL})

	err := client.PostJSON(context.Background(), "/v1/render", struct{}{}, nil)
	if !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
	var statusErr *httpapi.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway || statusErr.RetryAfter != 3*time.Second {
		t.Fatalf("status error = %+v", statusErr)
	}
	if !strings.Contains(err.Error(), "upstream exploded") {
		t.Fatalf("body missing from error: %v", err)
	}
	if !httpapi.Retryable(err) {
		t.Fatalf("5xx must be retryable")
	}

	status.Store(http.StatusUnprocessableEntity)
	err = client.PostJSON(context.Background(), "/v1/render", struct{}{}, nil)
	if httpapi.Retryable(err) {
		t.Fatalf("422 must not be retryable: %v", err)
	}
	status.Store(http.StatusTooManyRequests)
	err = client.PostJSON(context.Background(), "/v1/render", struct{}{}, nil)
	if !httpapi.Retryable(err) {
		t.Fatalf("429 must be retryable: %v", err)
	}
}

func TestCancelledRequestIsCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)
	client, _ := httpapi.New("synthesis", config.Collaborator{BaseURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := client.PostJSON(ctx, "/v1/synthesize", struct{}{}, nil)
	if !services.IsCancellation(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if httpapi.Retryable(err) {
		t.Fatalf("cancellation must not be retryable")
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := httpapi.New("synthesis", config.Collaborator{}); err == nil {
		t.Fatalf("expected error without base url")
	}
}
