package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestProbe_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(2 * time.Second)
	healthy, err := p.Probe(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Probe() failed: %v", err)
	}
	if !healthy {
		t.Error("Expected healthy probe result")
	}
}

func TestProbe_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewProber(2 * time.Second)
	healthy, err := p.Probe(context.Background(), srv.URL)
	if err == nil {
		t.Error("Expected error for 503 response")
	}
	if healthy {
		t.Error("Expected unhealthy probe result")
	}
}

func TestProbe_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p := NewProber(50 * time.Millisecond)
	healthy, err := p.Probe(context.Background(), srv.URL)
	if err == nil {
		t.Error("Expected timeout error")
	}
	if healthy {
		t.Error("Expected unhealthy result on timeout")
	}
}

func TestProbe_Unreachable(t *testing.T) {
	p := NewProber(500 * time.Millisecond)
	healthy, err := p.Probe(context.Background(), "http://127.0.0.1:1/health")
	if err == nil {
		t.Error("Expected connection error")
	}
	if healthy {
		t.Error("Expected unhealthy result for unreachable host")
	}
}
