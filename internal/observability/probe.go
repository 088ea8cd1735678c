package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Prober performs pre-flight liveness checks against the backend.
// A failed probe gates whether a recording session may begin; it is
// reported to the caller, never retried automatically.
type Prober struct {
	client *http.Client
}

// NewProber creates a prober with a bounded-timeout HTTP client
func NewProber(timeout time.Duration) *Prober {
	return &Prober{
		client: &http.Client{Timeout: timeout},
	}
}

// Probe fires a single GET against the liveness endpoint.
// Any 2xx response counts as healthy.
func (p *Prober) Probe(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		RecordProbe(false)
		return false, fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode >= 200 && resp.StatusCode < 300
	RecordProbe(healthy)
	if !healthy {
		return false, fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return true, nil
}

// HealthStatus represents the health of this process, served locally
type HealthStatus struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// HealthCheckHandler serves the local health endpoint for the binary itself
func HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := HealthStatus{
			Status:    "healthy",
			Service:   "voicechat",
			Version:   "1.0.0",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	}
}
