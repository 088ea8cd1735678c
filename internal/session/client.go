package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the session endpoints of the backend. The server's
// response shapes have drifted over time, so everything read from it goes
// through one defensive normalization path.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a session API client with a bounded timeout
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// List fetches the server's session catalog, normalized and ready to sort
func (c *Client) List(ctx context.Context) ([]Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ai/sessions", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: session list returned status %d", ErrServerUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read session list: %w", err)
	}

	sessions, err := normalizeSessionList(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	return sessions, nil
}

// Create asks the server to register a session record
func (c *Client) Create(ctx context.Context, id, title string) error {
	payload, _ := json.Marshal(map[string]string{
		"sessionId": id,
		"title":     title,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ai/sessions", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: session create returned status %d", ErrServerUnavailable, resp.StatusCode)
	}
	if !ackOK(resp.Body) {
		return fmt.Errorf("%w: session create not acknowledged", ErrServerUnavailable)
	}
	return nil
}

// Delete asks the server to remove a session record
func (c *Client) Delete(ctx context.Context, id string) error {
	u := c.baseURL + "/ai/sessions?sessionId=" + url.QueryEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: session delete returned status %d", ErrDeleteFailed, resp.StatusCode)
	}
	if !ackOK(resp.Body) {
		return fmt.Errorf("%w: session delete not acknowledged", ErrDeleteFailed)
	}
	return nil
}

// ackOK reads a mutation response body and reports whether the server
// acknowledged it. Only an explicit success false is a refusal; a missing
// or unparseable body is tolerated as an ack.
func ackOK(body io.Reader) bool {
	var ack struct {
		Success *bool `json:"success"`
	}
	if err := json.NewDecoder(body).Decode(&ack); err != nil {
		return true
	}
	return ack.Success == nil || *ack.Success
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// wireSession tolerates the field aliases the backend has shipped
type wireSession struct {
	SessionID     string          `json:"sessionId"`
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	LastText      string          `json:"lastText"`
	UpdatedAt     json.RawMessage `json:"updatedAt"`
	LastMessageAt json.RawMessage `json:"lastMessageAt"`
}

// normalizeSessionList extracts sessions from whichever envelope the server
// used: data as an array, data.items, or a top-level sessions field.
func normalizeSessionList(raw []byte) ([]Session, error) {
	var envelope struct {
		Success  *bool           `json:"success"`
		Data     json.RawMessage `json:"data"`
		Sessions json.RawMessage `json:"sessions"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse session list envelope: %w", err)
	}
	if envelope.Success != nil && !*envelope.Success {
		return nil, fmt.Errorf("session list not acknowledged by server")
	}

	candidates := [][]byte{}
	if len(envelope.Data) > 0 {
		candidates = append(candidates, envelope.Data)
		var nested struct {
			Items json.RawMessage `json:"items"`
		}
		if json.Unmarshal(envelope.Data, &nested) == nil && len(nested.Items) > 0 {
			candidates = append(candidates, nested.Items)
		}
	}
	if len(envelope.Sessions) > 0 {
		candidates = append(candidates, envelope.Sessions)
	}

	for _, candidate := range candidates {
		var items []wireSession
		if err := json.Unmarshal(candidate, &items); err != nil {
			continue
		}
		sessions := make([]Session, 0, len(items))
		for _, item := range items {
			if s, ok := item.normalize(); ok {
				sessions = append(sessions, s)
			}
		}
		return sessions, nil
	}

	// An answer with no recognizable list is an empty catalog
	return nil, nil
}

// normalize maps a wire record to a Session; records without any id are
// dropped rather than invented
func (w wireSession) normalize() (Session, bool) {
	id := w.SessionID
	if id == "" {
		id = w.ID
	}
	if id == "" {
		return Session{}, false
	}

	title := w.Title
	if title == "" {
		title = DeriveTitle(w.LastText)
	}

	updatedAt := parseTimestamp(w.UpdatedAt)
	if updatedAt.IsZero() {
		updatedAt = parseTimestamp(w.LastMessageAt)
	}

	return Session{ID: id, Title: title, UpdatedAt: updatedAt}, true
}

// parseTimestamp accepts RFC3339 strings and numeric epochs (seconds or
// milliseconds); anything else is the zero time
func parseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}

	var asString string
	if json.Unmarshal(raw, &asString) == nil {
		asString = strings.TrimSpace(asString)
		if t, err := time.Parse(time.RFC3339, asString); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339Nano, asString); err == nil {
			return t
		}
		if n, err := strconv.ParseInt(asString, 10, 64); err == nil {
			return epochToTime(n)
		}
		return time.Time{}
	}

	var asNumber int64
	if json.Unmarshal(raw, &asNumber) == nil {
		return epochToTime(asNumber)
	}
	return time.Time{}
}

func epochToTime(n int64) time.Time {
	if n <= 0 {
		return time.Time{}
	}
	// Heuristic: values past the year ~33658 in seconds are milliseconds
	if n > 1_000_000_000_000 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
