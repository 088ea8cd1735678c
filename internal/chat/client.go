package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrChatTransport indicates the chat-completion call produced no usable
// reply. It is always recovered locally with a fallback message.
var ErrChatTransport = errors.New("chat transport failure")

// ErrHistoryLoad indicates the history fetch failed; the caller falls back
// to a welcome message.
var ErrHistoryLoad = errors.New("history load failed")

// HistoryEntry is one prior turn as sent to the completion endpoint
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the assistant's answer to one send
type Reply struct {
	Text           string
	SupportMessage string
	FollowUps      []string
}

// Client talks to the chat-completion and history endpoints
type Client struct {
	baseURL       string
	token         string
	chatClient    *http.Client
	historyClient *http.Client
}

// NewClient creates a chat API client with bounded per-call timeouts so a
// hung request can never block the caller indefinitely
func NewClient(baseURL, token string, chatTimeout, historyTimeout time.Duration) *Client {
	return &Client{
		baseURL:       baseURL,
		token:         token,
		chatClient:    &http.Client{Timeout: chatTimeout},
		historyClient: &http.Client{Timeout: historyTimeout},
	}
}

// chatRequest is the completion request body
type chatRequest struct {
	Message   string         `json:"message"`
	History   []HistoryEntry `json:"history"`
	SessionID string         `json:"sessionId"`
}

// chatResponse is the completion response envelope. Success is a pointer
// so only an explicit false counts as a server-declared failure.
type chatResponse struct {
	Success *bool `json:"success"`
	Data    struct {
		Reply   string `json:"reply"`
		Emotion struct {
			SupportMessage string   `json:"supportMessage"`
			FollowUps      []string `json:"followUps"`
		} `json:"emotion"`
	} `json:"data"`
}

// Complete sends the message plus full prior history to the completion
// endpoint and returns the assistant's reply
func (c *Client) Complete(ctx context.Context, sessionID, message string, history []HistoryEntry) (Reply, error) {
	payload, err := json.Marshal(chatRequest{
		Message:   message,
		History:   history,
		SessionID: sessionID,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("failed to serialize chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ai/chat", bytes.NewReader(payload))
	if err != nil {
		return Reply{}, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.chatClient.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrChatTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Reply{}, fmt.Errorf("%w: chat returned status %d", ErrChatTransport, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrChatTransport, err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Reply{}, fmt.Errorf("%w: malformed chat response: %v", ErrChatTransport, err)
	}
	if parsed.Success != nil && !*parsed.Success {
		// A 200 with success false is still a failed turn; the caller must
		// fall back, not render a silent empty reply
		return Reply{}, fmt.Errorf("%w: server reported failure", ErrChatTransport)
	}

	followUps := parsed.Data.Emotion.FollowUps
	if len(followUps) > 2 {
		followUps = followUps[:2]
	}

	return Reply{
		Text:           strings.TrimSpace(parsed.Data.Reply),
		SupportMessage: strings.TrimSpace(parsed.Data.Emotion.SupportMessage),
		FollowUps:      followUps,
	}, nil
}

// wireHistoryEntry tolerates drift in the history record shape
type wireHistoryEntry struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// History loads the stored transcript for a session
func (c *Client) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	u := fmt.Sprintf("%s/ai/history?sessionId=%s&limit=%s",
		c.baseURL, url.QueryEscape(sessionID), strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create history request: %w", err)
	}
	c.authorize(req)

	resp, err := c.historyClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryLoad, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: history returned status %d", ErrHistoryLoad, resp.StatusCode)
	}

	var envelope struct {
		Success *bool              `json:"success"`
		Data    []wireHistoryEntry `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: malformed history response: %v", ErrHistoryLoad, err)
	}
	if envelope.Success != nil && !*envelope.Success {
		return nil, fmt.Errorf("%w: server reported failure", ErrHistoryLoad)
	}

	messages := make([]Message, 0, len(envelope.Data))
	for _, entry := range envelope.Data {
		content := strings.TrimSpace(entry.Content)
		if content == "" {
			continue
		}
		role := entry.Role
		if role != RoleUser {
			role = RoleAssistant
		}
		ts := time.Time{}
		if entry.CreatedAt != "" {
			if parsed, err := time.Parse(time.RFC3339, entry.CreatedAt); err == nil {
				ts = parsed
			}
		}
		messages = append(messages, Message{
			ID:      "srv-" + strconv.Itoa(len(messages)),
			Role:    role,
			Content: content,
			Ts:      ts,
		})
	}
	return messages, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
