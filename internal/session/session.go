// Package session owns the conversation catalog: a local cache capped at a
// fixed size mirroring a server-of-record list. The server wins wholesale
// on refresh; local mutations are persisted best-effort.
package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrServerUnavailable indicates a session CRUD call failed; the
	// session remains usable locally
	ErrServerUnavailable = errors.New("session server unavailable")

	// ErrDeleteFailed indicates the server did not confirm a delete; the
	// local entry is kept
	ErrDeleteFailed = errors.New("session delete failed")
)

// Session is one conversation thread in the catalog
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// maxTitleLen caps the derived session title
const maxTitleLen = 60

// NewSessionID generates a client-side session id: time-based prefix plus
// a random suffix
func NewSessionID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// DeriveTitle builds a session title from the first line of a message,
// truncated rune-safely
func DeriveTitle(message string) string {
	line := message
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)

	runes := []rune(line)
	if len(runes) > maxTitleLen {
		line = string(runes[:maxTitleLen])
	}
	if line == "" {
		line = "Cuộc trò chuyện mới"
	}
	return line
}

// sortNewestFirst orders sessions by UpdatedAt descending in place
func sortNewestFirst(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
}
