package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/careloop/voicechat/internal/observability"
	"github.com/rs/zerolog"
)

// Registry owns the conversation catalog: a capped local cache plus the
// server mirror. It is the only writer of the local store.
type Registry struct {
	client *Client
	store  Store
	cap    int
	logger zerolog.Logger

	mu      sync.Mutex
	entries []Session
}

// NewRegistry creates a registry, loading the cached catalog from the store
func NewRegistry(client *Client, store Store, cap int) *Registry {
	r := &Registry{
		client: client,
		store:  store,
		cap:    cap,
		logger: observability.GetLogger().With().Str("component", "session").Logger(),
	}

	if store != nil {
		cached, err := store.Load()
		if err != nil {
			r.logger.Warn().Err(err).Msg("Discarding unreadable session cache")
		} else {
			sortNewestFirst(cached)
			if len(cached) > cap {
				cached = cached[:cap]
			}
			r.entries = cached
		}
	}
	return r
}

// ListLocal returns the cached catalog, newest-updated first
func (r *Registry) ListLocal() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Session, len(r.entries))
	copy(out, r.entries)
	return out
}

// RefreshFromServer replaces the local cache wholesale with the server
// list. The server is authoritative on refresh; local-only entries that
// the server does not know about are dropped.
func (r *Registry) RefreshFromServer(ctx context.Context) error {
	sessions, err := r.client.List(ctx)
	if err != nil {
		observability.RecordSessionOp("refresh", false)
		r.logger.Warn().Err(err).Msg("Session refresh failed, keeping local catalog")
		return err
	}

	sortNewestFirst(sessions)
	if len(sessions) > r.cap {
		sessions = sessions[:r.cap]
	}

	r.mu.Lock()
	r.entries = sessions
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	observability.RecordSessionOp("refresh", true)
	r.persistAsync(snapshot)
	return nil
}

// Upsert moves or creates the entry at the head of the cache, evicting the
// oldest entry past the cap. Persistence is asynchronous and best-effort.
func (r *Registry) Upsert(id, title string) {
	r.mu.Lock()

	updated := make([]Session, 0, len(r.entries)+1)
	head := Session{ID: id, Title: title, UpdatedAt: time.Now().UTC()}
	for _, s := range r.entries {
		if s.ID == id {
			if title == "" {
				head.Title = s.Title
			}
			continue
		}
		updated = append(updated, s)
	}
	updated = append([]Session{head}, updated...)
	if len(updated) > r.cap {
		updated = updated[:r.cap]
	}
	r.entries = updated
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.persistAsync(snapshot)
}

// CreateRemote registers the session with the server. On failure the
// session proceeds local-only: the catalog entry stays, and the returned
// acked flag lets the caller distinguish the two outcomes.
func (r *Registry) CreateRemote(ctx context.Context, id, title string) (acked bool, err error) {
	r.Upsert(id, title)

	if err := r.client.Create(ctx, id, title); err != nil {
		observability.RecordSessionOp("create", false)
		r.logger.Warn().Err(err).Str("session_id", id).Msg("Server did not ack session create, continuing local-only")
		return false, fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}

	observability.RecordSessionOp("create", true)
	return true, nil
}

// Delete removes a session, server-confirmed only: if the server call
// fails the local entry is untouched and the failure is surfaced.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.client.Delete(ctx, id); err != nil {
		observability.RecordSessionOp("delete", false)
		r.logger.Warn().Err(err).Str("session_id", id).Msg("Session delete not confirmed, local entry kept")
		return err
	}

	r.mu.Lock()
	kept := r.entries[:0]
	for _, s := range r.entries {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	r.entries = kept
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	observability.RecordSessionOp("delete", true)
	r.persistAsync(snapshot)
	return nil
}

// Contains reports whether the catalog has an entry for id
func (r *Registry) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.entries {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (r *Registry) snapshotLocked() []Session {
	snapshot := make([]Session, len(r.entries))
	copy(snapshot, r.entries)
	return snapshot
}

// persistAsync writes the snapshot in the background; cache-write failures
// are logged and swallowed, never surfaced
func (r *Registry) persistAsync(snapshot []Session) {
	if r.store == nil {
		return
	}
	go func() {
		if err := r.store.Save(snapshot); err != nil {
			r.logger.Warn().Err(err).Msg("Best-effort session cache write failed")
			observability.RecordError("cache_write_error", "session")
		}
	}()
}
