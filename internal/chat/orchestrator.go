package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/careloop/voicechat/internal/moderation"
	"github.com/careloop/voicechat/internal/observability"
	"github.com/careloop/voicechat/internal/recorder"
	"github.com/careloop/voicechat/internal/resilience"
	"github.com/careloop/voicechat/internal/session"
	"github.com/careloop/voicechat/internal/transcription"
)

// ErrSendInFlight is returned when a send is attempted while a previous
// send has not completed. Sends are strictly serialized.
var ErrSendInFlight = errors.New("a send is already in flight")

// Canned assistant-side copy. The product speaks Vietnamese.
const (
	welcomeMessage   = "Xin chào! Mình là trợ lý sức khỏe của bạn. Hôm nay bạn cảm thấy thế nào?"
	fallbackMessage  = "Xin lỗi, hiện tại mình chưa thể trả lời. Bạn thử lại sau ít phút nhé."
	moderationFormat = "Tin nhắn của bạn chứa từ ngữ không phù hợp (%q) nên chưa được gửi đi."
	moderationAdvice = "Vui lòng diễn đạt lại một cách lịch sự hơn nhé."
	emptyVoiceNotice = "Mình chưa nghe rõ, bạn thử nói lại nhé."
	voiceFailNotice  = "Không thể gửi bản ghi âm. Vui lòng kiểm tra kết nối mạng."
)

// Completer is the chat backend surface the orchestrator needs
type Completer interface {
	Complete(ctx context.Context, sessionID, message string, history []HistoryEntry) (Reply, error)
	History(ctx context.Context, sessionID string, limit int) ([]Message, error)
}

// Catalog is the session-catalog surface the orchestrator needs
type Catalog interface {
	Upsert(id, title string)
	CreateRemote(ctx context.Context, id, title string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// Transcriber turns a recorded artifact into text
type Transcriber interface {
	Transcribe(ctx context.Context, artifact recorder.Artifact) (string, error)
}

// Notifier delivers out-of-band user notices (toasts in a UI, stderr in
// the CLI)
type Notifier func(message string)

// Config tunes an Orchestrator
type Config struct {
	ChatTimeout  time.Duration
	HistoryLimit int
	Transcriber  Transcriber
	Notify       Notifier
}

// Orchestrator owns the active conversation: the append-only message log,
// the follow-up suggestions, and the send pipeline with its moderation
// gate. All exported methods are safe for concurrent use.
type Orchestrator struct {
	completer Completer
	catalog   Catalog
	filter    *moderation.Filter
	breaker   *resilience.CircuitBreaker

	chatTimeout  time.Duration
	historyLimit int
	transcriber  Transcriber
	notify       Notifier
	logger       zerolog.Logger

	mu          sync.Mutex
	sessionID   string
	messages    []Message
	suggestions []string
	sending     bool
	// sendingEpoch records which epoch owns the sending guard, so a stale
	// send finishing after a switch cannot release a newer send's guard
	sendingEpoch uint64
	switchEpoch  uint64
}

// NewOrchestrator creates an orchestrator with a fresh welcome log and a
// new session id. The caller decides when to register it remotely.
func NewOrchestrator(completer Completer, catalog Catalog, filter *moderation.Filter, breaker *resilience.CircuitBreaker, cfg Config) *Orchestrator {
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = 30 * time.Second
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	return &Orchestrator{
		completer:    completer,
		catalog:      catalog,
		filter:       filter,
		breaker:      breaker,
		chatTimeout:  cfg.ChatTimeout,
		historyLimit: cfg.HistoryLimit,
		transcriber:  cfg.Transcriber,
		notify:       cfg.Notify,
		logger:       observability.GetLogger().With().Str("component", "chat").Logger(),
		sessionID:    session.NewSessionID(),
		messages:     []Message{newMessage(RoleAssistant, welcomeMessage)},
	}
}

// ActiveSession returns the id of the conversation currently on screen
func (o *Orchestrator) ActiveSession() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// Sending reports whether a send is in flight
func (o *Orchestrator) Sending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sending
}

// Messages returns a copy of the conversation log in insertion order
func (o *Orchestrator) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.messages))
	copy(out, o.messages)
	return out
}

// Suggestions returns the current follow-up suggestions, at most two
func (o *Orchestrator) Suggestions() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.suggestions))
	copy(out, o.suggestions)
	return out
}

// Send runs one text turn through the pipeline: moderation gate, optimistic
// append, completion call behind the circuit breaker, reply append. A
// whitespace-only message is a no-op. Transport failures never surface to
// the caller; the log gets a fallback assistant message instead.
func (o *Orchestrator) Send(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	o.mu.Lock()
	if o.sending {
		o.mu.Unlock()
		return ErrSendInFlight
	}

	// Moderation gates before anything leaves the process. A blocked
	// message is answered locally and never reaches the network.
	if res := o.filter.Check(trimmed); res.Hit {
		o.messages = append(o.messages,
			newMessage(RoleAssistant, fmt.Sprintf(moderationFormat, res.MatchedTerm)),
			newMessage(RoleAssistant, moderationAdvice))
		o.suggestions = nil
		o.mu.Unlock()

		observability.RecordModerationHit()
		observability.RecordChatSend("moderated", 0)
		o.logger.Info().Str("matched_term", res.MatchedTerm).Msg("Message blocked by moderation")
		return nil
	}

	history := make([]HistoryEntry, 0, len(o.messages))
	for _, m := range o.messages {
		history = append(history, HistoryEntry{Role: m.Role, Content: m.Content})
	}
	o.messages = append(o.messages, newMessage(RoleUser, trimmed))
	o.suggestions = nil
	sessionID := o.sessionID
	epoch := o.switchEpoch
	o.sending = true
	o.sendingEpoch = epoch
	o.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, o.chatTimeout)
	defer cancel()

	var reply Reply
	start := time.Now()
	err := o.breaker.Call(func() error {
		var callErr error
		reply, callErr = o.completer.Complete(callCtx, sessionID, trimmed, history)
		return callErr
	})
	observability.UpdateCircuitBreakerState("chat", int(o.breaker.State()))

	o.mu.Lock()
	if epoch == o.switchEpoch {
		if err != nil {
			o.messages = append(o.messages, newMessage(RoleAssistant, fallbackMessage))
		} else {
			if reply.Text != "" {
				o.messages = append(o.messages, newMessage(RoleAssistant, reply.Text))
			}
			if reply.SupportMessage != "" {
				o.messages = append(o.messages, newMessage(RoleAssistant, reply.SupportMessage))
			}
			o.suggestions = append([]string(nil), reply.FollowUps...)
		}
	}
	// Only the send that owns the guard may release it; a stale send
	// superseded by a switch must leave the current send's guard armed
	if o.sendingEpoch == epoch {
		o.sending = false
	}
	o.mu.Unlock()

	if err != nil {
		observability.RecordChatSend("fallback", time.Since(start).Seconds())
		observability.RecordError("chat_transport_error", "chat")
		o.logger.Warn().Err(err).Msg("Chat completion failed, replied with fallback")
	} else {
		observability.RecordChatSend("success", time.Since(start).Seconds())
	}

	// The catalog reflects every attempted turn, delivered or not
	o.catalog.Upsert(sessionID, session.DeriveTitle(trimmed))
	return nil
}

// SendVoice transcribes a recorded artifact and sends the result as a text
// turn. An empty transcription is an informational notice, not an error.
func (o *Orchestrator) SendVoice(ctx context.Context, artifact recorder.Artifact) error {
	if o.transcriber == nil {
		return errors.New("no transcriber configured")
	}

	text, err := o.transcriber.Transcribe(ctx, artifact)
	if errors.Is(err, transcription.ErrEmptyTranscription) {
		o.notifyUser(emptyVoiceNotice)
		return nil
	}
	if err != nil {
		o.notifyUser(voiceFailNotice)
		observability.RecordError("transcription_error", "chat")
		o.logger.Warn().Err(err).Msg("Voice turn dropped, transcription failed")
		return err
	}
	return o.Send(ctx, text)
}

// SwitchTo makes id the active conversation and loads its history. Rapid
// successive switches resolve last-requested-wins: a stale history load is
// discarded when a later switch has already taken over.
func (o *Orchestrator) SwitchTo(ctx context.Context, id string) error {
	o.mu.Lock()
	o.switchEpoch++
	epoch := o.switchEpoch
	o.sessionID = id
	o.messages = nil
	o.suggestions = nil
	// Any in-flight send belongs to the previous epoch; its result will be
	// discarded, so the new conversation starts with a free guard
	o.sending = false
	o.mu.Unlock()

	msgs, err := o.completer.History(ctx, id, o.historyLimit)
	observability.RecordSessionOp("switch", err == nil)

	o.mu.Lock()
	defer o.mu.Unlock()
	if epoch != o.switchEpoch {
		// A later switch superseded this load
		return nil
	}
	if err != nil || len(msgs) == 0 {
		if err != nil {
			observability.RecordError("history_load_error", "chat")
			o.logger.Warn().Err(err).Str("session_id", id).Msg("History load failed, starting with welcome")
		}
		o.messages = []Message{newMessage(RoleAssistant, welcomeMessage)}
		return nil
	}
	o.messages = msgs
	return nil
}

// StartSession begins a fresh conversation and registers it with the
// server. The returned acked flag is false when the session proceeds
// local-only because the server did not confirm the create.
func (o *Orchestrator) StartSession(ctx context.Context) (string, bool) {
	id := session.NewSessionID()
	acked, err := o.catalog.CreateRemote(ctx, id, session.DeriveTitle(""))
	if err != nil {
		o.logger.Warn().Err(err).Str("session_id", id).Msg("New session continuing local-only")
	}

	o.mu.Lock()
	o.switchEpoch++
	o.sessionID = id
	o.messages = []Message{newMessage(RoleAssistant, welcomeMessage)}
	o.suggestions = nil
	o.sending = false
	o.mu.Unlock()

	return id, acked
}

// DeleteSession removes a conversation. Deletion is server-confirmed: on
// failure the catalog entry stays and the user is told nothing changed.
// Deleting the active conversation starts a fresh one in its place.
func (o *Orchestrator) DeleteSession(ctx context.Context, id string) error {
	if err := o.catalog.Delete(ctx, id); err != nil {
		o.notifyUser("Không thể xóa cuộc trò chuyện. Vui lòng thử lại.")
		return err
	}

	o.mu.Lock()
	active := o.sessionID == id
	o.mu.Unlock()

	if active {
		o.StartSession(ctx)
	}
	return nil
}

func (o *Orchestrator) notifyUser(message string) {
	if o.notify != nil {
		o.notify(message)
	}
}
