// Package conversation owns the transcript of the active conversation and
// the conversation list: it loads history, sends messages with optimistic
// local insertion, reconciles placeholders against server replies, and
// rolls back on failure.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatiitd/chatterm/internal/api"
	"github.com/chatiitd/chatterm/internal/models"
	"github.com/chatiitd/chatterm/internal/store"
)

// ErrSendInFlight is returned when a send is started while another one is
// still pending. Sends are serialized so that at most one placeholder
// exists at any instant.
var ErrSendInFlight = errors.New("a send is already in progress")

// API is the backend surface the engine needs. *api.Client satisfies this.
type API interface {
	ListChats(ctx context.Context, token string) ([]models.Chat, error)
	CreateChat(ctx context.Context, token, title string) (*models.Chat, error)
	DeleteChat(ctx context.Context, token, chatID string) error
	ListMessages(ctx context.Context, token, chatID string) ([]models.Message, error)
	SendMessage(ctx context.Context, token, chatID, content string) (*models.Message, error)
	StartChat(ctx context.Context, token, content string) (*api.StartChatResult, error)
}

// PendingSend identifies one optimistic send awaiting reconciliation. The
// token is carried alongside the message, never encoded into a message id.
type PendingSend struct {
	Token     uuid.UUID
	Content   string
	StartedAt time.Time
}

// Entry is one visible item of the transcript. Pending is non-nil while the
// entry is an optimistic placeholder.
type Entry struct {
	models.Message
	Pending *PendingSend
}

// Engine drives the active conversation. The access token is passed into
// every operation and a logout is signalled via Invalidate; the engine never
// reads ambient session state. Safe for concurrent use.
type Engine struct {
	api    API
	cache  *store.Store // may be nil
	logger *slog.Logger

	// OnChatCreated is invoked (outside the engine lock) when a brand-new
	// conversation is created by the first send; the active conversation has
	// already switched to it. Set before first use.
	OnChatCreated func(models.Chat)

	mu       sync.Mutex
	activeID string
	entries  []Entry
	chats    []models.Chat
	draft    string
	sending  bool
}

// New creates an engine. cache may be nil; a nil logger falls back to
// slog.Default().
func New(backend API, cache *store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{api: backend, cache: cache, logger: logger}
}

// ActiveID returns the id of the active conversation, empty when none is
// selected.
func (e *Engine) ActiveID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeID
}

// Entries returns a copy of the visible transcript.
func (e *Engine) Entries() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Entry, len(e.entries))
	copy(out, e.entries)
	return out
}

// Chats returns a copy of the conversation list.
func (e *Engine) Chats() []models.Chat {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Chat, len(e.chats))
	copy(out, e.chats)
	return out
}

// Draft returns the current input buffer.
func (e *Engine) Draft() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft
}

// SetDraft replaces the input buffer.
func (e *Engine) SetDraft(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft = s
}

// Sending reports whether a send is in flight; callers disable the send
// action while it is true.
func (e *Engine) Sending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sending
}

// SetActive switches the active conversation, discarding the current
// transcript and reloading it from the backend.
func (e *Engine) SetActive(ctx context.Context, token, chatID string) error {
	e.mu.Lock()
	e.activeID = chatID
	e.entries = nil
	e.mu.Unlock()

	return e.LoadMessages(ctx, token, chatID)
}

// Deactivate clears the active selection without touching the backend.
func (e *Engine) Deactivate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeID = ""
	e.entries = nil
}

// LoadMessages fetches the ordered history of a conversation and replaces
// the visible transcript. Missing token or chat id makes it a no-op. On
// failure the previous transcript is left untouched.
func (e *Engine) LoadMessages(ctx context.Context, token, chatID string) error {
	if token == "" || chatID == "" {
		return nil
	}

	msgs, err := e.api.ListMessages(ctx, token, chatID)
	if err != nil {
		e.logger.Error("failed to load messages", "chat_id", chatID, "error", err)
		return fmt.Errorf("load messages: %w", err)
	}

	entries := make([]Entry, len(msgs))
	for i, msg := range msgs {
		entries[i] = Entry{Message: msg}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeID != chatID {
		// The selection moved on while the fetch was in flight.
		return nil
	}
	e.entries = entries
	return nil
}

// Send submits one user message. With an active conversation it posts to
// it; with none it bootstraps a brand-new conversation from this first
// message. Empty (after trimming) content and missing tokens are no-ops.
// A second send while one is pending returns ErrSendInFlight.
func (e *Engine) Send(ctx context.Context, token, content string) error {
	content = strings.TrimSpace(content)
	if content == "" || token == "" {
		return nil
	}

	e.mu.Lock()
	if e.sending {
		e.mu.Unlock()
		return ErrSendInFlight
	}
	e.sending = true
	e.draft = ""

	pending := &PendingSend{
		Token:     uuid.New(),
		Content:   content,
		StartedAt: time.Now(),
	}
	e.entries = append(e.entries, Entry{
		Message: models.Message{
			ChatID:    e.activeID,
			Sender:    models.SenderUser,
			Content:   content,
			CreatedAt: pending.StartedAt,
		},
		Pending: pending,
	})
	chatID := e.activeID
	e.mu.Unlock()

	if chatID == "" {
		return e.sendFirst(ctx, token, content, pending)
	}
	return e.sendExisting(ctx, token, chatID, content, pending)
}

// sendExisting reconciles a send against an existing conversation: on
// success the placeholder is replaced by the finalized user turn and the
// assistant reply, in that order; on failure the placeholder vanishes and
// the content goes back into the draft.
func (e *Engine) sendExisting(ctx context.Context, token, chatID, content string, pending *PendingSend) error {
	reply, err := e.api.SendMessage(ctx, token, chatID, content)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sending = false
	e.removePendingLocked(pending.Token)

	if err != nil {
		e.draft = content
		e.logger.Error("send failed, rolled back placeholder", "chat_id", chatID, "error", err)
		return fmt.Errorf("send message: %w", err)
	}

	if e.activeID != chatID {
		// The conversation was switched away mid-send; the reply belongs to
		// a transcript we no longer display.
		e.logger.Debug("discarding reply for inactive chat", "chat_id", chatID)
		return nil
	}

	userMsg := models.Message{
		ID:        deriveUserID(reply.ID),
		ChatID:    chatID,
		Sender:    models.SenderUser,
		Content:   content,
		CreatedAt: pending.StartedAt,
	}
	e.entries = append(e.entries, Entry{Message: userMsg}, Entry{Message: *reply})
	return nil
}

// sendFirst creates a conversation from its first message. On success the
// transcript becomes the finalized pair, the new conversation becomes
// active, and OnChatCreated fires. On failure the transcript is cleared
// back to empty and the content goes back into the draft. When another
// conversation was activated mid-send the reply is discarded like in
// sendExisting; the created chat only joins the list.
func (e *Engine) sendFirst(ctx context.Context, token, content string, pending *PendingSend) error {
	result, err := e.api.StartChat(ctx, token, content)

	e.mu.Lock()
	e.sending = false

	if err != nil {
		e.entries = nil
		e.draft = content
		e.mu.Unlock()
		e.logger.Error("new-conversation send failed", "error", err)
		return fmt.Errorf("start chat: %w", err)
	}

	chat := result.Chat

	if e.activeID != "" {
		// Another conversation was activated mid-send; its transcript stays.
		// The created chat still joins the list, it just never activates.
		e.removePendingLocked(pending.Token)
		e.chats = append([]models.Chat{chat}, e.chats...)
		e.mu.Unlock()
		e.cacheUpsert([]models.Chat{chat})
		e.logger.Debug("discarding transcript for chat created in background", "chat_id", chat.ID)
		return nil
	}

	userMsg := models.Message{
		ID:        deriveUserID(result.Message.ID),
		ChatID:    chat.ID,
		Sender:    models.SenderUser,
		Content:   content,
		CreatedAt: pending.StartedAt,
	}
	e.entries = []Entry{{Message: userMsg}, {Message: result.Message}}
	e.activeID = chat.ID
	e.chats = append([]models.Chat{chat}, e.chats...)
	e.mu.Unlock()

	e.cacheUpsert([]models.Chat{chat})
	e.logger.Info("conversation created from first message", "chat_id", chat.ID)

	if e.OnChatCreated != nil {
		e.OnChatCreated(chat)
	}
	return nil
}

// RefreshChats fetches the conversation list and overwrites both the
// in-memory copy and the local cache. Refreshing is an explicit command of
// the caller that owns the list lifecycle, not a side effect.
func (e *Engine) RefreshChats(ctx context.Context, token string) ([]models.Chat, error) {
	if token == "" {
		return nil, nil
	}

	chats, err := e.api.ListChats(ctx, token)
	if err != nil {
		e.logger.Error("failed to refresh chats", "error", err)
		return nil, fmt.Errorf("refresh chats: %w", err)
	}

	e.mu.Lock()
	e.chats = chats
	e.mu.Unlock()

	if e.cache != nil {
		if err := e.cache.ReplaceChats(chats); err != nil {
			e.logger.Warn("failed to rewrite chat cache", "error", err)
		}
	}
	return e.Chats(), nil
}

// LoadCachedChats populates the in-memory list from the local cache.
func (e *Engine) LoadCachedChats() ([]models.Chat, error) {
	if e.cache == nil {
		return e.Chats(), nil
	}
	chats, err := e.cache.ListChats()
	if err != nil {
		return nil, fmt.Errorf("load cached chats: %w", err)
	}

	e.mu.Lock()
	e.chats = chats
	e.mu.Unlock()
	return e.Chats(), nil
}

// NewChat creates an empty conversation and prepends it to the list.
func (e *Engine) NewChat(ctx context.Context, token, title string) (*models.Chat, error) {
	chat, err := e.api.CreateChat(ctx, token, title)
	if err != nil {
		e.logger.Error("failed to create chat", "error", err)
		return nil, fmt.Errorf("create chat: %w", err)
	}

	e.mu.Lock()
	e.chats = append([]models.Chat{*chat}, e.chats...)
	e.mu.Unlock()

	e.cacheUpsert([]models.Chat{*chat})
	return chat, nil
}

// DeleteChat removes a conversation on the backend, from the in-memory list
// and the local cache. Deleting the active conversation deactivates the
// current selection.
func (e *Engine) DeleteChat(ctx context.Context, token, chatID string) error {
	if err := e.api.DeleteChat(ctx, token, chatID); err != nil {
		e.logger.Error("failed to delete chat", "chat_id", chatID, "error", err)
		return fmt.Errorf("delete chat: %w", err)
	}

	e.mu.Lock()
	kept := e.chats[:0]
	for _, chat := range e.chats {
		if chat.ID != chatID {
			kept = append(kept, chat)
		}
	}
	e.chats = kept
	if e.activeID == chatID {
		e.activeID = ""
		e.entries = nil
	}
	e.mu.Unlock()

	if e.cache != nil {
		if err := e.cache.DeleteChat(chatID); err != nil {
			e.logger.Warn("failed to remove chat from cache", "chat_id", chatID, "error", err)
		}
	}
	return nil
}

// Invalidate drops all in-flight state: transcript, chat list, pending
// send, draft, active selection, and the local cache. It is the engine's
// reaction to a logout signal.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.activeID = ""
	e.entries = nil
	e.chats = nil
	e.draft = ""
	e.sending = false
	e.mu.Unlock()

	if e.cache != nil {
		if err := e.cache.Clear(); err != nil {
			e.logger.Warn("failed to clear chat cache", "error", err)
		}
	}
	e.logger.Info("conversation state invalidated")
}

// removePendingLocked drops the entry carrying the given pending token.
// Caller must hold the lock.
func (e *Engine) removePendingLocked(token uuid.UUID) {
	for i, entry := range e.entries {
		if entry.Pending != nil && entry.Pending.Token == token {
			e.entries = append(e.entries[:i], e.entries[i+1:]...)
			return
		}
	}
}

// cacheUpsert writes chats into the local cache when one is configured.
func (e *Engine) cacheUpsert(chats []models.Chat) {
	if e.cache == nil {
		return
	}
	if err := e.cache.UpsertChats(chats); err != nil {
		e.logger.Warn("failed to update chat cache", "error", err)
	}
}

// deriveUserID derives the durable id of the user's turn from the assistant
// reply. The send endpoint returns only the assistant message; a distinct
// suffix keeps the two ids unique in the transcript.
func deriveUserID(assistantID string) string {
	if assistantID == "" {
		return uuid.NewString()
	}
	return assistantID + ":user"
}
