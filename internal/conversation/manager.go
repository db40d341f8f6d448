// Package conversation owns the client-side conversation state: the message
// history, the session id assigned by the assistant service, the operator
// configuration and the loading flag. Every mutation that leaves the
// conversation non-empty is mirrored into the persistent store, so the
// conversation survives a restart.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flemzord/stockchat/internal/notify"
	"github.com/flemzord/stockchat/internal/remote"
	"github.com/flemzord/stockchat/internal/security"
	"github.com/flemzord/stockchat/internal/store"
)

// Operator-facing texts.
const (
	// FallbackReply is shown when the service answers without a reply.
	FallbackReply = "Resposta não encontrada"

	// ApologyReply is recorded in the conversation when a send fails.
	ApologyReply = "Desculpe, ocorreu um erro ao processar sua mensagem. Tente novamente."

	msgMissingCredential = "Por favor, configure sua API Key primeiro"
	msgConfigSaved       = "Configuração salva com sucesso!"
	msgConfigLoadFailed  = "Erro ao carregar configuração"
	msgNewConversation   = "Nova conversa iniciada!"
)

// Service is the part of the assistant service the manager depends on.
// *remote.Client implements it.
type Service interface {
	FetchConfiguration(ctx context.Context) (remote.Configuration, error)
	SaveConfiguration(ctx context.Context, cfg remote.Configuration) (json.RawMessage, error)
	SendChatTurn(ctx context.Context, message, session string) (remote.ChatReply, error)
}

// Store is the persistent key/value store. *store.Store implements it.
type Store interface {
	Read(ctx context.Context, key string) (string, bool)
	Write(ctx context.Context, key, value string)
	Remove(ctx context.Context, key string)
}

// Options are the explicit collaborators of a Manager.
type Options struct {
	// Service is the assistant service client (required).
	Service Service

	// Store persists the conversation and session id. Nil keeps state in
	// memory only.
	Store Store

	// Notifier receives operator-facing notifications. Nil discards them.
	Notifier notify.Notifier

	// Redactor learns the credential so it never reaches the logs.
	Redactor *security.Redactor

	Logger *slog.Logger

	// Now stamps notifications. Defaults to time.Now.
	Now func() time.Time
}

// State is a point-in-time copy of the manager's state for rendering.
type State struct {
	Messages      []Message
	SessionID     string
	Loading       bool
	Configuration remote.Configuration
}

// Manager is the conversation state manager. It is safe for concurrent use;
// no lock is held while a request to the service is in flight.
type Manager struct {
	service  Service
	store    Store
	notifier notify.Notifier
	redactor *security.Redactor
	logger   *slog.Logger
	now      func() time.Time

	initialized atomic.Bool

	mu        sync.Mutex
	messages  []Message
	sessionID string
	config    remote.Configuration
	inflight  int

	// epoch is bumped by StartNewConversation. Replies for an older epoch
	// are discarded.
	epoch uint64
}

// New creates a Manager. It does not touch the store or the service until
// Initialize is called.
func New(opts Options) (*Manager, error) {
	if opts.Service == nil {
		return nil, errors.New("conversation: service is required")
	}
	m := &Manager{
		service:  opts.Service,
		store:    opts.Store,
		notifier: opts.Notifier,
		redactor: opts.Redactor,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if m.store == nil {
		m.store = store.New(nil, nil)
	}
	if m.notifier == nil {
		m.notifier = notify.Discard
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Initialize restores the persisted session and conversation and, in
// parallel, loads the configuration from the service. It runs once; later
// calls return ErrAlreadyInitialized. Failures of either half are handled
// internally and never returned.
func (m *Manager) Initialize(ctx context.Context) error {
	if !m.initialized.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}

	var g errgroup.Group
	g.Go(func() error {
		m.restore(ctx)
		return nil
	})
	g.Go(func() error {
		m.loadConfiguration(ctx)
		return nil
	})
	return g.Wait()
}

// restore reads the session id and conversation from the store. A
// conversation that cannot be decoded is dropped and logged.
func (m *Manager) restore(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.store.Read(ctx, store.SessionKey); ok && session != "" {
		m.sessionID = session
	}

	raw, ok := m.store.Read(ctx, store.MessagesKey)
	if !ok {
		return
	}
	msgs, err := decodeMessages(raw)
	if err != nil {
		m.logger.Warn("conversation: discarding corrupt persisted conversation", "error", err)
		m.store.Remove(ctx, store.MessagesKey)
		return
	}

	// Messages appended before restoration finished stay after the
	// restored history.
	m.messages = append(msgs, m.messages...)
	if len(m.messages) > 0 {
		m.persistLocked(ctx)
	}
	m.logger.Debug("conversation: restored",
		"messages", len(m.messages), "has_session", m.sessionID != "")
}

// loadConfiguration fetches the configuration. On failure the fields keep
// their current values.
func (m *Manager) loadConfiguration(ctx context.Context) {
	cfg, err := m.service.FetchConfiguration(ctx)
	if err != nil {
		m.logger.Error("conversation: loading configuration failed", "error", err)
		m.notify(notify.LevelError, msgConfigLoadFailed+": "+describe(err))
		return
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	m.redactor.SetCredential(cfg.Credential)
	m.logger.Debug("conversation: configuration loaded", "has_credential", cfg.Credential != "")
}

// SendMessage appends text as a user message and asks the service for a
// reply. Invalid UTF-8 is replaced with U+FFFD before anything is stored
// or sent. The user message is kept and persisted even when the request
// fails; a failure is recorded as ApologyReply and notified. When the
// conversation was cleared meanwhile, a failure is still notified but
// nothing is recorded.
func (m *Manager) SendMessage(ctx context.Context, text string) error {
	text = strings.ToValidUTF8(strings.TrimSpace(text), "\uFFFD")
	if text == "" {
		return ErrEmptyMessage
	}

	m.mu.Lock()
	if strings.TrimSpace(m.config.Credential) == "" {
		m.mu.Unlock()
		m.notify(notify.LevelWarning, msgMissingCredential)
		return ErrMissingCredential
	}
	m.appendLocked(ctx, Message{Role: RoleUser, Content: text})
	session := m.sessionID
	epoch := m.epoch
	m.inflight++
	m.mu.Unlock()

	reply, err := m.service.SendChatTurn(ctx, text, session)

	m.mu.Lock()
	m.inflight--
	if m.epoch != epoch {
		m.mu.Unlock()
		m.logger.Info("conversation: discarding reply for a cleared conversation", "error", err)
		if err != nil {
			m.notify(notify.LevelError, describe(err))
		}
		return ErrConversationReset
	}
	if err != nil {
		m.appendLocked(ctx, Message{Role: RoleSystem, Content: ApologyReply})
		m.mu.Unlock()
		m.logger.Error("conversation: sending message failed", "error", err)
		m.notify(notify.LevelError, describe(err))
		return fmt.Errorf("conversation: send: %w", err)
	}

	if reply.SessionID != "" {
		m.sessionID = reply.SessionID
		m.store.Write(ctx, store.SessionKey, reply.SessionID)
	}
	content := reply.Reply
	if content == "" {
		content = FallbackReply
	}
	m.appendLocked(ctx, Message{Role: RoleSystem, Content: content})
	m.mu.Unlock()
	return nil
}

// SaveConfiguration writes the current credential and documentation to
// the service and notifies the outcome.
func (m *Manager) SaveConfiguration(ctx context.Context) error {
	m.mu.Lock()
	cfg := m.config
	m.inflight++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inflight--
		m.mu.Unlock()
	}()

	if _, err := m.service.SaveConfiguration(ctx, cfg); err != nil {
		m.logger.Error("conversation: saving configuration failed", "error", err)
		m.notify(notify.LevelError, describe(err))
		return fmt.Errorf("conversation: save configuration: %w", err)
	}
	m.notify(notify.LevelSuccess, msgConfigSaved)
	return nil
}

// StartNewConversation clears the conversation and the session id together,
// in memory and in the store. A reply still in flight for the old
// conversation will be discarded.
func (m *Manager) StartNewConversation(ctx context.Context) {
	m.mu.Lock()
	m.messages = nil
	m.sessionID = ""
	m.epoch++
	m.store.Remove(ctx, store.SessionKey)
	m.store.Remove(ctx, store.MessagesKey)
	m.mu.Unlock()

	m.notify(notify.LevelSuccess, msgNewConversation)
}

// SetCredential replaces the in-memory credential. It is sent to the
// service only by SaveConfiguration.
func (m *Manager) SetCredential(credential string) {
	m.mu.Lock()
	m.config.Credential = credential
	m.mu.Unlock()
	m.redactor.SetCredential(credential)
}

// SetDocumentation replaces the in-memory documentation.
func (m *Manager) SetDocumentation(doc string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Documentation = doc
}

// Messages returns a copy of the conversation.
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// SessionID returns the current session id, "" when none is assigned.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Loading reports whether a request is in flight. It is advisory: the
// manager does not reject concurrent operations.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inflight > 0
}

// Configuration returns the in-memory configuration.
func (m *Manager) Configuration() remote.Configuration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Snapshot returns a consistent copy of the whole state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := make([]Message, len(m.messages))
	copy(msgs, m.messages)
	return State{
		Messages:      msgs,
		SessionID:     m.sessionID,
		Loading:       m.inflight > 0,
		Configuration: m.config,
	}
}

var roleLabels = map[Role]string{
	RoleUser:   "você",
	RoleSystem: "assistente",
}

// Transcript writes the conversation to w, one block per message.
func (m *Manager) Transcript(w io.Writer) error {
	for i, msg := range m.Messages() {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s> %s\n", roleLabels[msg.Role], msg.Content); err != nil {
			return err
		}
	}
	return nil
}

// appendLocked appends msg and mirrors the conversation. Callers hold m.mu.
func (m *Manager) appendLocked(ctx context.Context, msg Message) {
	m.messages = append(m.messages, msg)
	m.persistLocked(ctx)
}

// persistLocked writes the whole conversation. An empty conversation is
// never written; it is only removed by StartNewConversation.
func (m *Manager) persistLocked(ctx context.Context) {
	if len(m.messages) == 0 {
		return
	}
	raw, err := encodeMessages(m.messages)
	if err != nil {
		m.logger.Error("conversation: persisting failed", "error", err)
		return
	}
	m.store.Write(ctx, store.MessagesKey, raw)
}

func (m *Manager) notify(level notify.Level, message string) {
	m.notifier.Notify(notify.Notification{Level: level, Message: message, Time: m.now()})
}

// describe turns an error into the text shown to the operator: the
// service's own message for status errors, the error text otherwise.
func describe(err error) string {
	var se *remote.StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}
