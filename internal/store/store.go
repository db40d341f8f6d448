// Package store provides the client-local key/value store that keeps the
// conversation and session id across restarts. The Store adapter never
// returns errors: backend failures are logged and turned into no-ops so
// callers need no defensive handling.
package store

import (
	"context"
	"log/slog"
)

// Fixed, process-wide keys.
const (
	// SessionKey holds the opaque session id assigned by the remote service.
	SessionKey = "estoque_ai_session"

	// MessagesKey holds the JSON-encoded conversation.
	MessagesKey = "estoque_ai_messages"
)

// Backend is a durable string key/value mechanism.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Store adapts a Backend into a store that cannot fail past its boundary.
// No validation or encoding is applied; callers serialize structured values.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

// New wraps backend. A nil backend yields a store whose operations are no-ops.
func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger}
}

// Read returns the value under key, or ("", false) when it is absent or the
// backend is unavailable.
func (s *Store) Read(ctx context.Context, key string) (string, bool) {
	if s == nil || s.backend == nil {
		return "", false
	}
	value, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn("store: read failed", "key", key, "error", err)
		return "", false
	}
	return value, ok
}

// Write stores value under key.
func (s *Store) Write(ctx context.Context, key, value string) {
	if s == nil || s.backend == nil {
		return
	}
	if err := s.backend.Set(ctx, key, value); err != nil {
		s.logger.Warn("store: write failed", "key", key, "error", err)
	}
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) {
	if s == nil || s.backend == nil {
		return
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.Warn("store: remove failed", "key", key, "error", err)
	}
}
