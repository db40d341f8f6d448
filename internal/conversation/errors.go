package conversation

import "errors"

// Sentinel errors returned by Manager operations. Every one of them has
// already been reported to the operator (or deliberately kept silent), so
// callers may ignore them.
var (
	// ErrAlreadyInitialized is returned by a second call to Initialize.
	ErrAlreadyInitialized = errors.New("conversation: already initialized")

	// ErrMissingCredential indicates a send was refused because no API
	// credential is configured. No request was made.
	ErrMissingCredential = errors.New("conversation: credential not configured")

	// ErrEmptyMessage indicates the message was blank after trimming.
	ErrEmptyMessage = errors.New("conversation: empty message")

	// ErrConversationReset indicates a reply arrived after the conversation
	// was cleared; it was discarded.
	ErrConversationReset = errors.New("conversation: reset while request was in flight")
)
