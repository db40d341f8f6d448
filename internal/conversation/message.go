package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Role identifies who authored a message.
type Role string

// Known roles.
const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleSystem
}

// Message is one immutable conversation entry. Messages have no identity
// beyond their position in the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// encodeMessages renders msgs as the persisted JSON array. HTML characters
// are left unescaped so stored text stays readable and re-encoding a
// decoded value reproduces it byte for byte.
func encodeMessages(msgs []Message) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(msgs); err != nil {
		return "", fmt.Errorf("conversation: encoding messages: %w", err)
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// decodeMessages parses a persisted conversation. Unknown roles make the
// whole value invalid.
func decodeMessages(raw string) ([]Message, error) {
	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, fmt.Errorf("conversation: decoding messages: %w", err)
	}
	for i, m := range msgs {
		if !m.Role.Valid() {
			return nil, fmt.Errorf("conversation: message %d has unknown role %q", i, m.Role)
		}
	}
	return msgs, nil
}
