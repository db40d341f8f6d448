package conversation

import (
	"strings"
	"testing"
)

func TestEncodeDecodeMessages(t *testing.T) {
	t.Parallel()

	msgs := []Message{
		{Role: RoleUser, Content: "estoque < 10 & urgente"},
		{Role: RoleSystem, Content: "linha 1\nlinha 2"},
	}

	raw, err := encodeMessages(msgs)
	if err != nil {
		t.Fatalf("encodeMessages: %v", err)
	}
	want := `[{"role":"user","content":"estoque < 10 & urgente"},{"role":"system","content":"linha 1\nlinha 2"}]`
	if raw != want {
		t.Errorf("encodeMessages = %s\nwant              %s", raw, want)
	}

	back, err := decodeMessages(raw)
	if err != nil {
		t.Fatalf("decodeMessages: %v", err)
	}
	again, err := encodeMessages(back)
	if err != nil {
		t.Fatalf("encodeMessages: %v", err)
	}
	if again != raw {
		t.Errorf("round trip changed bytes:\n%s\n%s", raw, again)
	}
}

func TestDecodeMessages_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{name: "syntax", raw: `[`, wantErr: "decoding"},
		{name: "object", raw: `{}`, wantErr: "decoding"},
		{name: "bad role", raw: `[{"role":"bot","content":"x"}]`, wantErr: "unknown role"},
		{name: "missing role", raw: `[{"content":"x"}]`, wantErr: "unknown role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := decodeMessages(tt.raw)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("decodeMessages(%q) error = %v, want mention of %q", tt.raw, err, tt.wantErr)
			}
		})
	}
}

func TestDecodeMessages_NullAndEmpty(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`null`, `[]`} {
		msgs, err := decodeMessages(raw)
		if err != nil {
			t.Errorf("decodeMessages(%q): %v", raw, err)
		}
		if len(msgs) != 0 {
			t.Errorf("decodeMessages(%q) = %+v, want empty", raw, msgs)
		}
	}
}

func TestEncodeMessages_Empty(t *testing.T) {
	t.Parallel()

	raw, err := encodeMessages([]Message{})
	if err != nil {
		t.Fatalf("encodeMessages: %v", err)
	}
	if raw != "[]" {
		t.Errorf("encodeMessages(empty) = %q, want []", raw)
	}
}
