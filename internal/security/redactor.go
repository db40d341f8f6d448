// Package security keeps operator secrets out of log output. The live API
// credential is registered with a Redactor, and every log record passes
// through a RedactingHandler before it is written.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// minLiteralLen is the shortest literal worth redacting. Shorter values
// (e.g. "k1") would mangle ordinary text.
const minLiteralLen = 4

// secretKeyPattern matches map keys that likely contain secrets.
var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|password|key|credential)`)

// Redactor replaces secret values in strings and maps with RedactPlaceholder.
// It combines regex patterns for well-known API key formats with literal
// values learned at runtime (the operator credential).
// All methods are safe for concurrent use.
type Redactor struct {
	mu         sync.RWMutex
	patterns   []*regexp.Regexp
	literals   []string
	credential string
}

// NewRedactor creates a Redactor pre-loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// AddLiteral adds a fixed secret value that should be redacted on sight.
// Values shorter than four characters are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if len(secret) < minLiteralLen {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// SetCredential replaces the tracked operator credential. The previous
// value stops being redacted; an empty value clears it. A nil Redactor
// ignores the call.
func (r *Redactor) SetCredential(secret string) {
	if r == nil {
		return
	}
	secret = strings.TrimSpace(secret)
	if len(secret) < minLiteralLen {
		secret = ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credential = secret
}

// Redact replaces every known secret in s with RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" || r == nil {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	credential := r.credential
	r.mu.RUnlock()

	if credential != "" {
		s = strings.ReplaceAll(s, credential, RedactPlaceholder)
	}
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}

// RedactMap walks m and replaces non-empty string values whose keys look
// like secrets ("apikey", "token", ...). Other strings are run through
// Redact. Nested maps and slices of maps are visited.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		if s, ok := v.(string); ok && s != "" && secretKeyPattern.MatchString(k) {
			m[k] = RedactPlaceholder
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			r.RedactMap(val)
		case []any:
			for _, item := range val {
				if sub, ok := item.(map[string]any); ok {
					r.RedactMap(sub)
				}
			}
		case string:
			m[k] = r.Redact(val)
		}
	}
}

// DefaultPatterns returns compiled regex patterns for common API key formats.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Anthropic before OpenAI so the longer prefix wins.
		regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
		regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
		regexp.MustCompile(`(ghp_|gho_|ghs_|github_pat_)[a-zA-Z0-9_]{20,}`),
		regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-._~+/]{16,}=*`),
	}
}
