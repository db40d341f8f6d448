// Package notify carries transient, operator-facing notifications (the
// equivalent of toast messages) from the conversation manager to whatever
// presentation layer is attached.
package notify

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Level classifies a notification.
type Level int

// Notification levels.
const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Notification is one transient message.
type Notification struct {
	Level   Level
	Message string
	Time    time.Time
}

// Notifier receives notifications. Implementations must be safe for
// concurrent use and must not block for long.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a plain function into a Notifier.
type Func func(n Notification)

// Notify calls f(n).
func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// WriterNotifier prints one line per notification to w.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier creates a WriterNotifier writing to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

var prefixes = map[Level]string{
	LevelInfo:    "·",
	LevelSuccess: "✓",
	LevelWarning: "!",
	LevelError:   "✗",
}

// Notify writes n to the underlying writer.
func (wn *WriterNotifier) Notify(n Notification) {
	prefix, ok := prefixes[n.Level]
	if !ok {
		prefix = n.Level.String()
	}
	wn.mu.Lock()
	defer wn.mu.Unlock()
	_, _ = fmt.Fprintf(wn.w, "%s %s\n", prefix, n.Message)
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

// Notify records n.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, n)
}

// All returns a copy of the recorded notifications in arrival order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.all))
	copy(out, r.all)
	return out
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.all) == 0 {
		return Notification{}, false
	}
	return r.all[len(r.all)-1], true
}

// Compile-time interface checks.
var (
	_ Notifier = (*WriterNotifier)(nil)
	_ Notifier = (*Recorder)(nil)
	_ Notifier = Func(nil)
)
