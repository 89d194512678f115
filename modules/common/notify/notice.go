// Package notify is the user-visible notification channel: transient
// informational, success, error and loading notices, keyed by an ID so a
// loading notice can later be updated in place or dismissed.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Kind classifies a notice.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindLoading Kind = "loading"
	// KindUpdate replaces the notice with the same ID; Level carries the new kind.
	KindUpdate Kind = "update"
	// KindDismiss removes the notice with the same ID.
	KindDismiss Kind = "dismiss"
)

// Notice - one message for the shell
type Notice struct {
	ID        string    `json:"id,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	Kind      Kind      `json:"kind"`
	Level     Kind      `json:"level,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier delivers notices. Implementations must not block for long; the
// orchestrator calls Notify from its submission goroutine.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notice)

func (f Func) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Info, Success, Error and Loading build notices of the matching kind.
func Info(msg string) Notice    { return Notice{Kind: KindInfo, Message: msg} }
func Success(msg string) Notice { return Notice{Kind: KindSuccess, Message: msg} }
func Error(msg string) Notice   { return Notice{Kind: KindError, Message: msg} }

func Loading(id, msg string) Notice {
	return Notice{ID: id, Kind: KindLoading, Message: msg}
}

// Update turns the notice id into a notice of the given level.
func Update(id string, level Kind, msg string) Notice {
	return Notice{ID: id, Kind: KindUpdate, Level: level, Message: msg}
}

func Dismiss(id string) Notice {
	return Notice{ID: id, Kind: KindDismiss}
}

// ForSession stamps every notice with sessionID before handing it to next.
func ForSession(next Notifier, sessionID string) Notifier {
	return Func(func(ctx context.Context, n Notice) {
		n.SessionID = sessionID
		next.Notify(ctx, n)
	})
}

// Multi fans a notice out to every notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	return Func(func(ctx context.Context, n Notice) {
		for _, target := range notifiers {
			if target != nil {
				target.Notify(ctx, n)
			}
		}
	})
}

// Log writes notices to the structured log.
func Log(log zerolog.Logger) Notifier {
	return Func(func(_ context.Context, n Notice) {
		ev := log.Info()
		if n.Kind == KindError || n.Level == KindError {
			ev = log.Warn()
		}
		ev.Str("notice_id", n.ID).
			Str("session_id", n.SessionID).
			Str("kind", string(n.Kind)).
			Str("level", string(n.Level)).
			Msg("📣 " + n.Message)
	})
}

// Recorder keeps every notice in memory. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns a copy of what has been recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Count returns how many recorded notices match kind (and level, for updates).
func (r *Recorder) Count(kind, level Kind) int {
	n := 0
	for _, notice := range r.Notices() {
		if notice.Kind == kind && (level == "" || notice.Level == level) {
			n++
		}
	}
	return n
}
