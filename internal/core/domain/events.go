package domain

import "time"

// Session event kinds carried on the event bus.
const (
	SessionSignedIn  = "auth.session.signed_in"
	SessionSignedOut = "auth.session.signed_out"
)

// SessionEvent notifies other consumers of the same session about lifecycle
// changes, keeping instances eventually consistent without polling.
type SessionEvent struct {
	EventID string
	Kind    string
	// Origin identifies the instance that produced the event; consumers
	// skip their own events.
	Origin string
	UserID string
	Email  string
	At     time.Time
}
