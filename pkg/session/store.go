// Package session persists per-session conversation history so follow-up
// questions can be answered in context.
package session

import (
	"context"
	"time"
)

// MaxEntries is the number of recent turns kept per session. Older turns
// are discarded.
const MaxEntries = 5

// Entry is one completed turn.
type Entry struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists conversation history keyed by session ID.
type Store interface {
	// Append records one completed turn for a session.
	Append(ctx context.Context, sessionID string, entry Entry) error
	// History returns up to MaxEntries most recent turns for a session,
	// oldest first. An unknown session yields an empty slice, not an error.
	History(ctx context.Context, sessionID string) ([]Entry, error)
}
