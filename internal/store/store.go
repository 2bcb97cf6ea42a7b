// Package store defines the conversation history contract shared by every
// persistence backend.
package store

import (
	"context"
	"fmt"

	"github.com/zhouzirui/digital-twin/backend/internal/model/chat"
)

// Store persists the ordered message history of each session. One session
// is one independent storage unit, so backends never lock across sessions.
type Store interface {
	// Load returns the stored messages, or an empty slice for an unknown
	// session.
	Load(ctx context.Context, sessionID string) ([]chat.Message, error)
	// Save replaces the whole stored sequence of a session.
	Save(ctx context.Context, sessionID string, messages []chat.Message) error
	// List summarizes every stored session ordered by session ID.
	List(ctx context.Context) ([]chat.SessionSummary, error)
	Close() error
}

// Error reports a failed storage operation.
type Error struct {
	Op        string
	SessionID string
	Err       error
}

func (e *Error) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store: %s session %q: %v", e.Op, e.SessionID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Operation names carried by Error.
const (
	OpLoad = "load"
	OpSave = "save"
	OpList = "list"
)

// Wrap returns nil for a nil err, otherwise an *Error.
func Wrap(op, sessionID string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, SessionID: sessionID, Err: err}
}
