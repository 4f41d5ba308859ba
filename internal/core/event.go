package core

import "fmt"

// Event is one immutable telemetry record in a task session's timeline.
//
// Type is a free-form category tag ("status", "git_clone", "error", ...);
// producers may introduce new categories without a schema change. Timestamp
// is milliseconds since epoch, assigned by the store at append time, never
// by the producer. Data is an optional schema-less payload that the store
// never inspects.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	SessionID string                 `json:"sessionId"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// MalformedEventError reports a missing required event field. Appends that
// fail validation write nothing.
type MalformedEventError struct {
	Field string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event: missing %s", e.Field)
}

// ValidateFields checks the producer-supplied parts of an event before any
// write happens. Content is otherwise never validated or rejected.
func ValidateFields(typ, message, sessionID string) error {
	if typ == "" {
		return &MalformedEventError{Field: "type"}
	}
	if message == "" {
		return &MalformedEventError{Field: "message"}
	}
	if sessionID == "" {
		return &MalformedEventError{Field: "sessionId"}
	}
	return nil
}
