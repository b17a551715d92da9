package tools

// The error values below never escape Execute as Go errors. They become
// the Error field of a Result so the planning loop can keep going.

import (
	"errors"
	"fmt"
)

// ErrUnknownTool is reported for a tool name outside the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// ErrEventMismatch is reported when a call targets another event.
var ErrEventMismatch = errors.New("event_id does not match the active event")

// ValidationError describes an argument that failed schema checks.
type ValidationError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "invalid arguments: " + e.Reason
	}
	return fmt.Sprintf("invalid arguments: %s: %s", e.Path, e.Reason)
}
