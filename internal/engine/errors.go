package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/display"
	"github.com/roach88/sheetsync/internal/persist"
)

// ErrorCode categorizes errors surfaced by the dispatch loop and its
// collaborators.
type ErrorCode string

const (
	// CodeNotFound indicates an entry or wm_class was referenced but absent.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeChannelClosed indicates the peer of a message is gone.
	CodeChannelClosed ErrorCode = "CHANNEL_CLOSED"

	// CodePersistenceFailure indicates a save job's I/O failed.
	CodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"

	// CodeLoadFailure indicates the startup load failed.
	CodeLoadFailure ErrorCode = "LOAD_FAILURE"

	// CodeInternalProtocol indicates a malformed remote-call payload.
	CodeInternalProtocol ErrorCode = "INTERNAL_PROTOCOL"

	// CodeDisplayUnavailable indicates no display surface could answer.
	CodeDisplayUnavailable ErrorCode = "DISPLAY_UNAVAILABLE"

	// CodeInternal is everything else.
	CodeInternal ErrorCode = "INTERNAL"
)

// Error is a coded error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrChannelClosed is returned to producers once the loop has stopped
// accepting messages, and to queries that were queued behind Shutdown.
var ErrChannelClosed = &Error{Code: CodeChannelClosed, Message: "dispatch loop is not accepting messages"}

// ErrNoDisplay is returned by GetScreenInfo when no surface is configured.
var ErrNoDisplay = &Error{Code: CodeDisplayUnavailable, Message: "no display surface configured", Err: display.ErrUnavailable}

// ProtocolError creates a CodeInternalProtocol error.
func ProtocolError(format string, args ...any) *Error {
	return &Error{Code: CodeInternalProtocol, Message: fmt.Sprintf(format, args...)}
}

// Classify maps err to its code. Returns "" for nil.
// Uses errors.As/errors.Is to handle wrapped errors.
func Classify(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code
	}
	if errors.Is(err, content.ErrNotFound) {
		return CodeNotFound
	}
	if persist.IsLoadError(err) {
		return CodeLoadFailure
	}
	var je *persist.JobError
	if errors.As(err, &je) {
		return CodePersistenceFailure
	}
	if errors.Is(err, display.ErrUnavailable) {
		return CodeDisplayUnavailable
	}
	return CodeInternal
}

// IsNotFound reports whether err classifies as CodeNotFound.
func IsNotFound(err error) bool {
	return Classify(err) == CodeNotFound
}
