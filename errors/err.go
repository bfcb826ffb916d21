package errors

import (
	"fmt"
)

var (
	ErrNotFound          = fmt.Errorf("lodgechat: not found")
	ErrInvalidState      = fmt.Errorf("lodgechat: invalid state")
	ErrPermissionDenied  = fmt.Errorf("lodgechat: permission denied")
	ErrDependencyFailure = fmt.Errorf("lodgechat: dependency failure")
	ErrConflictRetryable = fmt.Errorf("lodgechat: conflict, retry the lookup")
	ErrInvalidParams     = fmt.Errorf("lodgechat: invalid params")
	ErrInternal          = fmt.Errorf("lodgechat: internal error")
)

var (
	ErrThreadNotFound     = fmt.Errorf("%w: thread", ErrNotFound)
	ErrEmptyMessage       = fmt.Errorf("%w: message needs a body or an attachment", ErrInvalidState)
	ErrInvalidTransition  = fmt.Errorf("%w: case status transition not allowed", ErrInvalidState)
	ErrNotParticipant     = fmt.Errorf("%w: not a participant of the thread", ErrPermissionDenied)
	ErrAttachmentNotOwned = fmt.Errorf("%w: attachment is not owned by the sender", ErrPermissionDenied)
	ErrUploadFailed       = fmt.Errorf("%w: attachment upload failed", ErrDependencyFailure)
)

// Kind names the taxonomy class of err. It is the stable string carried on the wire.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrNotFound):
		return "not_found"
	case Is(err, ErrInvalidState):
		return "invalid_state"
	case Is(err, ErrPermissionDenied):
		return "permission_denied"
	case Is(err, ErrDependencyFailure):
		return "dependency_failure"
	case Is(err, ErrConflictRetryable):
		return "conflict_retryable"
	case Is(err, ErrInvalidParams):
		return "invalid_params"
	default:
		return "internal"
	}
}

// FromKind returns the sentinel for a wire kind, or ErrInternal when unknown.
func FromKind(kind string) error {
	switch kind {
	case "not_found":
		return ErrNotFound
	case "invalid_state":
		return ErrInvalidState
	case "permission_denied":
		return ErrPermissionDenied
	case "dependency_failure":
		return ErrDependencyFailure
	case "conflict_retryable":
		return ErrConflictRetryable
	case "invalid_params":
		return ErrInvalidParams
	default:
		return ErrInternal
	}
}
