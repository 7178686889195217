package board

import "errors"

var (
	// ErrStoreUnavailable means the staff collection could not be fetched
	// or subscribed to. The session keeps serving its last known collection.
	ErrStoreUnavailable = errors.New("staff store unavailable")
	// ErrWriteFailed wraps a rejected update. It is never retried.
	ErrWriteFailed = errors.New("staff update failed")

	ErrUnknownSlot       = errors.New("unknown slot label")
	ErrInvalidSource     = errors.New("invalid drag source")
	ErrInvalidPayload    = errors.New("invalid drop payload")
	ErrResetNotConfirmed = errors.New("board reset requires confirmation")
	ErrSessionClosed     = errors.New("board session closed")
)
