package storage

import "errors"

// Recoverable errors returned from storage operations. Each carries a
// human-readable description and is propagated to the caller via
// fmt.Errorf("...: %w", err) wrapping at the call site.
var (
	ErrInvalidPage      = errors.New("storage: invalid page identifier")
	ErrSlotNotFound     = errors.New("storage: slot not found")
	ErrIO               = errors.New("storage: I/O failure")
	ErrContainerMissing = errors.New("storage: container not found")
)
