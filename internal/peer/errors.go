package peer

import (
	"errors"
	"fmt"
)

// Protocol and dispatch errors.
var (
	// ErrProtocol marks any malformed inbound frame. A frame failing
	// with ErrProtocol is unrecoverable for its connection; there is no
	// frame-level resync.
	ErrProtocol = errors.New("peer: protocol error")

	// ErrTooLarge is returned when a frame declares a size above the
	// traversal limit.
	ErrTooLarge = fmt.Errorf("%w: frame exceeds traversal limit", ErrProtocol)

	// ErrTooDeep is returned when a frame declares a nesting depth
	// above the limit.
	ErrTooDeep = fmt.Errorf("%w: frame exceeds nesting limit", ErrProtocol)

	// ErrBadRecord marks a single metric entry that failed to decode.
	// The surrounding frame and connection stay usable.
	ErrBadRecord = errors.New("peer: bad metric record")

	// ErrTaskSend is returned when a task cannot be handed to a local
	// worker, or a snapshot reply channel is dropped.
	ErrTaskSend = errors.New("peer: sending task to worker failed")
)
