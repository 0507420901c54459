package domain

import "errors"

// Errors for metric record handling.
var (
	// ErrUnknownKind is returned when a record carries an unrecognized
	// kind discriminator.
	ErrUnknownKind = errors.New("domain: unknown metric kind")

	// ErrShortRecord is returned when a record buffer is smaller than
	// the fixed wire size.
	ErrShortRecord = errors.New("domain: record buffer too short")
)
