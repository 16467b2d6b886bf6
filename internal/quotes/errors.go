package quotes

import "errors"

var (
	// ErrInvalidPrice is returned when an ingestion carries a missing or
	// non-positive unit price.
	ErrInvalidPrice = errors.New("unit price must be greater than zero")

	// ErrCorruptDocument is returned by backends when the persisted collection
	// cannot be decoded.
	ErrCorruptDocument = errors.New("corrupt record collection")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrUnknownBackend is returned when a configured backend name is not
	// recognized.
	ErrUnknownBackend = errors.New("unknown store backend")
)
