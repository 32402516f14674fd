package domain

import "errors"

var (
	// ErrOrderNotFound is returned by read paths for unknown order ids.
	ErrOrderNotFound = errors.New("order not found")

	// ErrConcurrencyConflict marks a write rejected because a competing
	// writer touched the same order row. Callers retry at most once.
	ErrConcurrencyConflict = errors.New("concurrent write conflict")

	// ErrUnknownEvent marks a payload whose event type is not part of any
	// known family. Retrying cannot fix it; the message is acknowledged.
	ErrUnknownEvent = errors.New("unknown event type")

	// ErrMalformedEvent marks a payload missing its order id or otherwise
	// unparseable.
	ErrMalformedEvent = errors.New("malformed event")
)
