package nfe

import "errors"

var (
	// ErrMalformedDocument is returned when the payload is not a parseable
	// NFe document at all.
	ErrMalformedDocument = errors.New("malformed NFe document")

	// ErrMissingNode is returned when a required element (ide, emit) is
	// absent from an otherwise well-formed document.
	ErrMissingNode = errors.New("missing required NFe node")
)
