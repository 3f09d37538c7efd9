package iqdata

import "errors"

// Decoding failures fall into a small taxonomy. Structural problems and header
// problems are distinct from plain I/O errors, which are propagated as-is.
var (
	// ErrFormatMismatch reports a file whose size or header shape violates a
	// structural invariant of the format it was opened as.
	ErrFormatMismatch = errors.New("capture file does not match format")

	// ErrWindowRange reports a (lframes, nframes, sframes) request that falls
	// outside the samples available in the file.
	ErrWindowRange = errors.New("requested sample window out of range")

	// ErrMalformedHeader reports a required header field that is absent or
	// cannot be parsed.
	ErrMalformedHeader = errors.New("malformed capture header")
)
