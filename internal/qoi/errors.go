package qoi

import "errors"

var (
	// ErrInvalid covers malformed streams: bad magic, bad header fields,
	// a pixel write past the grid, or a missing end marker.
	ErrInvalid = errors.New("qoi: invalid stream")

	// ErrTruncated is returned when the input ends before a required
	// read or peek could be satisfied.
	ErrTruncated = errors.New("qoi: truncated stream")

	// ErrTooLarge is returned when the header declares more pixels than
	// the decode call is willing to allocate.
	ErrTooLarge = errors.New("qoi: image too large")
)
