package gfx

import "errors"

// Errors returned by image operations. Callers match them with errors.Is;
// most are wrapped with the coordinates or formats involved.
var (
	// ErrOutOfRange is returned when a coordinate or index lies outside the image.
	ErrOutOfRange = errors.New("gfx: out of range")

	// ErrNullBuffer is returned when pixels are requested from an image that
	// has no backing storage (destroyed or relinquished).
	ErrNullBuffer = errors.New("gfx: image has no pixel buffer")

	// ErrUnsupportedFormat is returned when an operation is not defined for a
	// pixel format, e.g. direct pixel access on block compressed data.
	ErrUnsupportedFormat = errors.New("gfx: unsupported format")

	// ErrShapeMismatch is returned when two images disagree on the extents an
	// operation needs to be equal.
	ErrShapeMismatch = errors.New("gfx: shape mismatch")

	// ErrInvalidShape is returned when a header violates the shape invariants
	// (zero extents, unknown format, malformed cubemap).
	ErrInvalidShape = errors.New("gfx: invalid shape")

	// ErrAllocation is returned when a buffer of the requested size cannot be
	// obtained.
	ErrAllocation = errors.New("gfx: allocation failure")

	// ErrDecode is wrapped by container codecs on malformed or unsupported input.
	ErrDecode = errors.New("gfx: decode error")

	// ErrEncode is wrapped by container codecs when an image cannot be written.
	ErrEncode = errors.New("gfx: encode error")
)
