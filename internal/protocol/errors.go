package protocol

import "errors"

// Sentinel errors returned by [Decode] and the [Reassembler]. Callers
// should use [errors.Is] to match against these values.
var (
	// ErrMalformedMessage is returned when the input is not valid JSON or
	// a field cannot be decoded into the target message shape.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrMissingType is returned when the input carries no "type" tag.
	// A missing tag is never treated as a default variant.
	ErrMissingType = errors.New("missing message type tag")

	// ErrUnknownType is returned for a "type" tag this implementation does
	// not know. Unknown tags are rejected outright; client and relay are
	// versioned in lockstep.
	ErrUnknownType = errors.New("unknown message type tag")

	// ErrFragmentMismatch is returned when a fragment contradicts the
	// partial set it joins: different total, out-of-range index, or a
	// duplicate index with different content.
	ErrFragmentMismatch = errors.New("fragment does not match pending set")
)
