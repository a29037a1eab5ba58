package streaming

import (
	"errors"
	"fmt"
)

// Category sentinels for matching decode failures with errors.Is.
// The concrete error types below carry the details.
var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrUnknownEventKind  = errors.New("unknown event kind")
	ErrFieldDecode       = errors.New("field decode failed")
)

// errMissingField is the cause recorded when a required payload field is
// absent or explicitly null.
var errMissingField = errors.New("required field is missing")

// MalformedEnvelopeError reports a message whose top-level structure is not
// a valid envelope: the 'event' tag or the 'payload' object is missing or of
// the wrong type.
type MalformedEnvelopeError struct {
	Reason string
}

func (e *MalformedEnvelopeError) Error() string {
	return "malformed envelope: " + e.Reason
}

func (e *MalformedEnvelopeError) Is(target error) bool {
	return target == ErrMalformedEnvelope
}

// UnknownEventKindError reports a well-formed envelope whose tag is not in
// the supported set. Servers may introduce new kinds at any time, so callers
// should usually treat this as noise rather than a stream failure.
type UnknownEventKindError struct {
	Kind string
}

func (e *UnknownEventKindError) Error() string {
	return fmt.Sprintf("unknown event kind %q", e.Kind)
}

func (e *UnknownEventKindError) Is(target error) bool {
	return target == ErrUnknownEventKind
}

// FieldDecodeError reports a payload field that is missing, mistyped or
// fails domain parsing for the matched variant.
type FieldDecodeError struct {
	Variant string // Variant being decoded, e.g. "Candle"
	Field   string // Wire key of the offending field, e.g. "c"
	Err     error  // Underlying cause
}

func (e *FieldDecodeError) Error() string {
	return fmt.Sprintf("decoding %s: field %q: %v", e.Variant, e.Field, e.Err)
}

func (e *FieldDecodeError) Unwrap() error { return e.Err }

func (e *FieldDecodeError) Is(target error) bool {
	return target == ErrFieldDecode
}
