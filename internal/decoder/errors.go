package decoder

import (
	"errors"
	"fmt"
)

// Kind classifies decode failures.
type Kind int

const (
	// KindMalformedInput: the payload did not parse as structured data.
	KindMalformedInput Kind = iota + 1
	// KindFieldNotFound: no qualifying reply field was found.
	KindFieldNotFound
	// KindUnrecognizedShape: the payload parsed but matches none of the known envelopes.
	KindUnrecognizedShape
	// KindUnrecoverable: every stage failed. The only kind Decode returns.
	KindUnrecoverable
)

// Sentinels for errors.Is checks against an *Error.
var (
	ErrMalformedInput    = errors.New("malformed input")
	ErrFieldNotFound     = errors.New("field not found")
	ErrUnrecognizedShape = errors.New("unrecognized shape")
	ErrUnrecoverable     = errors.New("unrecoverable payload")
)

func (k Kind) sentinel() error {
	switch k {
	case KindMalformedInput:
		return ErrMalformedInput
	case KindFieldNotFound:
		return ErrFieldNotFound
	case KindUnrecognizedShape:
		return ErrUnrecognizedShape
	case KindUnrecoverable:
		return ErrUnrecoverable
	}
	return nil
}

func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a decode failure tagged with its kind and originating stage.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Stage != "" {
		msg = e.Stage + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}
