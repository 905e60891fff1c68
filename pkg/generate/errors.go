package generate

import (
	"errors"
	"fmt"
)

// Kind classifies generation failures by the phase that produced them.
type Kind int

const (
	KindRequestMalformed Kind = iota + 1 // unparseable or missing request fields
	KindBitNotFound                      // no coordinate record for the bit
	KindStoreUnavailable                 // coordinate store could not be read
	KindWriteFailed                      // output file could not be written
)

func (k Kind) String() string {
	switch k {
	case KindRequestMalformed:
		return "request malformed"
	case KindBitNotFound:
		return "bit not found"
	case KindStoreUnavailable:
		return "store unavailable"
	case KindWriteFailed:
		return "write failed"
	default:
		return "unknown"
	}
}

// Phase names the step of a generation call the kind belongs to.
func (k Kind) Phase() string {
	switch k {
	case KindRequestMalformed:
		return "parse"
	case KindBitNotFound:
		return "lookup"
	case KindStoreUnavailable:
		return "store"
	case KindWriteFailed:
		return "write"
	default:
		return "generate"
	}
}

// Error is returned by every Generator entry point.
type Error struct {
	Kind  Kind
	BitID string
	Err   error
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrRequestMalformed = &Error{Kind: KindRequestMalformed}
	ErrBitNotFound      = &Error{Kind: KindBitNotFound}
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
	ErrWriteFailed      = &Error{Kind: KindWriteFailed}
)

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind.Phase(), e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind.Phase(), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return 0
}

func malformed(format string, args ...any) *Error {
	return &Error{Kind: KindRequestMalformed, Err: fmt.Errorf(format, args...)}
}
