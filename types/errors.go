package types

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidState   = errors.New("invalid state")
	ErrConflict       = errors.New("conflict")
	ErrInvalidSession = errors.New("invalid session")
	ErrTransient      = errors.New("transient store error")
)

// Kind classifies an error into the small set of outcomes callers act on.
type Kind int

const (
	KindOther Kind = iota
	KindNotFound
	KindInvalidInput
	KindInvalidState
	KindConflict
	KindInvalidSession
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindInvalidInput:
		return "INVALID_INPUT"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindConflict:
		return "CONFLICT"
	case KindInvalidSession:
		return "INVALID_SESSION"
	case KindTransient:
		return "TRANSIENT"
	default:
		return "INTERNAL_ERROR"
	}
}

// KindOf returns the [Kind] of err by matching it against the sentinel
// errors of this package. A nil error is reported as [KindOther].
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindOther
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidSession):
		return KindInvalidSession
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindOther
	}
}

// HTTPStatus returns the response status code reported for errors of kind k.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput, KindInvalidState:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindInvalidSession:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
