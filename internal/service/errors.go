package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/storage"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/subtitle"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/transcribe"
	"github.com/Muzafar-sm/AI-subtitle-Generator/pkg/log"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidArgument
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindUpstream:
		return "Upstream"
	default:
		return "Internal"
	}
}

// StatusCode is the HTTP status a Kind is reported with.
func (k Kind) StatusCode() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is the tagged error every Service operation returns. Message is
// safe to show to API clients.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Cause   error
}

func NewError(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Kind, e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// KindOf reports the Kind of err, KindInternal for untagged errors.
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-facing text of err.
func Message(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	return err.Error()
}

// WrapError tags err, picking the Kind from the sentinel errors of the
// lower layers. fallback is used when none matches.
func WrapError(err error, fallback Kind, message string) *Error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}

	kind := fallback
	switch {
	case errors.Is(err, storage.ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, storage.ErrInvalidName),
		errors.Is(err, storage.ErrTooLarge),
		errors.Is(err, subtitle.ErrUnsupportedFormat):
		kind = KindInvalidArgument
	case errors.Is(err, transcribe.ErrFailed):
		kind = KindUpstream
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindInternal
	}

	if message == "" {
		message = err.Error()
	} else {
		message = message + ": " + err.Error()
	}
	return NewErrorWithCause(kind, message, err)
}

// SafeExecute converts a panic in fn into an internal error.
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic: %v", r)
			err = NewError(KindInternal, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
