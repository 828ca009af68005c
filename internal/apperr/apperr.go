// Package apperr defines the error taxonomy shared by services and handlers.
// Adapters around external services are responsible for classifying upstream
// failures into one of these kinds; handlers map kinds to HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind int

const (
	// KindUnknown is any error that carries no classification.
	KindUnknown Kind = iota
	// KindConfiguration means required configuration is absent. Fatal for the
	// operation, never retried.
	KindConfiguration
	// KindNotFound means a session or recording record is absent.
	KindNotFound
	// KindUnauthorized means a bad webhook secret or a caller that is not the
	// session creator.
	KindUnauthorized
	// KindPrecondition means the operation cannot proceed in the current state
	// (empty room, recording already active).
	KindPrecondition
	// KindExternal means a media-server, egress or storage call failed.
	KindExternal
)

// Error is a classified error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Configuration returns a KindConfiguration error.
func Configuration(format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns a KindNotFound error.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Unauthorized returns a KindUnauthorized error.
func Unauthorized(format string, args ...any) error {
	return &Error{Kind: KindUnauthorized, Msg: fmt.Sprintf(format, args...)}
}

// Precondition returns a KindPrecondition error.
func Precondition(format string, args ...any) error {
	return &Error{Kind: KindPrecondition, Msg: fmt.Sprintf(format, args...)}
}

// External wraps an upstream failure as KindExternal.
func External(msg string, err error) error {
	return &Error{Kind: KindExternal, Msg: msg, Err: err}
}

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is classified KindNotFound.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsPrecondition reports whether err is classified KindPrecondition.
func IsPrecondition(err error) bool { return KindOf(err) == KindPrecondition }

// IsConfiguration reports whether err is classified KindConfiguration.
func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }

// HTTPStatus maps an error to the response status for the API surface.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindConfiguration:
		return http.StatusInternalServerError
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindPrecondition:
		return http.StatusBadRequest
	case KindExternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
