package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed remote call.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "notFound"
	KindConflict     Kind = "conflict"
	KindBadRequest   Kind = "badRequest"
	KindServerError  Kind = "serverError"
	// KindTransport covers failures where no usable response arrived:
	// network errors, timeouts, cancellation and undecodable bodies.
	KindTransport Kind = "transport"
)

// Error is returned by every Client call that does not succeed.
type Error struct {
	Kind Kind
	// Code is the HTTP status, zero for transport failures.
	Code    int
	Method  string
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s (%d) on %s %s: %s", e.Kind, e.Code, e.Method, e.Path, msg)
	}
	return fmt.Sprintf("%s on %s %s: %s", e.Kind, e.Method, e.Path, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// kindForStatus maps a non-2xx status to its error kind. 429 is treated as
// a server-side condition so it is retried.
func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized:
		return KindUnauthorized
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusConflict:
		return KindConflict
	case code == http.StatusTooManyRequests, code >= 500:
		return KindServerError
	default:
		return KindBadRequest
	}
}

// KindOf returns the kind of a remote error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return "", false
}

// IsRetryable reports whether err is worth replaying later: server errors
// and transport failures are, everything else is terminal.
func IsRetryable(err error) bool {
	kind, ok := KindOf(err)
	return ok && (kind == KindServerError || kind == KindTransport)
}

// IsUnauthorized reports whether the server rejected the credentials.
func IsUnauthorized(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindUnauthorized
}

// IsNotFound reports whether the server has no such resource.
func IsNotFound(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindNotFound
}
