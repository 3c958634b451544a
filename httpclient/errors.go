package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed call.
type ErrorKind int

const (
	KindTimeout ErrorKind = iota
	KindConnection
	KindAuth
	KindNotFound
	KindRateLimit
	KindClient
	KindServer
)

var kindNames = map[ErrorKind]string{
	KindTimeout:    "timeout",
	KindConnection: "connection",
	KindAuth:       "auth",
	KindNotFound:   "not_found",
	KindRateLimit:  "rate_limit",
	KindClient:     "client",
	KindServer:     "server",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is a classified client failure.
type Error struct {
	Kind ErrorKind
	// StatusCode is 0 for transport-level failures.
	StatusCode int
	Retryable  bool
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Kind, e.StatusCode, snippet(e.Body))
	}
	return fmt.Sprintf("httpclient: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func transportError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Retryable: true, Err: err}
}

// statusError classifies a non-2xx response; it returns nil for 2xx.
func statusError(status int, body []byte) *Error {
	e := &Error{StatusCode: status, Body: body}
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindAuth
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusTooManyRequests:
		e.Kind, e.Retryable = KindRateLimit, true
	case status == http.StatusRequestTimeout:
		e.Kind, e.Retryable = KindTimeout, true
	case status >= 500:
		e.Kind, e.Retryable = KindServer, true
	default:
		e.Kind = KindClient
	}
	return e
}

func snippet(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// IsRetryable reports whether err is a transient client failure.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

// KindOf returns the kind of a client error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
