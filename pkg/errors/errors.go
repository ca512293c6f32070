package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies the errors produced by the scraper pipeline
type Kind string

const (
	KindAuth       Kind = "auth"
	KindHTTP       Kind = "http"
	KindNetwork    Kind = "network"
	KindDownload   Kind = "download"
	KindResolution Kind = "resolution"
	KindFormat     Kind = "format"
)

// Error is the typed error carried across package boundaries
type Error struct {
	Kind    Kind
	Message string
	Status  int    // HTTP status code, when applicable
	URL     string // request URL, when applicable
	Err     error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.URL != "":
		return fmt.Sprintf("%s error (status %d) for %s: %s", e.Kind, e.Status, e.URL, e.Message)
	case e.URL != "":
		return fmt.Sprintf("%s error for %s: %s", e.Kind, e.URL, e.Message)
	default:
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Auth creates an authentication error (missing token, rejected credentials)
func Auth(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuth, Message: fmt.Sprintf(format, args...)}
}

// HTTP creates an error for a non-2xx response
func HTTP(status int, url string) *Error {
	return &Error{
		Kind:    KindHTTP,
		Message: "unexpected status",
		Status:  status,
		URL:     url,
	}
}

// Network creates an error for a connection-level failure
func Network(url string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: err.Error(), URL: url, Err: err}
}

// Download creates an error for a failed transfer or remux
func Download(format string, args ...interface{}) *Error {
	return &Error{Kind: KindDownload, Message: fmt.Sprintf(format, args...)}
}

// Resolution creates an error for an unresolvable user or stream URL
func Resolution(format string, args ...interface{}) *Error {
	return &Error{Kind: KindResolution, Message: fmt.Sprintf(format, args...)}
}

// Format creates an error for unparseable input such as a duration string
func Format(format string, args ...interface{}) *Error {
	return &Error{Kind: KindFormat, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to an existing typed error
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// IsKind reports whether err is a typed error of the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsRetryable checks if an error kind should be retried
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindNetwork:
		return true
	case KindAuth, KindResolution, KindFormat, KindDownload:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Connection-level failure
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500
	}
}

// IsRetryableError reports whether a typed error should be retried,
// taking the HTTP status into account for KindHTTP errors
func IsRetryableError(err error) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	if e.Kind == KindHTTP {
		return IsRetryableStatusCode(e.Status)
	}
	return IsRetryable(e.Kind)
}
