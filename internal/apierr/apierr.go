// Package apierr classifies errors crossing the control-plane boundary so
// the gin layer can turn any failure into a stable {error, message, status}
// response without every handler re-deriving an HTTP status from scratch.
package apierr

import (
	"errors"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a Classified error for status-code mapping and logging.
type Kind int

const (
	// Internal is the zero value: an unexpected failure, logged with a
	// stack trace and reported to the client as a generic 500.
	Internal Kind = iota
	// Transient indicates the caller should retry shortly (a SOAP
	// transport timeout, a speaker mid-transition).
	Transient
	// NotFound indicates the referenced stream, session, or speaker
	// doesn't exist.
	NotFound
	// InvalidRequest indicates malformed or semantically invalid input.
	InvalidRequest
	// Configuration indicates a misconfigured server (missing auth
	// secret, bad listen address) rather than a client mistake.
	Configuration
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case NotFound:
		return "not_found"
	case InvalidRequest:
		return "invalid_request"
	case Configuration:
		return "configuration"
	default:
		return "internal"
	}
}

// httpStatus maps a Kind to the status code the control plane responds with.
func (k Kind) httpStatus() int {
	switch k {
	case Transient:
		return http.StatusServiceUnavailable
	case NotFound:
		return http.StatusNotFound
	case InvalidRequest:
		return http.StatusBadRequest
	case Configuration:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Classified is an error carrying enough structure for the control plane to
// respond consistently: a Kind for status mapping, a stable machine Code
// for API consumers, and a human Message. Cause is wrapped with
// github.com/pkg/errors so %+v logging at the boundary retains a stack.
type Classified struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Classified) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Classified) Unwrap() error { return e.Cause }

// Status returns the HTTP status code this error should be reported as.
func (e *Classified) Status() int { return e.Kind.httpStatus() }

// New builds a Classified error with no wrapped cause.
func New(kind Kind, code, message string) *Classified {
	return &Classified{Kind: kind, Code: code, Message: message}
}

// Wrap classifies cause, attaching a stack trace via pkg/errors unless
// cause already carries one (wrapping twice would duplicate frames).
func Wrap(kind Kind, code, message string, cause error) *Classified {
	if cause == nil {
		return New(kind, code, message)
	}
	if _, ok := cause.(interface{ StackTrace() pkgerrors.StackTrace }); ok {
		return &Classified{Kind: kind, Code: code, Message: message, Cause: cause}
	}
	return &Classified{Kind: kind, Code: code, Message: message, Cause: pkgerrors.WithStack(cause)}
}

// NotFoundf builds a NotFound Classified error.
func NotFoundf(code, message string) *Classified {
	return New(NotFound, code, message)
}

// InvalidRequestf builds an InvalidRequest Classified error.
func InvalidRequestf(code, message string) *Classified {
	return New(InvalidRequest, code, message)
}

// Transientf wraps cause as a Transient Classified error.
func Transientf(code, message string, cause error) *Classified {
	return Wrap(Transient, code, message, cause)
}

// Internalf wraps cause as an Internal Classified error.
func Internalf(code, message string, cause error) *Classified {
	return Wrap(Internal, code, message, cause)
}

// Envelope is the JSON body the control plane serializes a Classified error
// into.
type Envelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// AsEnvelope classifies err (defaulting to Internal if it isn't already a
// *Classified) and returns the response envelope plus the status to send
// it with.
func AsEnvelope(err error) (Envelope, int) {
	var c *Classified
	if errors.As(err, &c) {
		return Envelope{Error: c.Code, Message: c.Message, Status: c.Status()}, c.Status()
	}
	status := http.StatusInternalServerError
	return Envelope{Error: "internal", Message: err.Error(), Status: status}, status
}
