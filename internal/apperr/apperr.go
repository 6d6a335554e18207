// Package apperr defines the stable error taxonomy surfaced to API clients.
//
// Every user-visible failure in this system carries one of the Code values
// below, per the contract in spec §6/§7: {"error":{"code","message","details"}}.
package apperr

import (
	"net/http"

	"github.com/mdobak/go-xerrors"
)

// Code is a stable, client-facing error enum. Never rename a published value.
type Code string

const (
	CodeFileTooLarge        Code = "FILE_TOO_LARGE"
	CodeUnsupportedFormat   Code = "UNSUPPORTED_FORMAT"
	CodeEmptyInput          Code = "EMPTY_INPUT"
	CodeAudioTooShort       Code = "AUDIO_TOO_SHORT"
	CodeDecodeFailed        Code = "DECODE_FAILED"
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeIndexUnavailable    Code = "INDEX_UNAVAILABLE"
	CodeVectorStoreDown     Code = "VECTOR_STORE_UNAVAILABLE"
	CodeModelNotLoaded      Code = "MODEL_NOT_LOADED"
	CodeBusy                Code = "BUSY"
	CodeSearchUnavailable   Code = "SEARCH_UNAVAILABLE"
	CodeSearchTimeout       Code = "SEARCH_TIMEOUT"
	CodeInternal            Code = "INTERNAL"
)

// statusByCode maps each stable code to the HTTP status in spec §6.
var statusByCode = map[Code]int{
	CodeFileTooLarge:      http.StatusBadRequest,
	CodeUnsupportedFormat: http.StatusUnprocessableEntity,
	CodeEmptyInput:        http.StatusBadRequest,
	CodeAudioTooShort:     http.StatusBadRequest,
	CodeDecodeFailed:      http.StatusUnprocessableEntity,
	CodeValidation:        http.StatusBadRequest,
	CodeIndexUnavailable:  http.StatusServiceUnavailable,
	CodeVectorStoreDown:   http.StatusServiceUnavailable,
	CodeModelNotLoaded:    http.StatusInternalServerError,
	CodeBusy:              http.StatusTooManyRequests,
	CodeSearchUnavailable: http.StatusServiceUnavailable,
	CodeSearchTimeout:     http.StatusGatewayTimeout,
	CodeInternal:          http.StatusInternalServerError,
}

// Error is the error type returned across package boundaries in this
// module. It carries a stable Code, a human-readable Message, optional
// structured Details, and the underlying cause (with a captured stack
// trace, for logging).
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// StatusCode returns the HTTP status this error should produce.
func (e *Error) StatusCode() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New builds an Error, capturing a stack trace on the wrapped cause so it
// shows up in structured logs without the caller needing to annotate it.
func New(code Code, message string, cause error) *Error {
	var traced error
	if cause != nil {
		traced = xerrors.New(cause)
	}
	return &Error{Code: code, Message: message, cause: traced}
}

// WithDetails attaches structured context (e.g. {"max_bytes": N}) and
// returns the same error for chaining at the call site.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// As extracts an *Error from err, or reports false.
func As(err error) (*Error, bool) {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if ae, ok := err.(*Error); ok {
			return ae, true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// Envelope is the JSON body for every non-2xx response.
type Envelope struct {
	Error EnvelopeBody `json:"error"`
}

type EnvelopeBody struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ToEnvelope converts any error into the wire envelope, defaulting unknown
// errors to CodeInternal so no error ever reaches the client as a bare 500
// with no stable code.
func ToEnvelope(err error) (int, Envelope) {
	ae, ok := As(err)
	if !ok {
		ae = New(CodeInternal, "internal error", err)
	}
	return ae.StatusCode(), Envelope{Error: EnvelopeBody{
		Code:    ae.Code,
		Message: ae.Message,
		Details: ae.Details,
	}}
}
