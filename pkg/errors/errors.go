// Package errors defines the typed errors the order pipeline hands to the
// HTTP layer, and how each code is rendered to clients.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation  Code = "VALIDATION_ERROR"
	CodeNotFound    Code = "NOT_FOUND"
	CodeConflict    Code = "CONFLICT"
	CodeIdempotency Code = "IDEMPOTENCY_KEY_REUSED"
	CodeTooLarge    Code = "PAYLOAD_TOO_LARGE"
	CodeInternal    Code = "INTERNAL_ERROR"
	CodeDependency  Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a Code is surfaced over HTTP. Client-facing text is
// Spanish, matching the storefront UI.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:  {HTTPStatus: http.StatusBadRequest, PublicMessage: "Datos de la orden inválidos", DetailsAllowed: true},
	CodeNotFound:    {HTTPStatus: http.StatusNotFound, PublicMessage: "Recurso no encontrado"},
	CodeConflict:    {HTTPStatus: http.StatusConflict, PublicMessage: "La orden entra en conflicto con otra operación"},
	CodeIdempotency: {HTTPStatus: http.StatusConflict, PublicMessage: "La clave de idempotencia ya se usó con otra solicitud", DetailsAllowed: true},
	CodeTooLarge:    {HTTPStatus: http.StatusRequestEntityTooLarge, PublicMessage: "La solicitud excede el tamaño permitido"},
	CodeInternal:    {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "Error interno al procesar la orden"},
	CodeDependency:  {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "Servicio temporalmente no disponible", DetailsAllowed: true},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error carries a code, a client-safe message, optional details and the
// underlying cause, which is never shown to clients.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails attaches client-visible details, such as per-field errors.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// StatusOf is the HTTP status err would be rendered with.
func StatusOf(err error) int {
	return MetadataFor(As(err).Code()).HTTPStatus
}
