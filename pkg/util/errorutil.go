package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// GenericMessage is shown when the backend gives no usable message.
const GenericMessage = "An unexpected error occurred."

// Error codes surfaced to the UI.
const (
	CodeValidation   = "VALIDATION_FAILED"
	CodeEnvelope     = "ENVELOPE_ERROR"
	CodeUpstream     = "UPSTREAM_ERROR"
	CodeTransport    = "TRANSPORT_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeInternal     = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

// NewEnvelopeError reports a 2xx response whose envelope status is not "success".
func NewEnvelopeError(message string) error {
	return NewDomainError(CodeEnvelope, messageOrGeneric(message), http.StatusUnprocessableEntity, nil)
}

// NewUpstreamError reports a non-2xx backend response other than 401.
func NewUpstreamError(status int, message string) error {
	if status < 400 || status > 599 {
		status = http.StatusBadGateway
	}
	return NewDomainError(CodeUpstream, messageOrGeneric(message), status, nil)
}

// NewTransportError reports a request that never produced a response.
func NewTransportError(err error) error {
	return &DomainError{
		Code:       CodeTransport,
		Message:    GenericMessage,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, messageOrGeneric(message), http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsUnauthorized reports whether err carries a 401.
func IsUnauthorized(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == CodeUnauthorized
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return &DomainError{
			Code:       http.StatusText(fiberErr.Code),
			Message:    fiberErr.Message,
			HTTPStatus: fiberErr.Code,
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func messageOrGeneric(message string) string {
	if message == "" {
		return GenericMessage
	}
	return message
}
