package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Pipeline failure taxonomy. Malformed payloads and validation failures are
// permanently unprocessable and must never be redelivered; transport-level
// failures are transient and eligible for queue redelivery; anything else is
// conservatively treated as retryable and escalates to the DLQ through the
// receive-count limit.
var (
	ErrMalformedPayload = NewError("MALFORMED_PAYLOAD", "payload is not parseable", http.StatusBadRequest).AsPermanent()
	ErrInvalidEvent     = NewError("INVALID_EVENT", "event failed validation", http.StatusBadRequest).AsPermanent()
	ErrValidation       = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest).AsPermanent()
	ErrNotFound         = NewError("NOT_FOUND", "resource not found", http.StatusNotFound).AsPermanent()
	ErrTransport        = NewError("TRANSPORT_ERROR", "downstream transport failure", http.StatusBadGateway).AsTransient()
	ErrTimeout          = NewError("TIMEOUT", "operation timed out", http.StatusRequestTimeout).AsTransient()
	ErrThrottled        = NewError("THROTTLED", "downstream throttling", http.StatusTooManyRequests).AsTransient()
	ErrInternal         = NewError("INTERNAL_ERROR", "internal error", http.StatusInternalServerError)
)

type TransientError interface {
	error
	IsTransient() bool
}

type Error struct {
	Code      string
	Message   string
	Status    int
	Details   map[string]interface{}
	Cause     error
	transient *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
			msg = detailMsg
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) IsTransient() bool {
	if e.transient != nil {
		return *e.transient
	}
	if e.Cause != nil {
		var transientErr TransientError
		if errors.As(e.Cause, &transientErr) {
			return transientErr.IsTransient()
		}
	}
	// Unknown errors default to retryable; the receive-count cap bounds them.
	return true
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	if err.Details == nil {
		err.Details = make(map[string]interface{})
	}
	err.Details[key] = value
	return &err
}

func (e *Error) AsTransient() *Error {
	err := *e
	transient := true
	err.transient = &transient
	return &err
}

func (e *Error) AsPermanent() *Error {
	err := *e
	transient := false
	err.transient = &transient
	return &err
}

// IsTransient reports whether err should be redelivered. Errors outside our
// taxonomy are treated as transient so that unexpected failures get at least
// one more delivery attempt before landing in the DLQ.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var transientErr TransientError
	if errors.As(err, &transientErr) {
		return transientErr.IsTransient()
	}
	return true
}

// IsPermanent reports whether err must never be redelivered.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	return !IsTransient(err)
}

func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal.Code
}

func IsMalformed(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == ErrMalformedPayload.Code
	}
	return false
}

func IsValidation(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == ErrValidation.Code || appErr.Code == ErrInvalidEvent.Code
	}
	return false
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}

	if len(appErr.Details) > 0 {
		response["details"] = appErr.Details
	}

	return response
}
