package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Status   int    `json:"status"`
	EntityID string `json:"entity_id,omitempty"`
	Err      error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if e.EntityID != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.EntityID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so that clones compare equal to their template.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	ErrInvalidState          = New("INVALID_STATE", http.StatusConflict, "operation not valid for current status")
	ErrNotAssignee           = New("NOT_ASSIGNEE", http.StatusForbidden, "only the assignee may do this")
	ErrNotHolder             = New("NOT_HOLDER", http.StatusForbidden, "asset is held by someone else")
	ErrInvalidAmount         = New("INVALID_AMOUNT", http.StatusBadRequest, "amount must be greater than zero")
	ErrMissingReceipt        = New("MISSING_RECEIPT", http.StatusUnprocessableEntity, "expense requires a receipt")
	ErrEventFull             = New("EVENT_FULL", http.StatusConflict, "event is full")
	ErrEventClosed           = New("EVENT_CLOSED", http.StatusConflict, "event no longer accepts responses")
	ErrAssetUnavailable      = New("ASSET_UNAVAILABLE", http.StatusConflict, "someone already borrowed this asset")
	ErrAssetAlreadyAvailable = New("ASSET_ALREADY_AVAILABLE", http.StatusConflict, "asset is already available")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// ForEntity returns a copy of err tagged with the id of the entity it concerns.
func ForEntity(err *Error, entityID string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.EntityID = entityID
	return &clone
}

// HasCode reports whether err normalises to an *Error carrying code.
func HasCode(err error, code string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}
