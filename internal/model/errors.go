package model

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes comande errors.
type ErrorCode string

const (
	// ErrCodeStorageUnavailable indicates a persistence read or write failed.
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// ErrCodeMalformedEnvelope indicates a stored payload could not be parsed.
	ErrCodeMalformedEnvelope ErrorCode = "MALFORMED_ENVELOPE"

	// ErrCodeNotificationUnavailable indicates the push channel is missing
	// or permission was not granted.
	ErrCodeNotificationUnavailable ErrorCode = "NOTIFICATION_UNAVAILABLE"

	// ErrCodeValidation indicates rejected user input. No state was changed.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeInvalidTransition indicates a lifecycle step out of order.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeOrderNotFound indicates an unknown order id.
	ErrCodeOrderNotFound ErrorCode = "ORDER_NOT_FOUND"
)

// Error is the structured error type shared by all comande components.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description, suitable for a warning
	// notification when Code is ErrCodeValidation.
	Message string

	// Key is the store key involved, if any.
	Key string

	// OrderID is the affected order, if any.
	OrderID int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var s string
	switch {
	case e.Key != "":
		s = fmt.Sprintf("%s: %s (key=%s)", e.Code, e.Message, e.Key)
	case e.OrderID != 0:
		s = fmt.Sprintf("%s: %s (order=%d)", e.Code, e.Message, e.OrderID)
	default:
		s = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates an Error for rejected input.
func NewValidationError(message string) *Error {
	return &Error{Code: ErrCodeValidation, Message: message}
}

// NewStorageError creates an Error for a failed store operation.
func NewStorageError(op, key string, err error) *Error {
	return &Error{Code: ErrCodeStorageUnavailable, Message: op + " failed", Key: key, Err: err}
}

// NewMalformedError creates an Error for an unparseable payload.
func NewMalformedError(key string, err error) *Error {
	return &Error{Code: ErrCodeMalformedEnvelope, Message: "payload could not be decoded", Key: key, Err: err}
}

// NewNotificationError creates an Error for an unusable push channel.
func NewNotificationError(message string, err error) *Error {
	return &Error{Code: ErrCodeNotificationUnavailable, Message: message, Err: err}
}

// NewTransitionError creates an Error for an out-of-order status change.
func NewTransitionError(orderID int, from, to Status) *Error {
	return &Error{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot move from %s to %s", from, to),
		OrderID: orderID,
	}
}

// NewNotFoundError creates an Error for an unknown order id.
func NewNotFoundError(orderID int) *Error {
	return &Error{Code: ErrCodeOrderNotFound, Message: "order not found", OrderID: orderID}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsValidationError returns true if err is a validation error.
func IsValidationError(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsStorageError returns true if err is a storage failure.
func IsStorageError(err error) bool { return hasCode(err, ErrCodeStorageUnavailable) }

// IsMalformedError returns true if err is a decode failure.
func IsMalformedError(err error) bool { return hasCode(err, ErrCodeMalformedEnvelope) }

// IsNotificationError returns true if err is a push channel failure.
func IsNotificationError(err error) bool { return hasCode(err, ErrCodeNotificationUnavailable) }

// IsTransitionError returns true if err is an invalid lifecycle step.
func IsTransitionError(err error) bool { return hasCode(err, ErrCodeInvalidTransition) }

// IsNotFoundError returns true if err refers to an unknown order.
func IsNotFoundError(err error) bool { return hasCode(err, ErrCodeOrderNotFound) }

// Message returns the human-readable part of a structured error, or
// err.Error() for anything else.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
