package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrDuplicateOrderID   = errors.New("custom_order_id already exists")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrInternal           = errors.New("internal error")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError carries the field-level reason next to ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// WebhookError is a rejected callback. Reason is what the audit record holds.
type WebhookError struct {
	Kind   error
	Reason string
}

func (e *WebhookError) Error() string { return e.Kind.Error() + ": " + e.Reason }

func (e *WebhookError) Unwrap() error { return e.Kind }
