package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("email already registered")
	ErrAuthentication = errors.New("invalid credentials")
	ErrNotApproved    = errors.New("account pending approval")
	ErrForbidden      = errors.New("admin access required")
	ErrNotFound       = errors.New("not found")
	ErrInvalidOTP     = errors.New("invalid or expired otp")
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrNotifier       = errors.New("notification delivery failed")
)

// ValidationError names the offending field. errors.Is(err, ErrValidation) holds.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func required(field string) error { return &ValidationError{Field: field} }

// NotFoundError carries the missing entity for the response body.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(entity string) error { return &NotFoundError{Entity: entity} }
