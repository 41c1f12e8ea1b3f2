package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("appointment not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// ValidationError names the field that broke a constraint.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func required(field string) error {
	return &ValidationError{Field: field, Message: field + " is required"}
}

func validateDate(date string) error {
	if date == "" {
		return required("date")
	}
	if !ValidDate(date) {
		return &ValidationError{Field: "date", Message: "date must be in YYYY-MM-DD format"}
	}
	return nil
}

// InvalidArgument wraps ErrInvalidArgument with a client-facing reason.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
