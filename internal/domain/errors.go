package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrUploadFailed     = errors.New("upload failed")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrConflict         = errors.New("concurrent modification")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field-level detail and matches ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Add appends a field error and returns the receiver for chaining.
func (e *ValidationError) Add(field, msg string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
	return e
}

// Has reports whether field already carries an error.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Merge appends the field errors of err when it is a *ValidationError and
// skips fields that already carry one. Other errors are returned unchanged.
func (e *ValidationError) Merge(err error) error {
	var other *ValidationError
	if !errors.As(err, &other) {
		return err
	}
	for _, f := range other.Fields {
		if !e.Has(f.Field) {
			e.Fields = append(e.Fields, f)
		}
	}
	return nil
}

// Err returns nil when no field errors were collected.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// UploadError identifies the batch item whose upload failed.
type UploadError struct {
	Index int
	Name  string
	Err   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload image %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

func (e *UploadError) Is(target error) bool { return target == ErrUploadFailed }
