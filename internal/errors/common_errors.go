package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeMissingStore      ErrorType = "MISSING_STORE"
	ErrTypeMissingSheet      ErrorType = "MISSING_SHEET"
	ErrTypeInconsistentState ErrorType = "INCONSISTENT_STATE"
	ErrTypeNoResolvableDates ErrorType = "NO_RESOLVABLE_DATES"
	ErrTypeStorage           ErrorType = "STORAGE"
	ErrTypeParsing           ErrorType = "PARSING"
	ErrTypeValidation        ErrorType = "VALIDATION"
	ErrTypeNotFound          ErrorType = "NOT_FOUND"
	ErrTypeConfig            ErrorType = "CONFIG"
)

// Sentinels for errors.Is. An *AppError matches the sentinel of its type.
var (
	ErrMissingStore      = stderrors.New("store not found")
	ErrMissingSheet      = stderrors.New("sheet not found")
	ErrSheetsDisagree    = stderrors.New("sheets disagree")
	ErrNoResolvableDates = stderrors.New("no resolvable dates")
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel that corresponds to the error type.
func (e *AppError) Is(target error) bool {
	switch e.Type {
	case ErrTypeMissingStore:
		return target == ErrMissingStore
	case ErrTypeMissingSheet:
		return target == ErrMissingSheet
	case ErrTypeInconsistentState:
		return target == ErrSheetsDisagree
	case ErrTypeNoResolvableDates:
		return target == ErrNoResolvableDates
	}
	return false
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewMissingStoreError reports a workbook file that does not exist.
func NewMissingStoreError(path string, cause error) *AppError {
	return NewAppError(ErrTypeMissingStore, fmt.Sprintf("store %s does not exist", path), cause).
		WithContext("path", path)
}

// NewMissingSheetError reports a sheet that is absent from the workbook.
func NewMissingSheetError(sheet string) *AppError {
	return NewAppError(ErrTypeMissingSheet, fmt.Sprintf("sheet %q not found", sheet), nil).
		WithContext("sheet", sheet)
}

// NewSheetsDisagreeError carries the latest date observed on every sheet.
func NewSheetsDisagreeError(observed map[string]string) *AppError {
	return NewAppError(ErrTypeInconsistentState, "sheets disagree on latest date", nil).
		WithContext("observed", observed)
}

// NewNoResolvableDatesError reports a rollback with nothing to delete.
func NewNoResolvableDatesError(message string) *AppError {
	return NewAppError(ErrTypeNoResolvableDates, message, nil)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// TypeOf returns the ErrorType of the first AppError in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}
