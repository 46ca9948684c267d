package errors

import (
	"errors"
	"fmt"
)

// Standard application errors
var (
	ErrEmptyInput          = errors.New("input is empty or contains only whitespace")
	ErrMalformedLiteral    = errors.New("argument text does not parse as a literal expression")
	ErrUnsupportedArgument = errors.New("argument is not a string, map or collection literal")
	ErrInvalidInputShape   = errors.New("value is not a property-bag-like shape")
	ErrMissingPropertyList = errors.New("a property list is required to compare this source type")
	ErrFileNotFound        = errors.New("file not found")
	ErrFileEmpty           = errors.New("file is empty")
	ErrNoInput             = errors.New("no input provided: please specify a file with -i or pipe data to stdin")
	ErrInvalidFilePath     = errors.New("invalid file path")
	ErrMissingSecureKey    = errors.New("no secure key configured")
	// ErrNotInDesiredState is not a failure: it carries the mismatch verdict
	// out of the compare command so the process can exit with code 1.
	ErrNotInDesiredState = errors.New("current state does not match desired state")
)

// ErrorType categorizes errors
type ErrorType string

const (
	ErrorTypeInput   ErrorType = "input"
	ErrorTypeExtract ErrorType = "extract"
	ErrorTypeRender  ErrorType = "render"
	ErrorTypeCompare ErrorType = "compare"
	ErrorTypeConfig  ErrorType = "config"
	ErrorTypeSecure  ErrorType = "secure"
	ErrorTypeOutput  ErrorType = "output"
	ErrorTypeUnknown ErrorType = "unknown"
)

// AppError is an application-specific error with context
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for comparison
func (e *AppError) Is(target error) bool {
	// Check if target is also an *AppError and if the types match
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewInputError creates a new error related to input processing
func NewInputError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInput,
		Message: message,
		Err:     err,
	}
}

// NewExtractError creates a new error related to literal extraction
func NewExtractError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExtract,
		Message: message,
		Err:     err,
	}
}

// NewRenderError creates a new error related to expression rendering
func NewRenderError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeRender,
		Message: message,
		Err:     err,
	}
}

// NewCompareError creates a new error related to state comparison
func NewCompareError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeCompare,
		Message: message,
		Err:     err,
	}
}

// NewConfigError creates a new error related to configuration loading
func NewConfigError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeConfig,
		Message: message,
		Err:     err,
	}
}

// NewSecureError creates a new error related to secure value handling
func NewSecureError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeSecure,
		Message: message,
		Err:     err,
	}
}

// NewOutputError creates a new error related to output processing
func NewOutputError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeOutput,
		Message: message,
		Err:     err,
	}
}

// UserFriendlyError returns a user-friendly error message
func UserFriendlyError(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case ErrorTypeInput:
			return fmt.Sprintf("Input error: %s", appErr.Message)
		case ErrorTypeExtract:
			return fmt.Sprintf("Literal extraction error: %s", appErr.Message)
		case ErrorTypeRender:
			return fmt.Sprintf("Rendering error: %s", appErr.Message)
		case ErrorTypeCompare:
			return fmt.Sprintf("Comparison error: %s", appErr.Message)
		case ErrorTypeConfig:
			return fmt.Sprintf("Configuration error: %s", appErr.Message)
		case ErrorTypeSecure:
			return fmt.Sprintf("Secure value error: %s", appErr.Message)
		case ErrorTypeOutput:
			return fmt.Sprintf("Output error: %s", appErr.Message)
		default:
			return fmt.Sprintf("Error: %s", appErr.Message)
		}
	}

	// Handle standard errors
	if errors.Is(err, ErrEmptyInput) {
		return "Error: The input is empty. Please provide a literal expression or JSON state."
	}
	if errors.Is(err, ErrMalformedLiteral) {
		return "Error: The input does not parse as a literal expression. Please check quoting and brackets."
	}
	if errors.Is(err, ErrUnsupportedArgument) {
		return "Error: Only string, map and collection literals can be extracted. Variable references and command calls are not supported."
	}
	if errors.Is(err, ErrInvalidInputShape) {
		return "Error: Compared values must be property bags (maps or structured objects)."
	}
	if errors.Is(err, ErrMissingPropertyList) {
		return "Error: This source type requires an explicit property list for comparison."
	}
	if errors.Is(err, ErrFileNotFound) {
		return "Error: The specified file could not be found. Please check the file path."
	}
	if errors.Is(err, ErrFileEmpty) {
		return "Error: The specified file is empty."
	}
	if errors.Is(err, ErrNoInput) {
		return "Error: No input provided. Please specify a file with -i or pipe data to stdin."
	}
	if errors.Is(err, ErrInvalidFilePath) {
		return "Error: Invalid file path. Please provide a valid file path."
	}
	if errors.Is(err, ErrMissingSecureKey) {
		return "Error: No secure key configured. Set the key environment variable or a key file in the config."
	}

	// Generic error message for unknown errors
	return fmt.Sprintf("Error: %v", err)
}
