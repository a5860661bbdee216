package domain

import (
	"errors"
	"fmt"
	"time"
)

// ServiceError represents a standardized error response
type ServiceError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput   = "INVALID_INPUT"
	ErrExternalAPI    = "EXTERNAL_API_ERROR"
	ErrLanguageModel  = "LLM_ERROR"
	ErrNotFound       = "NOT_FOUND"
	ErrConfiguration  = "CONFIGURATION_ERROR"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
)

var (
	// ErrMissingCredential is returned at construction time when a required API key is absent.
	ErrMissingCredential = errors.New("missing credential")
	// ErrSessionNotFound is returned when a lookup session is unknown or expired.
	ErrSessionNotFound = errors.New("lookup session not found")
)

// ConfigError names the configuration key that made construction fail
type ConfigError struct {
	Key string
	Err error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for '%s': %v", e.Key, e.Err)
}

// Unwrap exposes the underlying sentinel
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewMissingCredentialError reports an absent API key under the given config key.
func NewMissingCredentialError(key string) error {
	return &ConfigError{Key: key, Err: ErrMissingCredential}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewServiceError creates a new ServiceError with timestamp
func NewServiceError(code, message, details, requestID string) *ServiceError {
	return &ServiceError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
