package core

import (
	"fmt"
)

// ConfigError is a configuration error with an actionable resolution hint.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors.
const (
	ErrCodeEnvFileMissing    = "ENV_FILE_MISSING"
	ErrCodeInvalidEndpoint   = "INVALID_ENDPOINT"
	ErrCodeMissingAuth       = "MISSING_AUTH"
	ErrCodeModelUnavailable  = "MODEL_UNAVAILABLE"
	ErrCodeServerUnreachable = "SERVER_UNREACHABLE"
	ErrCodeMissingConfig     = "MISSING_CONFIG"
	ErrCodeInvalidConfig     = "INVALID_CONFIG"
)

// ErrEnvFileMissing returns an error for a missing .env file.
func ErrEnvFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeEnvFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Copy example.env to .env and configure the required values",
	}
}

// ErrInvalidEndpoint returns an error for a malformed endpoint ID or URL.
func ErrInvalidEndpoint(value, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidEndpoint,
		Message: fmt.Sprintf("Invalid endpoint %q: %s", value, reason),
		Action:  "Set RUNPOD_ENDPOINT_ID to the endpoint ID shown in the RunPod console",
	}
}

// ErrMissingAuth returns an error for missing API credentials.
func ErrMissingAuth(service string) *ConfigError {
	var action string
	switch service {
	case "runpod":
		action = "Set RUNPOD_API_KEY in your .env file"
	case "openai":
		action = "Set OPENAI_API_KEY in your .env file (or disable prompt enhancement)"
	default:
		action = fmt.Sprintf("Set the required API key for %s in your .env file", service)
	}
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: fmt.Sprintf("Missing authentication credentials for %s", service),
		Action:  action,
	}
}

// ErrModelUnavailable returns an error when the model weights are missing.
func ErrModelUnavailable(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeModelUnavailable,
		Message: fmt.Sprintf("Model weights not found at %s", path),
		Action:  "Set ZIMAGE_MODEL_PATH to the pinned Z-Image-Turbo weights directory",
	}
}

// ErrServerUnreachable returns an error when an endpoint cannot be reached.
func ErrServerUnreachable(url string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeServerUnreachable,
		Message: fmt.Sprintf("Cannot connect to %s: %s", url, reason),
		Action:  "Check network access and that the endpoint is deployed",
	}
}

// ErrMissingConfig returns an error for a missing required variable.
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file", varName),
	}
}

// ErrInvalidConfig returns an error for an out-of-range configuration value.
func ErrInvalidConfig(varName, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidConfig,
		Message: fmt.Sprintf("Invalid value for %s: %s", varName, reason),
		Action:  fmt.Sprintf("Correct %s in your .env file", varName),
	}
}

// IsConfigError checks whether err is a ConfigError.
func IsConfigError(err error) (*ConfigError, bool) {
	if configErr, ok := err.(*ConfigError); ok {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from a ConfigError, or "".
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
