package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces sensitive data in log output.
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns are compiled once at package initialization.
var sensitivePatterns = []*regexp.Regexp{
	// RunPod API keys (rpa_ prefix) and generic long hex keys
	regexp.MustCompile(`(?i)(rpa_[a-zA-Z0-9]{20,})`),
	regexp.MustCompile(`(?i)([A-Z0-9]{14}[A-Z0-9]{20,})`),
	// OpenAI-style keys used by the prompt enhancer
	regexp.MustCompile(`(?i)(sk-[a-zA-Z0-9_-]{20,})`),
	// Bearer tokens in logged headers or URLs
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`),
	// Generic secret assignments
	regexp.MustCompile(`(?i)(password\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(secret\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(token\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(api_key\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(apikey\s*[:=]\s*[^\s,;]{8,})`),
}

// sensitiveFieldNames are log field names whose values are always redacted.
var sensitiveFieldNames = []string{
	"RUNPOD_API_KEY",
	"OPENAI_API_KEY",
	"DASHBOARD_PASSWORD",
	"PASSWORD",
	"SECRET",
	"TOKEN",
	"API_KEY",
	"APIKEY",
	"AUTHORIZATION",
}

// RedactSensitiveData scans a string and redacts detected secrets.
// Pure function: input string in, sanitized string out.
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// RedactField redacts a field value when the field name indicates a
// secret, otherwise applies pattern-based redaction to the value.
func RedactField(name, value string) string {
	if value == "" {
		return value
	}

	upper := strings.ToUpper(name)
	for _, sensitive := range sensitiveFieldNames {
		if strings.Contains(upper, sensitive) {
			return RedactedPlaceholder
		}
	}

	return RedactSensitiveData(value)
}

// IsSensitiveFieldName reports whether a field name indicates secret data.
func IsSensitiveFieldName(name string) bool {
	upper := strings.ToUpper(name)
	for _, sensitive := range sensitiveFieldNames {
		if strings.Contains(upper, sensitive) {
			return true
		}
	}
	return false
}
