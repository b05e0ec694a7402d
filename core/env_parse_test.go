package core

import (
	"testing"
	"time"
)

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "set")
	if got := GetEnvOrDefault("TEST_ENV_VAR", "fallback"); got != "set" {
		t.Errorf("expected set, got %q", got)
	}
	if got := GetEnvOrDefault("TEST_ENV_UNSET_VAR", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
}

func TestParseIntEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"valid", "42", 42},
		{"negative", "-7", -7},
		{"invalid", "not-a-number", 10},
		{"empty", "", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT_VAR", tt.value)
			if got := ParseIntEnv("TEST_INT_VAR", 10); got != tt.want {
				t.Errorf("ParseIntEnv(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"on", true},
		{"false", false},
		{"0", false},
		{"no", false},
		{"off", false},
		{"garbage", true}, // falls back to default
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_BOOL_VAR", tt.value)
			if got := ParseBoolEnv("TEST_BOOL_VAR", true); got != tt.want {
				t.Errorf("ParseBoolEnv(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseFloat64Env(t *testing.T) {
	t.Setenv("TEST_FLOAT_VAR", "2.5")
	if got := ParseFloat64Env("TEST_FLOAT_VAR", 1.0); got != 2.5 {
		t.Errorf("expected 2.5, got %f", got)
	}
	t.Setenv("TEST_FLOAT_VAR", "bad")
	if got := ParseFloat64Env("TEST_FLOAT_VAR", 1.0); got != 1.0 {
		t.Errorf("expected fallback 1.0, got %f", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("TEST_DUR_VAR", "90")
	if got := ParseDurationEnv("TEST_DUR_VAR", 30); got != 90*time.Second {
		t.Errorf("expected 90s, got %v", got)
	}
	t.Setenv("TEST_DUR_VAR", "")
	if got := ParseDurationEnv("TEST_DUR_VAR", 30); got != 30*time.Second {
		t.Errorf("expected 30s fallback, got %v", got)
	}
}

func TestConfigError(t *testing.T) {
	err := ErrMissingConfig("RUNPOD_API_KEY")
	if err.Code != ErrCodeMissingConfig {
		t.Errorf("unexpected code %q", err.Code)
	}
	if err.Error() == "" {
		t.Error("expected non-empty message")
	}

	if _, ok := IsConfigError(err); !ok {
		t.Error("expected IsConfigError to match")
	}
	if GetErrorCode(err) != ErrCodeMissingConfig {
		t.Error("GetErrorCode mismatch")
	}
}

func TestExitCodes(t *testing.T) {
	if ExitCodeName(ExitCodeSuccess) != "success" {
		t.Error("unexpected name for success")
	}
	if !IsSignalExit(ExitCodeSIGINT) || !IsSignalExit(ExitCodeSIGTERM) {
		t.Error("signal exits not recognized")
	}
	if IsSignalExit(ExitCodeError) {
		t.Error("error exit misclassified as signal exit")
	}
}
