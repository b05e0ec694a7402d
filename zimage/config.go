package zimage

import (
	"os"
	"strconv"
	"time"
)

// EngineConfig holds runtime configuration for the Z-Image engine.
type EngineConfig struct {
	// Generation defaults
	Width         int     // Default image width
	Height        int     // Default image height
	Steps         int     // Default inference steps
	GuidanceScale float64 // Default CFG scale; turbo checkpoints want 0.0

	// Runtime configuration
	Timeout       time.Duration // Per-generation timeout
	MaxConcurrent int           // Maximum concurrent generations (pool size)

	// Model configuration
	ModelPath string // Path to model weights directory or file
}

// Runtime default values.
const (
	DefaultTimeoutSeconds = 120
	DefaultMaxConcurrent  = 1
)

// LoadEngineConfig loads engine configuration from ZIMAGE_* environment
// variables. Invalid or empty values fall back to defaults.
func LoadEngineConfig() *EngineConfig {
	return &EngineConfig{
		Width:         parseDimension(os.Getenv("ZIMAGE_WIDTH")),
		Height:        parseDimension(os.Getenv("ZIMAGE_HEIGHT")),
		Steps:         parseSteps(os.Getenv("ZIMAGE_STEPS")),
		GuidanceScale: parseGuidance(os.Getenv("ZIMAGE_GUIDANCE_SCALE")),
		Timeout:       parseTimeout(os.Getenv("ZIMAGE_TIMEOUT_SECONDS")),
		MaxConcurrent: parseMaxConcurrent(os.Getenv("ZIMAGE_MAX_CONCURRENT")),
		ModelPath:     os.Getenv("ZIMAGE_MODEL_PATH"),
	}
}

// parseDimension parses and validates an image dimension from string.
// Returns the default if invalid, out of range, or not divisible by 8.
func parseDimension(s string) int {
	if s == "" {
		return DefaultWidth
	}

	size, err := strconv.Atoi(s)
	if err != nil {
		return DefaultWidth
	}

	if size < MinImageSize || size > MaxImageSize || size%ImageSizeMultiple != 0 {
		return DefaultWidth
	}

	return size
}

// parseSteps parses and validates inference steps from string.
func parseSteps(s string) int {
	if s == "" {
		return DefaultSteps
	}

	steps, err := strconv.Atoi(s)
	if err != nil {
		return DefaultSteps
	}

	if steps < MinSteps || steps > MaxSteps {
		return DefaultSteps
	}

	return steps
}

// parseGuidance parses and validates CFG scale from string.
func parseGuidance(s string) float64 {
	if s == "" {
		return DefaultGuidanceScale
	}

	scale, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return DefaultGuidanceScale
	}

	if scale < MinGuidanceScale || scale > MaxGuidanceScale {
		return DefaultGuidanceScale
	}

	return scale
}

// parseTimeout parses a timeout in seconds from string.
func parseTimeout(s string) time.Duration {
	if s == "" {
		return time.Duration(DefaultTimeoutSeconds) * time.Second
	}

	seconds, err := strconv.Atoi(s)
	if err != nil || seconds <= 0 {
		return time.Duration(DefaultTimeoutSeconds) * time.Second
	}

	return time.Duration(seconds) * time.Second
}

// parseMaxConcurrent parses the maximum concurrent generations from string.
func parseMaxConcurrent(s string) int {
	if s == "" {
		return DefaultMaxConcurrent
	}

	concurrent, err := strconv.Atoi(s)
	if err != nil || concurrent < 1 {
		return DefaultMaxConcurrent
	}

	return concurrent
}

// DefaultParamsFromConfig returns generation parameters seeded from the
// engine configuration. The caller must set Prompt.
func (c *EngineConfig) DefaultParamsFromConfig() GenerateParams {
	return GenerateParams{
		Prompt:        "",
		Width:         c.Width,
		Height:        c.Height,
		Steps:         c.Steps,
		GuidanceScale: c.GuidanceScale,
		Seed:          -1,
	}
}
