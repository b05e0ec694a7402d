package zimage

import "fmt"

// GenerateParams holds parameters for one image generation.
type GenerateParams struct {
	Prompt        string  // Required: text description of the image
	Width         int     // Image width in pixels (128-2048, divisible by 8)
	Height        int     // Image height in pixels (128-2048, divisible by 8)
	Steps         int     // Number of denoising steps (1-100)
	GuidanceScale float64 // CFG scale; turbo checkpoints want 0.0
	Seed          int64   // Random seed (-1 for random)
}

// Parameter validation constants.
const (
	MinImageSize      = 128
	MaxImageSize      = 2048
	ImageSizeMultiple = 8 // dimensions must be divisible by this

	MinSteps = 1
	MaxSteps = 100

	MinGuidanceScale = 0.0
	MaxGuidanceScale = 30.0

	MaxPromptLength = 2000
)

// Defaults matching the deployed Z-Image-Turbo configuration.
const (
	DefaultWidth         = 1024
	DefaultHeight        = 1024
	DefaultSteps         = 9
	DefaultGuidanceScale = 0.0 // turbo models skip classifier-free guidance
)

// DefaultParams returns generation parameters with the deployment
// defaults. The caller must set Prompt.
func DefaultParams() GenerateParams {
	return GenerateParams{
		Prompt:        "",
		Width:         DefaultWidth,
		Height:        DefaultHeight,
		Steps:         DefaultSteps,
		GuidanceScale: DefaultGuidanceScale,
		Seed:          -1,
	}
}

// ValidateParams validates generation parameters.
// Pure function with no side effects.
func ValidateParams(p GenerateParams) error {
	if err := ValidatePrompt(p.Prompt); err != nil {
		return err
	}

	if p.Width < MinImageSize || p.Width > MaxImageSize {
		return fmt.Errorf("%w: width %d must be between %d and %d",
			ErrInvalidParams, p.Width, MinImageSize, MaxImageSize)
	}
	if p.Width%ImageSizeMultiple != 0 {
		return fmt.Errorf("%w: width %d must be divisible by %d",
			ErrInvalidParams, p.Width, ImageSizeMultiple)
	}

	if p.Height < MinImageSize || p.Height > MaxImageSize {
		return fmt.Errorf("%w: height %d must be between %d and %d",
			ErrInvalidParams, p.Height, MinImageSize, MaxImageSize)
	}
	if p.Height%ImageSizeMultiple != 0 {
		return fmt.Errorf("%w: height %d must be divisible by %d",
			ErrInvalidParams, p.Height, ImageSizeMultiple)
	}

	if p.Steps < MinSteps || p.Steps > MaxSteps {
		return fmt.Errorf("%w: steps %d must be between %d and %d",
			ErrInvalidParams, p.Steps, MinSteps, MaxSteps)
	}

	if p.GuidanceScale < MinGuidanceScale || p.GuidanceScale > MaxGuidanceScale {
		return fmt.Errorf("%w: guidance scale %.2f must be between %.1f and %.1f",
			ErrInvalidParams, p.GuidanceScale, MinGuidanceScale, MaxGuidanceScale)
	}

	return nil
}

// GenerateResult holds the output of one generation.
type GenerateResult struct {
	// ImageData contains the raw PNG image bytes.
	ImageData []byte
	// Width of the generated image.
	Width int
	// Height of the generated image.
	Height int
	// Seed used for generation. Differs from the input when -1 was given.
	Seed int64
}
