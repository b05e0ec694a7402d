package zimage

import "errors"

// Sentinel errors for engine operations.
var (
	// Model-related errors
	ErrModelNotFound   = errors.New("zimage: model weights not found")
	ErrModelLoadFailed = errors.New("zimage: failed to load model")

	// Generation errors
	ErrGenerationFailed  = errors.New("zimage: image generation failed")
	ErrGenerationTimeout = errors.New("zimage: image generation timed out")

	// Input validation errors
	ErrInvalidPrompt = errors.New("zimage: invalid prompt")
	ErrInvalidParams = errors.New("zimage: invalid generation parameters")

	// Hardware/resource errors
	ErrCUDANotAvailable = errors.New("zimage: CUDA not available")
	ErrOutOfVRAM        = errors.New("zimage: out of VRAM")

	// Pipeline pool errors
	ErrPoolClosed     = errors.New("zimage: pipeline pool is closed")
	ErrAcquireTimeout = errors.New("zimage: timeout acquiring pipeline from pool")
)
