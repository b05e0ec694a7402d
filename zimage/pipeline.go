package zimage

// Pipeline is an opaque handle to a loaded Z-Image diffusion pipeline.
// The real implementation wraps a C pointer to the loaded model; the
// default build tracks stub state by ID.
type Pipeline struct {
	// id is used by the stub implementation for tracking
	id uint64
	// modelPath stores the path used to load this pipeline
	modelPath string
	// valid indicates if this pipeline is usable
	valid bool
}

// IsValid returns whether this pipeline is loaded and usable.
func (p *Pipeline) IsValid() bool {
	if p == nil {
		return false
	}
	return p.valid
}

// ModelPath returns the model path used to create this pipeline.
func (p *Pipeline) ModelPath() string {
	if p == nil {
		return ""
	}
	return p.modelPath
}

// LoadPipeline loads the Z-Image model weights and returns a pipeline
// handle for generation. modelPath points to the checkpoint directory
// or file; the default build accepts an empty path and renders
// deterministic placeholder images instead.
//
// Errors:
//   - ErrModelNotFound: modelPath is set but does not exist
//   - ErrModelLoadFailed: the backend fails to load the weights
//
// The returned Pipeline must be released with FreePipeline.
func LoadPipeline(modelPath string) (*Pipeline, error) {
	return loadPipelineImpl(modelPath)
}

// RunPipeline performs one text-to-image generation on a loaded
// pipeline. Params are validated before the backend is invoked; the
// caller is responsible for resolving Seed to a concrete value first.
//
// Errors:
//   - ErrInvalidParams: params fail validation
//   - ErrGenerationFailed: the backend fails mid-generation
//   - ErrOutOfVRAM: GPU memory exhausted
func RunPipeline(p *Pipeline, params GenerateParams) (*GenerateResult, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}

	return runPipelineImpl(p, params)
}

// FreePipeline releases resources held by a pipeline. Safe to call on
// nil or an already-freed pipeline. The handle is invalid afterwards.
func FreePipeline(p *Pipeline) {
	freePipelineImpl(p)
}

// BackendInfo returns a human-readable description of the compute
// backend linked into this build.
func BackendInfo() string {
	return backendInfoImpl()
}
