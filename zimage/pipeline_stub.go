//go:build !zimage

// Stub backend used when the Z-Image CUDA library is not linked.
// Instead of failing, it renders a deterministic placeholder image
// derived from the generation parameters, so the full request path
// (handler, server, client) can run on any machine. Identical params
// with a fixed seed produce byte-identical PNG output.
//
// Build with the real backend: go build -tags zimage

package zimage

import (
	"fmt"
	"hash/fnv"
	"os"
	"sync/atomic"
)

// stubPipelineCounter generates unique IDs for stub pipelines
var stubPipelineCounter uint64

// loadPipelineImpl validates the model path if one is set. An empty
// path is allowed; the stub never reads weights.
func loadPipelineImpl(modelPath string) (*Pipeline, error) {
	if modelPath != "" {
		if _, err := os.Stat(modelPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
		} else if err != nil {
			return nil, fmt.Errorf("%w: unable to access %s: %v", ErrModelLoadFailed, modelPath, err)
		}
	}

	return &Pipeline{
		id:        atomic.AddUint64(&stubPipelineCounter, 1),
		modelPath: modelPath,
		valid:     true,
	}, nil
}

// runPipelineImpl renders the deterministic placeholder image.
func runPipelineImpl(p *Pipeline, params GenerateParams) (*GenerateResult, error) {
	if p == nil || !p.valid {
		return nil, fmt.Errorf("%w: pipeline is nil or invalid", ErrGenerationFailed)
	}

	pixels := renderPlaceholder(params)

	pngData, err := EncodeToPNG(pixels, params.Width, params.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	return &GenerateResult{
		ImageData: pngData,
		Width:     params.Width,
		Height:    params.Height,
		Seed:      params.Seed,
	}, nil
}

// freePipelineImpl marks the pipeline as invalid.
func freePipelineImpl(p *Pipeline) {
	if p == nil {
		return
	}
	p.valid = false
}

func backendInfoImpl() string {
	return "stub (deterministic placeholder renderer, no CUDA library linked)"
}

// renderPlaceholder produces RGBA pixel data fully determined by the
// generation parameters. The prompt and seed pick a base palette; a
// cheap xorshift stream layered over a gradient gives each parameter
// set a visually distinct output.
func renderPlaceholder(params GenerateParams) []byte {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%d|%d|%.4f|%d",
		params.Prompt, params.Width, params.Height,
		params.Steps, params.GuidanceScale, params.Seed)
	state := h.Sum64()
	if state == 0 {
		state = 1 // xorshift sticks at zero
	}

	baseR := uint8(state >> 16)
	baseG := uint8(state >> 24)
	baseB := uint8(state >> 32)

	pixels := make([]byte, ImageDataSize(params.Width, params.Height))
	for y := 0; y < params.Height; y++ {
		for x := 0; x < params.Width; x++ {
			state ^= state << 13
			state ^= state >> 7
			state ^= state << 17
			noise := uint8(state)

			i := (y*params.Width + x) * 4
			pixels[i] = baseR + uint8(x*255/params.Width) + noise>>3
			pixels[i+1] = baseG + uint8(y*255/params.Height) + noise>>4
			pixels[i+2] = baseB + noise>>2
			pixels[i+3] = 255
		}
	}

	return pixels
}
