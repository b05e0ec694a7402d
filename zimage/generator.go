package zimage

import (
	"context"
	"fmt"
)

// Generator is the high-level generation API. It owns a PipelinePool
// and handles parameter validation, seed resolution, and output
// validation around each run.
type Generator struct {
	pool *PipelinePool
}

// NewGenerator creates a Generator with a pipeline pool of the given
// size. poolSize must be > 0.
func NewGenerator(poolSize int, modelPath string) (*Generator, error) {
	pool, err := NewPipelinePool(poolSize, modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline pool: %w", err)
	}

	return &Generator{pool: pool}, nil
}

// NewGeneratorFromConfig creates a Generator sized and pointed by an
// EngineConfig.
func NewGeneratorFromConfig(cfg *EngineConfig) (*Generator, error) {
	return NewGenerator(cfg.MaxConcurrent, cfg.ModelPath)
}

// Generate creates an image and returns the PNG bytes. A Seed of -1
// is replaced with a random seed; use GenerateWithResult when the
// caller needs to know which seed was used.
//
// Errors:
//   - ErrInvalidParams: parameters fail validation
//   - ErrAcquireTimeout: ctx done before a pipeline was free
//   - ErrPoolClosed: generator has been closed
//   - ErrGenerationFailed, ErrOutOfVRAM: backend failures
func (g *Generator) Generate(ctx context.Context, params GenerateParams) ([]byte, error) {
	result, err := g.GenerateWithResult(ctx, params)
	if err != nil {
		return nil, err
	}
	return result.ImageData, nil
}

// GenerateWithResult creates an image and returns the full result,
// including the concrete seed used when params.Seed was -1.
func (g *Generator) GenerateWithResult(ctx context.Context, params GenerateParams) (*GenerateResult, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}

	if params.Seed < 0 {
		params.Seed = RandomSeed()
	}

	pipe, err := g.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer g.pool.Release(pipe)

	result, err := RunPipeline(pipe.Pipeline, params)
	if err != nil {
		return nil, err
	}

	if err := ValidateImageData(result.ImageData); err != nil {
		return nil, fmt.Errorf("generated image validation failed: %w", err)
	}

	result.Seed = params.Seed

	return result, nil
}

// Close shuts down the generator and frees all pooled pipelines.
// Safe to call multiple times.
func (g *Generator) Close() error {
	return g.pool.Close()
}

// PoolSize returns the maximum number of concurrent pipelines.
func (g *Generator) PoolSize() int {
	return g.pool.MaxSize()
}

// PoolAvailable returns the number of idle pipelines.
func (g *Generator) PoolAvailable() int {
	return g.pool.Size()
}

// IsClosed reports whether the generator has been closed.
func (g *Generator) IsClosed() bool {
	return g.pool.IsClosed()
}
