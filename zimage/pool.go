package zimage

import (
	"context"
	"errors"
	"sync"
)

// pooledPipeline wraps a Pipeline with pool membership metadata.
type pooledPipeline struct {
	*Pipeline
	poolID int
	inUse  bool
}

// PipelinePool manages a bounded set of Pipeline instances for reuse.
// Pipelines are created lazily on first Acquire, up to maxSize. All
// methods are safe for concurrent use.
type PipelinePool struct {
	mu        sync.Mutex
	pipelines chan *pooledPipeline
	maxSize   int
	modelPath string
	closed    bool
	created   int
	nextID    int
}

// NewPipelinePool creates a pool with the given capacity. modelPath is
// passed to LoadPipeline on lazy creation; the default build accepts
// an empty path.
func NewPipelinePool(maxSize int, modelPath string) (*PipelinePool, error) {
	if maxSize <= 0 {
		return nil, ErrInvalidParams
	}

	return &PipelinePool{
		pipelines: make(chan *pooledPipeline, maxSize),
		maxSize:   maxSize,
		modelPath: modelPath,
		nextID:    1,
	}, nil
}

// Acquire retrieves a pipeline from the pool, lazily creating one when
// the pool has spare capacity. Blocks until a pipeline is released or
// ctx is done.
//
// Returns ErrPoolClosed if the pool is closed, ErrAcquireTimeout if
// ctx hits its deadline while waiting, and the context error itself
// when ctx was cancelled.
func (p *PipelinePool) Acquire(ctx context.Context) (*pooledPipeline, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	select {
	case pp := <-p.pipelines:
		pp.inUse = true
		p.mu.Unlock()
		return pp, nil
	default:
	}

	if p.created < p.maxSize {
		poolID := p.nextID
		p.nextID++
		p.created++
		p.mu.Unlock()

		pipe, err := LoadPipeline(p.modelPath)
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, err
		}

		return &pooledPipeline{
			Pipeline: pipe,
			poolID:   poolID,
			inUse:    true,
		}, nil
	}
	p.mu.Unlock()

	select {
	case pp := <-p.pipelines:
		if pp == nil {
			return nil, ErrPoolClosed
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			FreePipeline(pp.Pipeline)
			return nil, ErrPoolClosed
		}
		pp.inUse = true
		p.mu.Unlock()
		return pp, nil

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrAcquireTimeout
		}
		return nil, ctx.Err()
	}
}

// Release returns a pipeline to the pool. If the pool has been closed
// the pipeline is freed instead. Nil is a safe no-op.
func (p *PipelinePool) Release(pp *pooledPipeline) {
	if pp == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pp.inUse = false

	if p.closed {
		FreePipeline(pp.Pipeline)
		p.created--
		return
	}

	select {
	case p.pipelines <- pp:
	default:
		// Pool full, should not happen with balanced Acquire/Release.
		FreePipeline(pp.Pipeline)
		p.created--
	}
}

// Close shuts down the pool and frees all pooled pipelines. After
// Close, Acquire returns ErrPoolClosed. Safe to call multiple times.
func (p *PipelinePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.pipelines)

	for pp := range p.pipelines {
		if pp != nil && pp.Pipeline != nil {
			FreePipeline(pp.Pipeline)
			p.created--
		}
	}

	return nil
}

// Size returns the number of pipelines currently idle in the pool.
func (p *PipelinePool) Size() int {
	return len(p.pipelines)
}

// Created returns how many pipelines this pool has created in total,
// idle and in-use combined.
func (p *PipelinePool) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

// MaxSize returns the pool capacity.
func (p *PipelinePool) MaxSize() int {
	return p.maxSize
}

// IsClosed reports whether Close has been called.
func (p *PipelinePool) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// ModelPath returns the model path pipelines are loaded from.
func (p *PipelinePool) ModelPath() string {
	return p.modelPath
}
