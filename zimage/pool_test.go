package zimage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewPipelinePool_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := NewPipelinePool(size, ""); !errors.Is(err, ErrInvalidParams) {
			t.Errorf("size %d: expected ErrInvalidParams, got: %v", size, err)
		}
	}
}

func TestPipelinePool_AcquireRelease(t *testing.T) {
	pool, err := NewPipelinePool(2, "")
	if err != nil {
		t.Fatalf("NewPipelinePool failed: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()

	p1, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	p2, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}

	if pool.Created() != 2 {
		t.Errorf("expected 2 created, got %d", pool.Created())
	}
	if pool.Size() != 0 {
		t.Errorf("expected 0 idle, got %d", pool.Size())
	}

	pool.Release(p1)
	pool.Release(p2)

	if pool.Size() != 2 {
		t.Errorf("expected 2 idle after release, got %d", pool.Size())
	}

	// Reacquire should reuse, not create.
	p3, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	if pool.Created() != 2 {
		t.Errorf("expected reuse, created = %d", pool.Created())
	}
	pool.Release(p3)
}

func TestPipelinePool_AcquireTimeout(t *testing.T) {
	pool, err := NewPipelinePool(1, "")
	if err != nil {
		t.Fatalf("NewPipelinePool failed: %v", err)
	}
	defer pool.Close()

	held, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pool.Release(held)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = pool.Acquire(ctx)
	if !errors.Is(err, ErrAcquireTimeout) {
		t.Errorf("expected ErrAcquireTimeout, got: %v", err)
	}
}

func TestPipelinePool_AcquireCancelled(t *testing.T) {
	pool, err := NewPipelinePool(1, "")
	if err != nil {
		t.Fatalf("NewPipelinePool failed: %v", err)
	}
	defer pool.Close()

	held, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pool.Release(held)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = pool.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
	if errors.Is(err, ErrAcquireTimeout) {
		t.Error("cancellation must not be reported as an acquire timeout")
	}
}

func TestPipelinePool_Close(t *testing.T) {
	pool, err := NewPipelinePool(1, "")
	if err != nil {
		t.Fatalf("NewPipelinePool failed: %v", err)
	}

	p, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	pool.Release(p)

	if err := pool.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if !pool.IsClosed() {
		t.Error("pool should report closed")
	}

	if _, err := pool.Acquire(context.Background()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed after Close, got: %v", err)
	}

	// Close twice is a no-op.
	if err := pool.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestPipelinePool_ReleaseAfterClose(t *testing.T) {
	pool, err := NewPipelinePool(1, "")
	if err != nil {
		t.Fatalf("NewPipelinePool failed: %v", err)
	}

	p, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	pool.Close()
	pool.Release(p) // must not panic; pipeline gets freed

	if p.IsValid() {
		t.Error("pipeline should be freed on release after close")
	}
}
