package shutdown

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"zimage_worker/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.NewLogger(true, filepath.Join(t.TempDir(), "test.log"))
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	t.Cleanup(func() { log.Sync() })
	return log
}

func TestOperationTracker_StartAndDone(t *testing.T) {
	tracker := NewOperationTracker()

	if !tracker.Start() {
		t.Fatal("Start should succeed on an open tracker")
	}
	if got := tracker.ActiveCount(); got != 1 {
		t.Errorf("expected 1 active, got %d", got)
	}

	tracker.Done()
	if got := tracker.ActiveCount(); got != 0 {
		t.Errorf("expected 0 active, got %d", got)
	}
}

func TestOperationTracker_ClosedRejectsStart(t *testing.T) {
	tracker := NewOperationTracker()
	tracker.Close()

	if tracker.Start() {
		t.Error("Start should fail after Close")
	}
	if !tracker.IsClosed() {
		t.Error("IsClosed should report true after Close")
	}
}

func TestOperationTracker_WaitCompletes(t *testing.T) {
	tracker := NewOperationTracker()
	tracker.Start()

	go func() {
		time.Sleep(20 * time.Millisecond)
		tracker.Done()
	}()

	if err := tracker.Wait(time.Second); err != nil {
		t.Errorf("Wait should succeed, got: %v", err)
	}
}

func TestOperationTracker_WaitTimeout(t *testing.T) {
	tracker := NewOperationTracker()
	tracker.Start()
	defer tracker.Done()

	if err := tracker.Wait(20 * time.Millisecond); !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("expected ErrWaitTimeout, got: %v", err)
	}
}

func TestRegistry_PriorityOrder(t *testing.T) {
	registry := NewRegistry()

	var order []string
	record := func(name string) Func {
		return func(ctx context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	registry.Register("database", 30, record("database"))
	registry.Register("logger", 5, record("logger"))
	registry.Register("workers", 20, record("workers"))

	if errs := registry.Shutdown(context.Background()); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	want := []string{"logger", "workers", "database"}
	if len(order) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), order)
	}
	for i, name := range want {
		if order[i] != name {
			t.Errorf("position %d: expected %s, got %s", i, name, order[i])
		}
	}
}

func TestRegistry_CollectsErrorsAndRunsAll(t *testing.T) {
	registry := NewRegistry()

	called := 0
	registry.Register("first", 1, func(ctx context.Context) error {
		called++
		return errors.New("first failed")
	})
	registry.Register("second", 2, func(ctx context.Context) error {
		called++
		return nil
	})
	registry.Register("third", 3, func(ctx context.Context) error {
		called++
		return errors.New("third failed")
	})

	errs := registry.Shutdown(context.Background())
	if called != 3 {
		t.Errorf("all functions should run, got %d calls", called)
	}
	if len(errs) != 2 {
		t.Errorf("expected 2 errors, got %d", len(errs))
	}
}

func TestRegistry_ShutdownIdempotent(t *testing.T) {
	registry := NewRegistry()

	called := 0
	registry.Register("once", 1, func(ctx context.Context) error {
		called++
		return nil
	})

	registry.Shutdown(context.Background())
	if errs := registry.Shutdown(context.Background()); errs != nil {
		t.Errorf("second Shutdown should return nil, got %v", errs)
	}
	if called != 1 {
		t.Errorf("cleanup should run once, ran %d times", called)
	}

	// Registration after shutdown is ignored.
	registry.Register("late", 1, func(ctx context.Context) error { return nil })
	if registry.Count() != 1 {
		t.Errorf("late registration should be dropped, count %d", registry.Count())
	}
}

func TestRegistry_Names(t *testing.T) {
	registry := NewRegistry()
	registry.Register("b", 20, func(ctx context.Context) error { return nil })
	registry.Register("a", 10, func(ctx context.Context) error { return nil })

	names := registry.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("expected [a b], got %v", names)
	}
}

func TestSignalCounter_ForceCallback(t *testing.T) {
	forced := false
	counter := NewSignalCounter(2, func() { forced = true })

	if count := counter.Increment(); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
	if forced {
		t.Error("force callback should not fire on the first signal")
	}

	counter.Increment()
	if !forced {
		t.Error("force callback should fire on the second signal")
	}
}

func TestSignalCounter_Reset(t *testing.T) {
	counter := NewSignalCounter(2, nil)
	counter.Increment()
	counter.Reset()

	if counter.Count() != 0 {
		t.Errorf("expected count 0 after Reset, got %d", counter.Count())
	}
}

func TestManager_ShutdownRunsCleanup(t *testing.T) {
	manager := NewManager(testLogger(t), WithTimeout(time.Second))

	var mu sync.Mutex
	var ran []string
	manager.Register("database", 30, func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		ran = append(ran, "database")
		return nil
	})
	manager.Register("logger", 5, func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		ran = append(ran, "logger")
		return nil
	})

	if err := manager.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 2 || ran[0] != "logger" || ran[1] != "database" {
		t.Errorf("expected [logger database], got %v", ran)
	}
	if !manager.IsShuttingDown() {
		t.Error("IsShuttingDown should report true after Shutdown")
	}
}

func TestManager_ShutdownReportsCleanupErrors(t *testing.T) {
	manager := NewManager(testLogger(t), WithTimeout(time.Second))
	manager.Register("broken", 1, func(ctx context.Context) error {
		return errors.New("cleanup failed")
	})

	if err := manager.Shutdown(); err == nil {
		t.Error("Shutdown should surface cleanup errors")
	}
	// Idempotent after the first run.
	if err := manager.Shutdown(); err != nil {
		t.Errorf("second Shutdown should be a no-op, got: %v", err)
	}
}

func TestManager_WrapOperation(t *testing.T) {
	manager := NewManager(testLogger(t), WithTimeout(time.Second))

	ran := false
	err := manager.WrapOperation(context.Background(), "render", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WrapOperation failed: %v", err)
	}
	if !ran {
		t.Error("operation should have run")
	}
}

func TestManager_WrapOperationAfterShutdown(t *testing.T) {
	manager := NewManager(testLogger(t), WithTimeout(time.Second))
	if err := manager.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	err := manager.WrapOperation(context.Background(), "render", func(ctx context.Context) error {
		t.Error("operation must not run after shutdown")
		return nil
	})
	if !errors.Is(err, ErrTrackerClosed) {
		t.Errorf("expected ErrTrackerClosed, got: %v", err)
	}
}

func TestManager_ShutdownWaitsForOperations(t *testing.T) {
	manager := NewManager(testLogger(t), WithTimeout(2*time.Second))

	started := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		manager.WrapOperation(context.Background(), "slow", func(ctx context.Context) error {
			close(started)
			time.Sleep(50 * time.Millisecond)
			return nil
		})
		close(finished)
	}()

	<-started
	if err := manager.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case <-finished:
	default:
		t.Error("Shutdown returned before the in-flight operation finished")
	}
}
