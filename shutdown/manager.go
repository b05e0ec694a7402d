package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"zimage_worker/logging"
)

// DefaultTimeout bounds how long Shutdown waits for in-flight jobs
// plus cleanup.
const DefaultTimeout = 60 * time.Second

// Manager coordinates graceful shutdown: it cancels a shared context
// on SIGINT or SIGTERM, drains in-flight operations, runs registered
// cleanup functions in priority order, and forces exit on a second
// signal.
//
//	manager := shutdown.NewManager(log)
//	manager.Register("database", 30, func(ctx context.Context) error {
//	    return database.Close()
//	})
//	manager.Start()
//	manager.Wait()
//	manager.Shutdown()
type Manager struct {
	log      *logging.Logger
	timeout  time.Duration
	mu       sync.Mutex
	started  bool
	shutdown bool

	ctx    context.Context
	cancel context.CancelFunc

	tracker  *OperationTracker
	registry *Registry
	signals  *SignalCounter

	sigChan chan os.Signal
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// NewManager creates a Manager. A second signal forces os.Exit(1).
func NewManager(log *logging.Logger, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		log:      log,
		timeout:  DefaultTimeout,
		ctx:      ctx,
		cancel:   cancel,
		tracker:  NewOperationTracker(),
		registry: NewRegistry(),
		sigChan:  make(chan os.Signal, 1),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.signals = NewSignalCounter(2, func() {
		m.log.Warn("received second signal, forcing immediate shutdown")
		os.Exit(1)
	})

	return m
}

// Context returns the context cancelled when shutdown begins.
// Long-running components should watch it.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a cleanup function. Lower priority runs first; see
// Registry for the priority convention.
func (m *Manager) Register(name string, priority int, fn Func) {
	m.registry.Register(name, priority, fn)
	m.log.Debugw("registered shutdown handler",
		"name", name,
		"priority", priority,
	)
}

// Start begins listening for SIGINT and SIGTERM. The first signal
// cancels the managed context; the second forces exit. Safe to call
// more than once.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range m.sigChan {
			count := m.signals.Increment()
			if count == 1 {
				m.log.Infow("received shutdown signal, starting graceful shutdown",
					"signal", sig.String(),
				)
				m.cancel()
			}
		}
	}()

	m.log.Info("shutdown manager started, listening for signals")
}

// Shutdown drains in-flight operations and runs the cleanup registry
// within the configured timeout. Idempotent; later calls return nil.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	m.mu.Unlock()

	start := time.Now()
	m.log.Infow("initiating graceful shutdown",
		"timeout", m.timeout.String(),
		"registered_handlers", m.registry.Count(),
	)

	m.tracker.Close()

	if active := m.tracker.ActiveCount(); active > 0 {
		m.log.Infow("waiting for in-flight operations", "active_count", active)
	}
	if err := m.tracker.Wait(m.timeout); err != nil {
		m.log.Warnw("timed out waiting for in-flight operations",
			"waited", time.Since(start).String(),
			"remaining", m.tracker.ActiveCount(),
		)
	}

	remaining := m.timeout - time.Since(start)
	if remaining < time.Second {
		remaining = time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	defer cancel()

	errs := m.registry.Shutdown(ctx)
	for _, err := range errs {
		m.log.Errorw("cleanup function failed", "error", err.Error())
	}

	signal.Stop(m.sigChan)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown had %d errors", len(errs))
	}
	m.log.Infow("graceful shutdown completed", "duration", time.Since(start).String())
	return nil
}

// Wait blocks until shutdown has been initiated.
func (m *Manager) Wait() {
	<-m.ctx.Done()
}

// WrapOperation runs fn while tracking it as in flight. Returns
// ErrTrackerClosed without running fn when shutdown has started.
func (m *Manager) WrapOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	if !m.tracker.Start() {
		m.log.Debugw("operation rejected, shutting down", "operation", name)
		return ErrTrackerClosed
	}
	defer m.tracker.Done()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return context.Canceled
	default:
	}

	return fn(ctx)
}

// ActiveOperations returns the number of in-flight operations.
func (m *Manager) ActiveOperations() int64 {
	return m.tracker.ActiveCount()
}

// IsShuttingDown reports whether shutdown has started.
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown || m.tracker.IsClosed()
}
