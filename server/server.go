package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"zimage_worker/db"
	"zimage_worker/handler"
	"zimage_worker/logging"
	"zimage_worker/metrics"
	"zimage_worker/zimage"
)

// Config configures the dev server.
type Config struct {
	// Host to bind to (default: "0.0.0.0")
	Host string

	// Port to listen on (default: 8000)
	Port int

	// Workers is the number of async queue workers (default: 1)
	Workers int

	// ReadTimeout for HTTP requests (default: 30s)
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses. Generations run inside the
	// request on sync routes, so this must exceed the generation
	// timeout (default: 300s).
	WriteTimeout time.Duration

	// IdleTimeout for keep-alive connections (default: 120s)
	IdleTimeout time.Duration

	// ShutdownTimeout for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration

	// DashboardPassword enables session auth on dashboard routes
	// when non-empty.
	DashboardPassword string
}

// DefaultConfig returns server defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8000,
		Workers:         1,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    300 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Server is the local development server. It exposes the platform's
// job API shape plus stats, history, and live updates.
type Server struct {
	httpServer  *http.Server
	mux         *http.ServeMux
	config      Config
	log         *logging.Logger
	handler     *handler.Handler
	queue       *JobQueue
	broadcaster *Broadcaster
	store       *metrics.Store
	repo        *db.GenerationRepository
	auth        *SessionAuth
	workers     int
}

// New wires the server. store and repo may be nil to disable stats
// and history.
func New(
	config Config,
	h *handler.Handler,
	store *metrics.Store,
	repo *db.GenerationRepository,
	log *logging.Logger,
) (*Server, error) {
	if config.Host == "" {
		config.Host = "0.0.0.0"
	}
	if config.Port == 0 {
		config.Port = 8000
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 30 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 300 * time.Second
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = 120 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		mux:         http.NewServeMux(),
		config:      config,
		log:         log,
		handler:     h,
		queue:       NewJobQueue(h, log),
		broadcaster: NewBroadcaster(log),
		store:       store,
		repo:        repo,
		workers:     config.Workers,
	}

	if config.DashboardPassword != "" {
		auth, err := NewSessionAuth(config.DashboardPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to set up auth: %w", err)
		}
		s.auth = auth
	}

	s.queue.OnUpdate(func(job QueuedJob) {
		s.broadcaster.Broadcast(NewJobUpdateMessage(job))
	})

	s.setupRoutes()

	loggingMw := NewLoggingMiddleware(log, "/health", "/ws")
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      loggingMw.Handler(s.mux),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s, nil
}

func (s *Server) setupRoutes() {
	// Job API, same shape as the platform.
	s.mux.HandleFunc("/runsync", s.handleRunSync)
	s.mux.HandleFunc("/generate", s.handleRunSync)
	s.mux.HandleFunc("/generate/png", s.handleGeneratePNG)
	s.mux.HandleFunc("/run", s.handleRun)
	s.mux.HandleFunc("/status/", s.handleStatus)
	s.mux.HandleFunc("/cancel/", s.handleCancel)
	s.mux.HandleFunc("/health", s.handleHealth)

	// Dashboard surface, auth-protected when configured.
	s.mux.HandleFunc("/api/stats", s.protect(s.handleStats))
	s.mux.HandleFunc("/api/history", s.protect(s.handleHistory))
	s.mux.HandleFunc("/ws", s.broadcaster.HandleConnection)

	if s.auth != nil {
		s.mux.HandleFunc("/login", s.auth.LoginHandler())
		s.mux.HandleFunc("/logout", s.auth.LogoutHandler())
	}

	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	if s.auth == nil {
		return next
	}
	return s.auth.MiddlewareFunc(next)
}

// handleRoot serves a minimal index describing the API.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service": "zimage-worker",
		"model":   "Tongyi-MAI/Z-Image-Turbo",
		"backend": zimage.BackendInfo(),
		"routes": []string{
			"POST /runsync",
			"POST /generate",
			"POST /generate/png",
			"POST /run",
			"GET /status/{id}",
			"POST /cancel/{id}",
			"GET /health",
			"GET /api/stats",
			"GET /api/history",
			"GET /ws",
		},
	})
}

// StartBackground launches the queue workers and the WebSocket
// broadcaster without the HTTP listener, for embedding the handler in
// another server or in tests.
func (s *Server) StartBackground(ctx context.Context) {
	s.queue.Start(ctx, s.workers)
	go s.broadcaster.Start(ctx)
}

// Start launches the queue workers, the WebSocket broadcaster, and
// the HTTP listener. Blocks until the listener stops.
func (s *Server) Start(ctx context.Context) error {
	s.StartBackground(ctx)

	s.log.Infow("server starting",
		"addr", s.httpServer.Addr,
		"workers", s.workers,
		"auth_enabled", s.auth != nil,
	)

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}

	s.log.Info("server stopped")
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Broadcaster returns the WebSocket broadcaster.
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// newJobID generates IDs matching the platform's opaque format.
func newJobID() string {
	return "sync-" + uuid.NewString()
}
