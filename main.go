// Command zimage_worker runs the Z-Image-Turbo serverless worker. In
// serve mode it exposes the platform-compatible REST API locally; in
// worker mode it polls the platform queue from inside the container.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"zimage_worker/core"
	"zimage_worker/core/validation"
	"zimage_worker/db"
	"zimage_worker/handler"
	"zimage_worker/logging"
	"zimage_worker/metrics"
	"zimage_worker/prompt"
	"zimage_worker/server"
	"zimage_worker/shutdown"
	"zimage_worker/worker"
	"zimage_worker/zimage"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Service management commands (install/uninstall/start/stop) are
	// handled before anything else touches the environment.
	if HandleServiceCommand(os.Args) {
		return core.ExitCodeSuccess
	}
	if ranAsService, err := RunAsService(); err != nil {
		fmt.Fprintf(os.Stderr, "service error: %v\n", err)
		return core.ExitCodeError
	} else if ranAsService {
		return core.ExitCodeSuccess
	}

	if err := godotenv.Load(); err != nil {
		// Logger is not up yet.
		fmt.Printf("no .env file loaded: %v\n", err)
	}

	isDevelopment := os.Getenv("DEV_MODE") == "true"
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = core.DefaultLogFile
	}

	log, err := logging.NewLogger(isDevelopment, logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return core.ExitCodeError
	}
	defer log.Sync()

	if code := runStartupValidation(log); code != core.ExitCodeSuccess {
		return code
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		log.Errorw("failed to load configuration", "error", err.Error())
		return core.ExitCodeError
	}

	log.Infow("configuration loaded",
		"mode", cfg.Mode,
		"server_port", cfg.ServerPort,
		"db_path", cfg.DatabasePath,
		"enhance_prompts", cfg.EnhancePrompts,
		"dev_mode", isDevelopment,
	)

	engineCfg := zimage.LoadEngineConfig()
	gen, err := zimage.NewGeneratorFromConfig(engineCfg)
	if err != nil {
		log.Errorw("failed to initialize generation engine",
			"error", err.Error(),
			"model_path", engineCfg.ModelPath,
		)
		return core.ExitCodeError
	}
	log.Infow("generation engine ready",
		"backend", zimage.BackendInfo(),
		"pool_size", gen.PoolSize(),
		"model_path", engineCfg.ModelPath,
	)

	h := handler.NewHandler(gen, log, cfg.JobTimeout)

	if cfg.EnhancePrompts {
		enhancer, err := prompt.NewEnhancer(prompt.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.EnhancerModel,
		}, log)
		if err != nil {
			log.Errorw("failed to initialize prompt enhancer", "error", err.Error())
			return core.ExitCodeError
		}
		h.SetEnhancer(enhancer)
		log.Infow("prompt enhancement enabled", "model", cfg.EnhancerModel)
	}

	manager := shutdown.NewManager(log, shutdown.WithTimeout(cfg.ShutdownTimeout+30*time.Second))
	manager.Register("generator", 30, func(ctx context.Context) error {
		return gen.Close()
	})
	manager.Register("logger", 5, func(ctx context.Context) error {
		log.Sync()
		return nil
	})
	manager.Start()

	switch cfg.Mode {
	case core.ModeWorker:
		return runWorkerMode(cfg, h, log, manager)
	default:
		return runServeMode(cfg, h, log, manager)
	}
}

// runServeMode runs the local REST server with history, metrics, and
// the dashboard surface.
func runServeMode(cfg *core.Config, h *handler.Handler, log *logging.Logger, manager *shutdown.Manager) int {
	store := metrics.NewStore(metrics.DefaultHistoryCapacity)

	gpu := metrics.NewGPUCollector(metrics.DefaultGPUCollectorConfig(), store)
	gpu.Start()
	manager.Register("gpu-collector", 20, func(ctx context.Context) error {
		gpu.Stop()
		return nil
	})

	var repo *db.GenerationRepository
	var database *sql.DB
	if cfg.DatabasePath != "" {
		var err error
		database, err = db.OpenWithDefaults(cfg.DatabasePath)
		if err != nil {
			log.Errorw("failed to open history database",
				"path", cfg.DatabasePath,
				"error", err.Error(),
			)
			return core.ExitCodeError
		}
		if err := db.MigrateUp(database, cfg.MigrationsPath); err != nil {
			log.Errorw("failed to migrate history database", "error", err.Error())
			database.Close()
			return core.ExitCodeError
		}
		repo = db.NewGenerationRepository(database)
		manager.Register("database", 35, func(ctx context.Context) error {
			return database.Close()
		})
		log.Infow("generation history enabled", "path", cfg.DatabasePath)
	} else {
		log.Info("generation history disabled, no database path configured")
	}

	h.SetObserver(server.NewGenerationObserver(repo, store, log))

	srv, err := server.New(server.Config{
		Host:              cfg.ServerHost,
		Port:              cfg.ServerPort,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ShutdownTimeout:   cfg.ShutdownTimeout,
		DashboardPassword: cfg.DashboardPassword,
	}, h, store, repo, log)
	if err != nil {
		log.Errorw("failed to build server", "error", err.Error())
		return core.ExitCodeError
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(manager.Context())
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Errorw("server exited with error", "error", err.Error())
			manager.Shutdown()
			return core.ExitCodeError
		}
	case <-manager.Context().Done():
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Errorw("server shutdown error", "error", err.Error())
		}
	}

	if err := manager.Shutdown(); err != nil {
		return core.ExitCodeError
	}
	return core.ExitCodeSuccess
}

// runWorkerMode runs the in-container poll loop against the platform
// queue.
func runWorkerMode(cfg *core.Config, h *handler.Handler, log *logging.Logger, manager *shutdown.Manager) int {
	w, err := worker.New(worker.Config{
		TakeURL:      cfg.JobTakeURL,
		DoneURL:      cfg.JobDoneURL,
		PollInterval: cfg.PollInterval,
	}, h, log)
	if err != nil {
		log.Errorw("failed to build worker", "error", err.Error())
		return core.ExitCodeError
	}

	log.Infow("worker loop starting",
		"take_url", cfg.JobTakeURL,
		"poll_interval", cfg.PollInterval.String(),
	)

	err = w.Run(manager.Context())
	if err != nil && err != context.Canceled {
		log.Errorw("worker loop exited with error", "error", err.Error())
		manager.Shutdown()
		return core.ExitCodeError
	}

	if err := manager.Shutdown(); err != nil {
		return core.ExitCodeError
	}
	return core.ExitCodeSuccess
}

// runStartupValidation runs the preflight checks and logs any
// failures.
func runStartupValidation(log *logging.Logger) int {
	mode := os.Getenv("RUN_MODE")
	if mode == "" {
		mode = core.ModeServe
	}

	result := validation.NewSuite().
		WithMode(mode).
		WithShowProgress(true).
		Validate()

	if !result.Success {
		log.Errorw("startup validation failed",
			"passed", result.PassedSteps,
			"failed", result.FailedSteps,
			"duration", result.Duration.String(),
		)
		for _, step := range result.Steps {
			if step.Status == validation.StepFailed {
				log.Errorw("validation step failed",
					"step", step.Name,
					"message", step.Message,
					"error", fmt.Sprintf("%v", step.Error),
				)
			}
		}
		return core.ExitCodeError
	}

	log.Infow("startup validation passed",
		"checks", result.PassedSteps,
		"warnings", result.Warnings,
		"duration", result.Duration.String(),
	)
	return core.ExitCodeSuccess
}
