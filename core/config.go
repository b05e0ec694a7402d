package core

import (
	"strings"
	"time"
)

// Run modes for the worker binary.
const (
	// ModeServe runs the local development REST server.
	ModeServe = "serve"
	// ModeWorker runs the in-container job loop against the platform.
	ModeWorker = "worker"
)

// DefaultAPIBaseURL is the platform API root. The endpoint ID is appended
// as /v2/{endpoint_id} by the client.
const DefaultAPIBaseURL = "https://api.runpod.ai/v2"

// Config holds the worker's runtime configuration, loaded from the
// environment (with an optional YAML file providing defaults).
type Config struct {
	// Mode selects serve (local REST server) or worker (platform loop).
	Mode string

	// Platform endpoint settings (client and worker mode).
	RunPodAPIBaseURL string
	RunPodEndpointID string
	RunPodAPIKey     string

	// Worker loop settings.
	JobTakeURL   string
	JobDoneURL   string
	PollInterval time.Duration
	JobTimeout   time.Duration

	// Local server settings.
	ServerHost        string
	ServerPort        int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
	DashboardPassword string // empty disables dashboard auth

	// Generation history database. Empty path disables history.
	DatabasePath   string
	MigrationsPath string

	// Optional prompt enhancement via an OpenAI-compatible API.
	EnhancePrompts bool
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	EnhancerModel  string

	// Logging.
	LogFilePath string
	LogLevel    string
	DevMode     bool
}

// Default configuration values.
const (
	DefaultServerPort        = 8000
	DefaultServerHost        = "0.0.0.0"
	DefaultReadTimeoutSecs   = 30
	DefaultWriteTimeoutSecs  = 300 // generation can take minutes on cold start
	DefaultShutdownSecs      = 30
	DefaultPollIntervalSecs  = 1
	DefaultJobTimeoutSecs    = 300
	DefaultLogFile           = "worker.log"
	DefaultEnhancerModel     = "gpt-4o-mini"
	DefaultMigrationsDirPath = "file://db/migrations"
)

// LoadConfig builds a Config from the environment. An optional YAML file
// (CONFIG_FILE, default config.yaml when present) supplies defaults that
// environment variables override.
func LoadConfig() (*Config, error) {
	fileCfg, err := loadConfigFile(GetEnvOrDefault("CONFIG_FILE", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Mode: strings.ToLower(GetEnvOrDefault("RUN_MODE", fileCfg.Mode)),

		RunPodAPIBaseURL: GetEnvOrDefault("RUNPOD_API_BASE_URL", orDefault(fileCfg.RunPod.APIBaseURL, DefaultAPIBaseURL)),
		RunPodEndpointID: GetEnvOrDefault("RUNPOD_ENDPOINT_ID", fileCfg.RunPod.EndpointID),
		RunPodAPIKey:     GetEnvOrDefault("RUNPOD_API_KEY", ""),

		JobTakeURL:   GetEnvOrDefault("RUNPOD_JOB_TAKE_URL", fileCfg.Worker.JobTakeURL),
		JobDoneURL:   GetEnvOrDefault("RUNPOD_JOB_DONE_URL", fileCfg.Worker.JobDoneURL),
		PollInterval: ParseDurationEnv("WORKER_POLL_INTERVAL_SECONDS", orDefaultInt(fileCfg.Worker.PollIntervalSeconds, DefaultPollIntervalSecs)),
		JobTimeout:   ParseDurationEnv("WORKER_JOB_TIMEOUT_SECONDS", orDefaultInt(fileCfg.Worker.JobTimeoutSeconds, DefaultJobTimeoutSecs)),

		ServerHost:        GetEnvOrDefault("SERVER_HOST", orDefault(fileCfg.Server.Host, DefaultServerHost)),
		ServerPort:        ParseIntEnv("SERVER_PORT", orDefaultInt(fileCfg.Server.Port, DefaultServerPort)),
		ReadTimeout:       ParseDurationEnv("SERVER_READ_TIMEOUT_SECONDS", DefaultReadTimeoutSecs),
		WriteTimeout:      ParseDurationEnv("SERVER_WRITE_TIMEOUT_SECONDS", DefaultWriteTimeoutSecs),
		ShutdownTimeout:   ParseDurationEnv("SERVER_SHUTDOWN_TIMEOUT_SECONDS", DefaultShutdownSecs),
		DashboardPassword: GetEnvOrDefault("DASHBOARD_PASSWORD", ""),

		DatabasePath:   GetEnvOrDefault("GENERATION_DB_PATH", fileCfg.Database.Path),
		MigrationsPath: GetEnvOrDefault("GENERATION_DB_MIGRATIONS", orDefault(fileCfg.Database.MigrationsPath, DefaultMigrationsDirPath)),

		EnhancePrompts: ParseBoolEnv("ENHANCE_PROMPTS", fileCfg.Enhancer.Enabled),
		OpenAIAPIKey:   GetEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  GetEnvOrDefault("OPENAI_BASE_URL", fileCfg.Enhancer.BaseURL),
		EnhancerModel:  GetEnvOrDefault("ENHANCER_MODEL", orDefault(fileCfg.Enhancer.Model, DefaultEnhancerModel)),

		LogFilePath: GetEnvOrDefault("LOG_FILE", orDefault(fileCfg.Logging.File, DefaultLogFile)),
		LogLevel:    GetEnvOrDefault("LOG_LEVEL", fileCfg.Logging.Level),
		DevMode:     ParseBoolEnv("DEV_MODE", false),
	}

	if cfg.Mode == "" {
		cfg.Mode = ModeServe
	}
	if cfg.Mode != ModeServe && cfg.Mode != ModeWorker {
		return nil, ErrInvalidConfig("RUN_MODE", "must be \"serve\" or \"worker\"")
	}
	if cfg.ServerPort < 1 || cfg.ServerPort > 65535 {
		return nil, ErrInvalidConfig("SERVER_PORT", "must be between 1 and 65535")
	}
	if cfg.EnhancePrompts && cfg.OpenAIAPIKey == "" {
		return nil, ErrMissingAuth("openai")
	}

	return cfg, nil
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func orDefaultInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}
