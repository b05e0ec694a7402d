package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the optional YAML configuration file. Every field is
// a default only; environment variables always win. API keys are never
// read from the file.
type fileConfig struct {
	Mode string `yaml:"mode"`

	RunPod struct {
		APIBaseURL string `yaml:"api_base_url"`
		EndpointID string `yaml:"endpoint_id"`
	} `yaml:"runpod"`

	Worker struct {
		JobTakeURL          string `yaml:"job_take_url"`
		JobDoneURL          string `yaml:"job_done_url"`
		PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
		JobTimeoutSeconds   int    `yaml:"job_timeout_seconds"`
	} `yaml:"worker"`

	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path           string `yaml:"path"`
		MigrationsPath string `yaml:"migrations_path"`
	} `yaml:"database"`

	Enhancer struct {
		Enabled bool   `yaml:"enabled"`
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"enhancer"`

	Logging struct {
		File  string `yaml:"file"`
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// defaultConfigFile is probed when CONFIG_FILE is not set.
const defaultConfigFile = "config.yaml"

// loadConfigFile reads the YAML config file if one exists. A missing
// default file is not an error; a missing explicit CONFIG_FILE is.
func loadConfigFile(path string) (fileConfig, error) {
	var cfg fileConfig

	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		if os.IsNotExist(err) {
			return cfg, ErrEnvFileMissing(path)
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}
