package validation

import (
	"fmt"
	"os"

	"zimage_worker/core"
)

// ConfigValidator checks the presence and shape of required configuration
// without connecting to anything.
type ConfigValidator struct {
	envPath string
	mode    string
}

// NewConfigValidator creates a ConfigValidator with defaults.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		envPath: ".env",
		mode:    core.ModeServe,
	}
}

// WithEnvPath overrides the .env file location.
func (v *ConfigValidator) WithEnvPath(path string) *ConfigValidator {
	v.envPath = path
	return v
}

// WithMode sets the run mode that determines required variables.
func (v *ConfigValidator) WithMode(mode string) *ConfigValidator {
	v.mode = mode
	return v
}

// CheckEnvFile verifies the .env file exists. A missing file is a
// warning, not a failure: all settings can come from the environment.
func (v *ConfigValidator) CheckEnvFile() (bool, string, error) {
	info, err := os.Stat(v.envPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Sprintf("%s not found, using process environment", v.envPath), nil
		}
		return false, "", err
	}
	if info.IsDir() {
		return false, "", fmt.Errorf("%s is a directory", v.envPath)
	}
	return true, v.envPath, nil
}

// CheckRequiredVars verifies the variables the current mode needs.
//
// Worker mode requires job-take/job-done URLs (the platform injects
// them). Serve mode has no hard requirements: every server setting has a
// default.
func (v *ConfigValidator) CheckRequiredVars() (bool, string, error) {
	if v.mode == core.ModeWorker {
		for _, name := range []string{"RUNPOD_JOB_TAKE_URL", "RUNPOD_JOB_DONE_URL"} {
			if os.Getenv(name) == "" {
				return false, "", core.ErrMissingConfig(name)
			}
		}
		return true, "worker mode variables present", nil
	}
	return true, "serve mode, defaults available", nil
}

// CheckModelPath verifies the model weights location when configured.
// An unset ZIMAGE_MODEL_PATH is a warning: the stub engine needs none.
func (v *ConfigValidator) CheckModelPath() (bool, string, error) {
	path := os.Getenv("ZIMAGE_MODEL_PATH")
	if path == "" {
		return false, "ZIMAGE_MODEL_PATH not set (stub engine only)", nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, "", core.ErrModelUnavailable(path)
		}
		return false, "", err
	}
	if !info.IsDir() && info.Size() == 0 {
		return false, "", core.ErrModelUnavailable(path)
	}

	return true, path, nil
}
