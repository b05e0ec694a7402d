// Package validation runs startup checks before the worker begins
// serving: configuration presence, model weights, and endpoint
// reachability, with colored progress output on the console.
package validation

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// ValidationStep is one check with its outcome.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// StepStatus is the state of a validation step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the step status name.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SuiteResult is the aggregate outcome of a validation run.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

// Suite orchestrates the startup checks.
type Suite struct {
	output       io.Writer
	config       *ConfigValidator
	connectivity *ConnectivityChecker
	showProgress bool
	failFast     bool
}

// NewSuite creates a Suite with default settings.
func NewSuite() *Suite {
	return &Suite{
		output:       os.Stdout,
		config:       NewConfigValidator(),
		connectivity: NewConnectivityChecker(),
		showProgress: true,
		failFast:     false,
	}
}

// WithOutput sets the writer for progress messages.
func (s *Suite) WithOutput(w io.Writer) *Suite {
	s.output = w
	return s
}

// WithShowProgress enables or disables progress output.
func (s *Suite) WithShowProgress(show bool) *Suite {
	s.showProgress = show
	return s
}

// WithFailFast stops validation on first failure.
func (s *Suite) WithFailFast(failFast bool) *Suite {
	s.failFast = failFast
	return s
}

// WithEnvPath sets a custom path for the .env file check.
func (s *Suite) WithEnvPath(path string) *Suite {
	s.config.WithEnvPath(path)
	return s
}

// WithMode sets the run mode so the suite knows which variables are
// required ("serve" or "worker").
func (s *Suite) WithMode(mode string) *Suite {
	s.config.WithMode(mode)
	return s
}

// WithTimeout bounds network checks.
func (s *Suite) WithTimeout(timeout time.Duration) *Suite {
	s.connectivity.WithTimeout(timeout)
	return s
}

// Validate runs all checks in sequence.
func (s *Suite) Validate() SuiteResult {
	startTime := time.Now()
	steps := make([]ValidationStep, 0, 4)

	if s.showProgress {
		s.printHeader("Z-Image worker startup validation")
	}

	steps = append(steps, s.runStep("Environment file", s.config.CheckEnvFile))
	if s.shouldStop(steps) {
		return s.finish(steps, startTime)
	}

	steps = append(steps, s.runStep("Required variables", s.config.CheckRequiredVars))
	if s.shouldStop(steps) {
		return s.finish(steps, startTime)
	}

	steps = append(steps, s.runStep("Model weights", s.config.CheckModelPath))
	if s.shouldStop(steps) {
		return s.finish(steps, startTime)
	}

	steps = append(steps, s.runStep("Platform reachability", s.connectivity.CheckEndpoint))

	return s.finish(steps, startTime)
}

// runStep executes one check and prints its progress line.
// The check returns (passed, message, error); a nil error with passed
// false marks a warning rather than a failure.
func (s *Suite) runStep(name string, check func() (bool, string, error)) ValidationStep {
	step := ValidationStep{Name: name, Status: StepRunning}

	if s.showProgress {
		fmt.Fprintf(s.output, "  %-24s ", name+"...")
	}

	start := time.Now()
	passed, message, err := check()
	step.Latency = time.Since(start)
	step.Message = message
	step.Error = err

	switch {
	case err != nil:
		step.Status = StepFailed
	case passed:
		step.Status = StepPassed
	default:
		step.Status = StepWarning
	}

	if s.showProgress {
		s.printStatus(step)
	}

	return step
}

func (s *Suite) shouldStop(steps []ValidationStep) bool {
	if !s.failFast {
		return false
	}
	return steps[len(steps)-1].Status == StepFailed
}

func (s *Suite) finish(steps []ValidationStep, startTime time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(startTime),
	}

	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
		case StepWarning:
			result.Warnings++
		}
	}

	result.Success = result.FailedSteps == 0

	if s.showProgress {
		s.printSummary(result)
	}

	return result
}

func (s *Suite) printHeader(title string) {
	bold := color.New(color.Bold)
	fmt.Fprintln(s.output)
	bold.Fprintln(s.output, title)
	fmt.Fprintln(s.output, strings.Repeat("-", len(title)))
}

func (s *Suite) printStatus(step ValidationStep) {
	switch step.Status {
	case StepPassed:
		color.New(color.FgGreen).Fprint(s.output, "OK")
	case StepWarning:
		color.New(color.FgYellow).Fprint(s.output, "WARN")
	case StepFailed:
		color.New(color.FgRed).Fprint(s.output, "FAIL")
	}
	if step.Message != "" {
		fmt.Fprintf(s.output, "  %s", step.Message)
	}
	if step.Error != nil {
		fmt.Fprintf(s.output, "  (%v)", step.Error)
	}
	fmt.Fprintln(s.output)
}

func (s *Suite) printSummary(result SuiteResult) {
	fmt.Fprintln(s.output)
	if result.Success {
		color.New(color.FgGreen, color.Bold).Fprintf(s.output,
			"Validation passed: %d checks in %s\n",
			result.PassedSteps, result.Duration.Round(time.Millisecond))
	} else {
		color.New(color.FgRed, color.Bold).Fprintf(s.output,
			"Validation failed: %d of %d checks failed\n",
			result.FailedSteps, result.TotalSteps)
	}
}
