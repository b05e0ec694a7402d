//go:build windows

// Windows service integration via github.com/kardianos/service, so the
// worker can run as a background service on GPU workstations.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kardianos/service"
)

// program implements service.Interface around the worker's run loop.
type program struct {
	cancel context.CancelFunc
	exit   chan struct{}
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.exit = make(chan struct{})

	go func() {
		defer close(p.exit)
		runService(ctx)
	}()

	return nil
}

func (p *program) Stop(s service.Service) error {
	p.cancel()

	select {
	case <-p.exit:
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timeout waiting for service to stop")
	}
	return nil
}

// runService runs the normal entrypoint until ctx is cancelled. The
// shutdown manager inside run() reacts to the service stop through
// process signals, so here we only guard the lifetime.
func runService(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		run()
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
}

func serviceConfig() *service.Config {
	return &service.Config{
		Name:        "ZImageWorker",
		DisplayName: "Z-Image Generation Worker",
		Description: "Serves Z-Image-Turbo text-to-image generation jobs",
		Option: service.KeyValue{
			"StartType": "automatic",
		},
	}
}

// RunAsService runs under the Windows service manager when not
// started interactively. Returns true when the service path was taken.
func RunAsService() (bool, error) {
	svc, err := service.New(&program{}, serviceConfig())
	if err != nil {
		return false, fmt.Errorf("failed to create service: %w", err)
	}

	if service.Interactive() {
		return false, nil
	}

	if err := svc.Run(); err != nil {
		return true, fmt.Errorf("service run failed: %w", err)
	}
	return true, nil
}

// HandleServiceCommand dispatches install/uninstall/start/stop/status
// subcommands. Returns true when a command was handled.
func HandleServiceCommand(args []string) bool {
	if len(args) < 2 {
		return false
	}

	svc, err := service.New(&program{}, serviceConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	switch args[1] {
	case "install":
		err = svc.Install()
	case "uninstall", "remove":
		err = svc.Uninstall()
	case "start":
		err = svc.Start()
	case "stop":
		err = svc.Stop()
	case "restart":
		err = svc.Restart()
	case "status":
		status, statusErr := svc.Status()
		if statusErr != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", statusErr)
			os.Exit(1)
		}
		switch status {
		case service.StatusRunning:
			fmt.Println("service is running")
		case service.StatusStopped:
			fmt.Println("service is stopped")
		default:
			fmt.Println("service status unknown")
		}
		return true
	default:
		return false
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("service %s completed\n", args[1])
	return true
}
