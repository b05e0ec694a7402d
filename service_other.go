//go:build !windows

package main

// RunAsService is a no-op outside Windows; the process always runs in
// the foreground.
func RunAsService() (bool, error) {
	return false, nil
}

// HandleServiceCommand is a no-op outside Windows.
func HandleServiceCommand(args []string) bool {
	return false
}
