package tapsim

import (
	"fmt"
	"os"

	"github.com/okian/tapscore/pkg/logger"
)

// SetupLogging initializes the global logger with the given format.
func SetupLogging(format string, verbose bool) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := logger.SetFormat(format); err != nil {
		return fmt.Errorf("failed to set log format: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the tap-sim tool.
func ShowHelp() {
	os.Stdout.WriteString(`tapscore Tap Simulator
======================

Replays the canonical tap scenario against a running tapscore server and
checks every response code:

  tap alice -> 201, tap alice -> 429, wait, tap alice -> 200,
  GET /score -> 404, wait, tap bob -> 201, GET /score -> 200|404

Usage:
  go run ./cmd/tap-sim [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8000")
  -uids string
        Two comma separated uids (default "alice,bob")
  -wait duration
        Pause used to let the cooldown expire (default 5.5s)
  -burst int
        Concurrent taps fired after the scenario; exactly one must be accepted (default 0)
  -timeout duration
        HTTP request timeout (default 10s)
  -output string
        Write a JSON report to this file
  -log-format string
        text or json (default "text")
  -verbose
        Log response bodies
  -help
        Show this help message
`)
}
