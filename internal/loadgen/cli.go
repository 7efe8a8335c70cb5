// Package loadgen floods a running trending service with synthetic
// clips and engagement events, then verifies the trending page.
package loadgen

import (
	"os"

	"github.com/soundscene/pulse/pkg/logger"
)

// SetupLogging initializes structured logging for a load run.
func SetupLogging(verbose bool) error {
	if err := logger.Init(); err != nil {
		return err
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the load tool.
func ShowHelp() {
	os.Stdout.WriteString(`Pulse Load Tool
===============

Floods a running pulse instance with synthetic clips and engagement
events, then reads the trending page back and verifies its ordering.

Usage:
  go run cmd/load-test/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -clips int
        Number of clips to register (default 200)
  -events int
        Number of engagement events to submit (default 10000)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Run with default settings
  go run cmd/load-test/main.go

  # Heavier run against another instance
  go run cmd/load-test/main.go -clips 1000 -events 100000 -url http://localhost:8080
`)
}
