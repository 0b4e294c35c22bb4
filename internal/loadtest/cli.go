package loadtest

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/movierank/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging sends logs to stdout and, when logFile is set, to that file too.
func SetupLogging(logFile string, verbose bool) error {
	var w io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.InitWith(w, "text"); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the load test tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `movierank load test
===================

Registers accounts, creates movies and races concurrent rank claims against a
running service, then checks every ranked list stays strictly ordered.

Usage:
  go run ./cmd/loadtest [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:3000")
  -users int
        Number of accounts to register (default 20)
  -movies int
        Movies created per account, at most 100 (default 40)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Also write logs to this file
  -verbose
        Log every rank claim
  -help
        Show this help message

Examples:
  go run ./cmd/loadtest -users 50 -movies 100 -workers 64
  go run ./cmd/loadtest -url http://localhost:8080 -verbose
`)
}
