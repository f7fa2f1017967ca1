package smoketest

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/tierlist/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging initializes the logger on stdout, teeing into logFile when it
// is set.
func SetupLogging(logFile string, verbose bool) error {
	var w io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.Init(logger.WithWriter(w)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the smoke tool.
func ShowHelp() {
	os.Stdout.WriteString(`Tier List Smoke Test
====================

Triggers a refresh on a running server, waits for its job run and checks
every served tier list.

Usage:
  go run ./cmd/smoke [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -mode string
        Refresh mode: ALL, MYTHIC_PLUS or RAID (default "ALL")
  -timeout duration
        HTTP request timeout (default 10s)
  -poll duration
        Delay between job run polls (default 500ms)
  -wait duration
        How long to wait for the job run to finish (default 2m)
  -gen-fixtures string
        Write fixture files into this directory and exit
  -seed uint
        Seed for generated fixtures (default 1)
  -log string
        Also write log output to this file
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  # Smoke test a local server
  go run ./cmd/smoke

  # Raid only, against another host
  go run ./cmd/smoke -mode RAID -url http://tierlist:9080

  # Regenerate mock-mode fixtures
  go run ./cmd/smoke -gen-fixtures ./fixtures -seed 7
`)
}
