package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/internal/smoketest"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultPollInterval = 500 * time.Millisecond
	defaultWait         = 2 * time.Minute
	defaultTestTimeout  = 5 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		mode    = flag.String("mode", string(model.RefreshAll), "Refresh mode: ALL, MYTHIC_PLUS or RAID")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		poll    = flag.Duration("poll", defaultPollInterval, "Delay between job run polls")
		wait    = flag.Duration("wait", defaultWait, "How long to wait for the job run")
		genDir  = flag.String("gen-fixtures", "", "Write fixture files into this directory and exit")
		seed    = flag.Uint64("seed", 1, "Seed for generated fixtures")
		logFile = flag.String("log", "", "Also write log output to this file")
		verbose = flag.Bool("verbose", false, "Enable debug logging")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		smoketest.ShowHelp()
		return
	}

	if err := smoketest.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	if *genDir != "" {
		if err := smoketest.GenerateFixtures(*genDir, *seed); err != nil {
			os.Stderr.WriteString("Fixture generation failed: " + err.Error() + "\n")
			os.Exit(1)
		}
		return
	}

	refreshMode, err := model.ParseRefreshMode(*mode)
	if err != nil {
		os.Stderr.WriteString("Invalid mode: " + err.Error() + "\n")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &smoketest.Config{
		BaseURL:      *baseURL,
		Mode:         refreshMode,
		Timeout:      *timeout,
		PollInterval: *poll,
		Wait:         *wait,
	}

	if _, err := smoketest.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Smoke test failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
