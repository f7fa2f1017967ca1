// Command refresh runs one refresh synchronously against the configured
// store and exits. It is the entry point for external schedulers.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/tierlist/internal/app"
	"github.com/okian/tierlist/internal/config"
	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/pkg/logger"
)

func main() {
	var (
		mode    = flag.String("mode", string(model.RefreshAll), "Refresh mode: ALL, MYTHIC_PLUS or RAID")
		trigger = flag.String("trigger", string(model.TriggerSeed), "Trigger recorded on the job run")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	refreshMode, err := model.ParseRefreshMode(*mode)
	if err != nil {
		os.Stderr.WriteString("invalid mode: " + err.Error() + "\n")
		os.Exit(2)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	_ = logger.SetLevelString(cfg.LogLevel)

	req := model.RefreshRequest{Mode: refreshMode, Trigger: model.ParseTrigger(*trigger)}
	if _, err := run(ctx, cfg, req); err != nil {
		logger.Get().Error(ctx, "refresh failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, req model.RefreshRequest) (app.RefreshResult, error) {
	log := logger.Get().Named("refresh")

	comps, err := app.Build(ctx, cfg)
	if err != nil {
		return app.RefreshResult{}, err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			log.Error(ctx, "closing components failed", logger.Error(err))
		}
	}()

	res, err := comps.Refresher.Run(ctx, req)
	if err != nil {
		return res, err
	}
	for _, m := range res.Modes {
		log.Info(ctx, "mode refreshed",
			logger.String("mode", string(m.Mode)),
			logger.String("source", m.Source),
			logger.Int("entries", m.EntryCount),
			logger.Int("scored", m.ScoredCount),
			logger.Int("persisted", m.Persisted),
		)
	}
	log.Info(ctx, "refresh finished",
		logger.String("jobRunId", res.JobRunID),
		logger.Int("updated", res.Updated),
		logger.Duration("duration", res.Duration),
	)
	return res, nil
}
