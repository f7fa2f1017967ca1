package smoketest

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/pkg/logger"
)

const logsWindow = 50

// Run executes the complete smoke test.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{
		StartTime:     time.Now(),
		SpecsVerified: map[model.Mode]int{},
	}
	log := logger.Get().Named("smoke")
	client := newHTTPClient(config.BaseURL, config.Timeout)
	mode := config.Mode
	if mode == "" {
		mode = model.RefreshAll
	}

	log.Info(ctx, "starting smoke test",
		logger.String("baseURL", config.BaseURL),
		logger.String("mode", string(mode)),
		logger.Duration("wait", config.Wait),
	)

	// Step 1: health
	if err := client.getJSON(ctx, "/healthz", nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: remember existing runs so the new one can be told apart
	var before logsResponse
	if err := client.getJSON(ctx, logsPath(), &before); err != nil {
		return stats, fmt.Errorf("list job runs: %w", err)
	}
	known := make(map[string]bool, len(before.Logs))
	for _, l := range before.Logs {
		known[l.ID] = true
	}

	// Step 3: trigger
	var accepted refreshResponse
	if err := client.postJSON(ctx, "/api/refresh", map[string]string{"mode": string(mode)}, 202, &accepted); err != nil {
		return stats, fmt.Errorf("trigger refresh: %w", err)
	}
	stats.JobID = accepted.JobID
	log.Info(ctx, "refresh accepted", logger.String("jobId", accepted.JobID))

	// Step 4: wait for the run
	run, err := waitForRun(ctx, client, config, known, stats)
	if err != nil {
		return stats, err
	}
	stats.JobRunID = run.ID
	if run.ItemsUpdated != nil {
		stats.ItemsUpdated = *run.ItemsUpdated
	}

	// Step 5: verify every refreshed mode
	var cfgResp configResponse
	if err := client.getJSON(ctx, "/api/admin/config", &cfgResp); err != nil {
		return stats, fmt.Errorf("read app config: %w", err)
	}
	appCfg, err := model.ParseAppConfig(cfgResp.Config)
	if err != nil {
		return stats, fmt.Errorf("stored app config: %w", err)
	}
	for _, m := range mode.Expand() {
		var tier tierResponse
		if err := client.getJSON(ctx, "/api/tier?mode="+url.QueryEscape(string(m)), &tier); err != nil {
			return stats, fmt.Errorf("read %s tier list: %w", m, err)
		}
		if tier.Snapshot == nil {
			log.Warn(ctx, "no snapshot served", logger.String("mode", string(m)), logger.String("message", tier.Message))
			continue
		}
		if problems := VerifyView(*tier.Snapshot, appCfg); len(problems) > 0 {
			for _, p := range problems {
				log.Error(ctx, "tier list problem", logger.String("mode", string(m)), logger.String("problem", p))
			}
			return stats, fmt.Errorf("%w: %s: %d problems, first: %s", ErrVerification, m, len(problems), problems[0])
		}
		stats.SpecsVerified[m] = len(tier.Snapshot.Specs)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "smoke test completed successfully",
		logger.String("jobRunId", stats.JobRunID),
		logger.Int("itemsUpdated", stats.ItemsUpdated),
		logger.Int("polls", stats.Polls),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// waitForRun polls the admin logs until a run not in known finishes.
func waitForRun(ctx context.Context, client *HTTPClient, config *Config, known map[string]bool, stats *Stats) (jobRunLog, error) {
	ctx, cancel := context.WithTimeout(ctx, config.Wait)
	defer cancel()
	ticker := time.NewTicker(config.PollInterval)
	defer ticker.Stop()

	for {
		stats.Polls++
		var logs logsResponse
		if err := client.getJSON(ctx, logsPath(), &logs); err != nil && ctx.Err() == nil {
			return jobRunLog{}, fmt.Errorf("poll job runs: %w", err)
		}
		for _, l := range logs.Logs {
			if known[l.ID] {
				continue
			}
			switch l.Status {
			case model.JobSuccess:
				return l, nil
			case model.JobFailed:
				msg := ""
				if l.ErrorMessage != nil {
					msg = *l.ErrorMessage
				}
				return l, fmt.Errorf("%w: %s", ErrJobFailed, msg)
			}
		}

		select {
		case <-ctx.Done():
			return jobRunLog{}, fmt.Errorf("%w after %s", ErrTimeout, config.Wait)
		case <-ticker.C:
		}
	}
}

func logsPath() string {
	return fmt.Sprintf("/api/admin/logs?limit=%d", logsWindow)
}
