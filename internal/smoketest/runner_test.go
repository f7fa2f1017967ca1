package smoketest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tierlist/internal/adapters/http/api"
	"github.com/okian/tierlist/internal/adapters/provider"
	"github.com/okian/tierlist/internal/adapters/repository"
	"github.com/okian/tierlist/internal/app"
	"github.com/okian/tierlist/internal/domain/model"
)

// startServer serves the API over a fresh memory store whose providers read
// fixtures from dir.
func startServer(t *testing.T, dir string) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	mock := provider.WithMockMode(true, dir)
	refresher := app.NewRefresher(store, []provider.Provider{
		provider.NewWarcraftLogsMythicPlus(nil, provider.WarcraftLogsSettings{}, mock),
		provider.NewWarcraftLogsRaid(nil, provider.WarcraftLogsSettings{}, mock),
	})
	svc := app.New(store, refresher, app.WithWorkerCount(1), app.WithJobRetry(1, time.Millisecond))
	if err := svc.Start(ctx); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return srv
}

func testConfig(baseURL string, mode model.RefreshMode) *Config {
	return &Config{
		BaseURL:      baseURL,
		Mode:         mode,
		Timeout:      2 * time.Second,
		PollInterval: 10 * time.Millisecond,
		Wait:         5 * time.Second,
	}
}

func TestRun(t *testing.T) {
	Convey("Given a server over generated fixtures", t, func() {
		dir := t.TempDir()
		So(GenerateFixtures(dir, 3), ShouldBeNil)
		srv := startServer(t, dir)

		Convey("When every mode is refreshed", func() {
			stats, err := Run(context.Background(), testConfig(srv.URL, model.RefreshAll))

			Convey("Then both tier lists pass verification", func() {
				So(err, ShouldBeNil)
				So(stats.JobRunID, ShouldNotBeEmpty)
				So(stats.ItemsUpdated, ShouldEqual, 32)
				So(stats.SpecsVerified[model.ModeMythicPlus], ShouldEqual, 16)
				So(stats.SpecsVerified[model.ModeRaid], ShouldEqual, 16)
			})

			Convey("And a second run verifies the rank deltas", func() {
				stats, err := Run(context.Background(), testConfig(srv.URL, model.RefreshMode(model.ModeRaid)))
				So(err, ShouldBeNil)
				So(stats.SpecsVerified, ShouldHaveLength, 1)
			})
		})
	})

	Convey("Given a server whose fixtures are missing", t, func() {
		srv := startServer(t, t.TempDir())

		Convey("When a refresh is run", func() {
			_, err := Run(context.Background(), testConfig(srv.URL, model.RefreshAll))

			Convey("Then the failed job run is reported", func() {
				So(errors.Is(err, ErrJobFailed), ShouldBeTrue)
			})
		})
	})

	Convey("Given a server that never finishes a run", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		mux.HandleFunc("/api/admin/logs", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"logs":[]}`))
		})
		mux.HandleFunc("/api/refresh", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"ok":true,"jobId":"manual-1"}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("When the wait elapses", func() {
			cfg := testConfig(srv.URL, model.RefreshAll)
			cfg.Wait = 50 * time.Millisecond
			stats, err := Run(context.Background(), cfg)

			Convey("Then a timeout is returned", func() {
				So(errors.Is(err, ErrTimeout), ShouldBeTrue)
				So(stats.JobID, ShouldEqual, "manual-1")
				So(stats.Polls, ShouldBeGreaterThan, 0)
			})
		})
	})

	Convey("Given an unreachable server", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		Convey("Then the health check fails", func() {
			_, err := Run(context.Background(), testConfig(srv.URL, model.RefreshAll))
			So(err, ShouldNotBeNil)
		})
	})
}
