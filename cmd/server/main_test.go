package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tierlist/internal/app"
	"github.com/okian/tierlist/internal/config"
	"github.com/okian/tierlist/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func TestServerWiring(t *testing.T) {
	convey.Convey("Given a memory-backed configuration in mock mode", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.DatabaseBackend = "memory"
		cfg.FixtureDir = "../../fixtures"
		cfg.WorkerMode = "cron"

		comps, err := app.Build(ctx, cfg)
		convey.So(err, convey.ShouldBeNil)
		defer comps.Close()

		svc := newService(cfg, comps)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()
		mux := newMux(ctx, svc)

		convey.Convey("When the seed run finishes", func() {
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				if n, _ := comps.Store.CountSnapshots(ctx); n == 2 {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}

			convey.Convey("Then the tier endpoint serves the raid snapshot", func() {
				req := httptest.NewRequest(http.MethodGet, "/api/tier?mode=RAID", http.NoBody)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Body.String(), convey.ShouldContainSubstring, `"tierLabel"`)
			})

			convey.Convey("And the docs are served", func() {
				req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})
		})
	})

	convey.Convey("Given environment overrides", t, func() {
		_ = os.Setenv("TIERLIST_WORKER_MODE", "cron")
		_ = os.Setenv("TIERLIST_QUEUE_SIZE", "8")
		defer func() {
			_ = os.Unsetenv("TIERLIST_WORKER_MODE")
			_ = os.Unsetenv("TIERLIST_QUEUE_SIZE")
		}()

		convey.Convey("Then the service is built with them", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			cfg.DatabaseBackend = "memory"
			comps, err := app.Build(context.Background(), cfg)
			convey.So(err, convey.ShouldBeNil)
			defer comps.Close()

			stats := newService(cfg, comps).GetStats()
			convey.So(stats["queueSize"], convey.ShouldEqual, 8)
			convey.So(stats["intervalSec"], convey.ShouldEqual, 0)
		})
	})
}
