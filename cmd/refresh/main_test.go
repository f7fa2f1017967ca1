package main

import (
	"context"
	"io"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tierlist/internal/config"
	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func TestRun(t *testing.T) {
	convey.Convey("Given a memory-backed configuration in mock mode", t, func() {
		cfg := config.New()
		cfg.DatabaseBackend = "memory"
		cfg.MockMode = true
		cfg.FixtureDir = "../../fixtures"

		convey.Convey("When every mode is refreshed", func() {
			res, err := run(context.Background(), cfg, model.RefreshRequest{Mode: model.RefreshAll, Trigger: model.TriggerSeed})

			convey.Convey("Then both modes persist their ranked specs", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.JobRunID, convey.ShouldNotBeEmpty)
				convey.So(res.Updated, convey.ShouldEqual, 32)
				convey.So(res.Modes, convey.ShouldHaveLength, 2)
			})
		})

		convey.Convey("When only the raid is refreshed", func() {
			res, err := run(context.Background(), cfg, model.RefreshRequest{Mode: model.RefreshMode(model.ModeRaid)})

			convey.Convey("Then only the raid outcome is reported", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Modes, convey.ShouldHaveLength, 1)
				convey.So(res.Modes[0].Mode, convey.ShouldEqual, model.ModeRaid)
				convey.So(res.Updated, convey.ShouldEqual, 16)
			})
		})
	})
}
