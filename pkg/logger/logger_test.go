package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	ctx := context.Background()

	Convey("Given a logger writing text to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf)), ShouldBeNil)

		Convey("Info records carry fields and the call site", func() {
			Get().Info(ctx, "refresh done", String("mode", "RAID"), Int("items", 3))
			out := buf.String()
			So(out, ShouldContainSubstring, "refresh done")
			So(out, ShouldContainSubstring, "mode=RAID")
			So(out, ShouldContainSubstring, "items=3")
			So(out, ShouldContainSubstring, "logger_test.go")
		})

		Convey("Named loggers tag the component", func() {
			Named("refresh").Warn(ctx, "no specs")
			So(buf.String(), ShouldContainSubstring, "component=refresh")
		})

		Convey("Debug is suppressed at info level", func() {
			Get().Debug(ctx, "hidden")
			So(buf.String(), ShouldBeEmpty)
		})

		Convey("SetLevelString enables debug output", func() {
			So(SetLevelString("DEBUG"), ShouldBeNil)
			Get().Debug(ctx, "visible", Duration("took", time.Second))
			So(buf.String(), ShouldContainSubstring, "visible")
			So(SetLevelString("info"), ShouldBeNil)
		})

		Convey("Unknown levels are rejected", func() {
			So(SetLevelString("verbose"), ShouldNotBeNil)
		})
	})

	Convey("Given a JSON logger", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf), WithFormat("json")), ShouldBeNil)

		Get().Error(ctx, "persist failed", Error(errors.New("boom")), Bool("retry", true))

		Convey("Each record is one JSON object", func() {
			var rec map[string]any
			So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
			So(rec["msg"], ShouldEqual, "persist failed")
			So(rec["level"], ShouldEqual, "ERROR")
			So(rec["retry"], ShouldEqual, true)
		})
	})

	Convey("Sync never fails", t, func() {
		So(Sync(), ShouldBeNil)
	})
}
