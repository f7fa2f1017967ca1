package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/tierlist/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new deduper", t, func() {
		d := dedupe.New()

		Convey("A new id is not seen and gets recorded", func() {
			So(d.SeenAndRecord(ctx, "manual-1"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 1)
		})

		Convey("A repeated id is reported as seen", func() {
			d.SeenAndRecord(ctx, "manual-1")
			So(d.SeenAndRecord(ctx, "manual-1"), ShouldBeTrue)
			So(d.Size(), ShouldEqual, 1)
		})

		Convey("A forgotten id can be recorded again", func() {
			d.SeenAndRecord(ctx, "cron-1")
			d.Forget(ctx, "cron-1")
			So(d.Size(), ShouldEqual, 0)
			So(d.SeenAndRecord(ctx, "cron-1"), ShouldBeFalse)
		})

		Convey("Forgetting an unknown id is a no-op", func() {
			d.Forget(ctx, "nope")
			So(d.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.New(dedupe.WithMaxSize(2))
		d.SeenAndRecord(ctx, "a")
		d.SeenAndRecord(ctx, "b")
		d.SeenAndRecord(ctx, "c")

		Convey("The oldest id is evicted first", func() {
			So(d.Size(), ShouldEqual, 2)
			So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.New(dedupe.WithMaxSize(0))
		for i := 0; i < 5000; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("job-%d", i))
		}
		So(d.Size(), ShouldEqual, 5000)
	})

	Convey("Given concurrent callers recording the same id", t, func() {
		d := dedupe.New()
		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, "seed-1") {
					mu.Lock()
					fresh++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Convey("Exactly one caller records it", func() {
			So(fresh, ShouldEqual, 1)
		})
	})
}
