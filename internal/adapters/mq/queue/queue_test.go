package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/tierlist/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestNewJob(t *testing.T) {
	convey.Convey("Job ids combine trigger and enqueue time", t, func() {
		now := time.UnixMilli(1700000000123)
		j := NewJob(model.RefreshMode(model.ModeRaid), model.TriggerCron, now)
		convey.So(j.ID, convey.ShouldEqual, "cron-1700000000123")
		convey.So(j.Request(), convey.ShouldResemble, model.RefreshRequest{Mode: model.RefreshMode(model.ModeRaid), Trigger: model.TriggerCron})

		d := NewJob("", "", now)
		convey.So(d.Mode, convey.ShouldEqual, model.RefreshAll)
		convey.So(d.ID, convey.ShouldEqual, "manual-1700000000123")
	})
}

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()
	job := func(id string) Job { return Job{ID: id, Mode: model.RefreshAll, Trigger: model.TriggerManual} }

	convey.Convey("Given a queue with capacity 2", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))

		convey.Convey("Jobs are delivered in order", func() {
			convey.So(q.Enqueue(ctx, job("a")), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, job("b")), convey.ShouldBeNil)
			convey.So(q.Len(ctx), convey.ShouldEqual, 2)

			ch := q.Dequeue(ctx)
			convey.So((<-ch).ID, convey.ShouldEqual, "a")
			convey.So((<-ch).ID, convey.ShouldEqual, "b")
		})

		convey.Convey("A full queue rejects without blocking", func() {
			convey.So(q.Enqueue(ctx, job("a")), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, job("b")), convey.ShouldBeNil)
			err := q.Enqueue(ctx, job("c"))
			convey.So(errors.Is(err, ErrQueueFull), convey.ShouldBeTrue)
			convey.So(q.Len(ctx), convey.ShouldEqual, 2)
		})

		convey.Convey("A cancelled context is rejected", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			convey.So(errors.Is(q.Enqueue(cctx, job("a")), context.Canceled), convey.ShouldBeTrue)
		})

		convey.Convey("Closing drains queued jobs and then closes the channel", func() {
			convey.So(q.Enqueue(ctx, job("a")), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeFalse)
			convey.So(q.Close(), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)
			convey.So(errors.Is(q.Enqueue(ctx, job("b")), ErrClosed), convey.ShouldBeTrue)

			var got []string
			for j := range q.Dequeue(ctx) {
				got = append(got, j.ID)
			}
			convey.So(got, convey.ShouldResemble, []string{"a"})
			convey.So(q.Close(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Concurrent producers and consumers deliver every job once", t, func() {
		q := NewInMemoryQueue(WithCapacity(8))
		const producers, perProducer = 4, 25

		var (
			mu   sync.Mutex
			seen = map[string]int{}
			wg   sync.WaitGroup
		)
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range q.Dequeue(ctx) {
					mu.Lock()
					seen[j.ID]++
					mu.Unlock()
				}
			}()
		}

		var pw sync.WaitGroup
		for p := range producers {
			pw.Add(1)
			go func() {
				defer pw.Done()
				for i := range perProducer {
					id := string(rune('a'+p)) + "-" + time.Duration(i).String()
					for q.Enqueue(ctx, job(id)) != nil {
						time.Sleep(time.Millisecond)
					}
				}
			}()
		}
		pw.Wait()
		convey.So(q.Close(), convey.ShouldBeNil)
		wg.Wait()

		convey.So(seen, convey.ShouldHaveLength, producers*perProducer)
		for _, n := range seen {
			convey.So(n, convey.ShouldEqual, 1)
		}
	})
}
