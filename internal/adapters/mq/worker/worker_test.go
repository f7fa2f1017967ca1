package worker_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/okian/tierlist/internal/adapters/mq/queue"
	"github.com/okian/tierlist/internal/adapters/mq/worker"
	"github.com/okian/tierlist/internal/domain/model"
	logging "github.com/okian/tierlist/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"
)

func init() {
	if err := logging.Init(logging.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, req model.RefreshRequest) (int, error) {
	args := m.Called(ctx, req)
	return args.Int(0), args.Error(1)
}

type chanQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newChanQueue() *chanQueue { return &chanQueue{jobs: make(chan queue.Job, 10)} }

func (q *chanQueue) Dequeue(context.Context) <-chan queue.Job { return q.jobs }

func (q *chanQueue) Close() error {
	q.once.Do(func() { close(q.jobs) })
	return nil
}

type sleepLog struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepLog) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *sleepLog) get() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func waitResult(ch <-chan worker.JobResult) worker.JobResult {
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		return worker.JobResult{Err: errors.New("timed out waiting for job result")}
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker with three attempts and recorded backoff", t, func() {
		q := newChanQueue()
		runner := &mockRunner{}
		sleeps := &sleepLog{}
		results := make(chan worker.JobResult, 4)

		w := worker.NewInMemoryWorker(q, runner,
			worker.WithName("test-worker"),
			worker.WithAttempts(3),
			worker.WithBackoff(time.Second),
			worker.WithSleeper(sleeps.sleep),
			worker.WithResultHook(func(r worker.JobResult) { results <- r }),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		job := queue.NewJob(model.RefreshAll, model.TriggerCron, time.UnixMilli(1))
		req := model.RefreshRequest{Mode: model.RefreshAll, Trigger: model.TriggerCron}

		convey.Convey("A successful job runs once", func() {
			runner.On("Run", mock.Anything, req).Return(12, nil).Once()
			q.jobs <- job

			r := waitResult(results)
			convey.So(r.Err, convey.ShouldBeNil)
			convey.So(r.Attempts, convey.ShouldEqual, 1)
			convey.So(r.Updated, convey.ShouldEqual, 12)
			convey.So(sleeps.get(), convey.ShouldBeEmpty)
			runner.AssertExpectations(t)
		})

		convey.Convey("A flaky job is retried with exponential backoff", func() {
			runner.On("Run", mock.Anything, req).Return(0, errors.New("boom")).Twice()
			runner.On("Run", mock.Anything, req).Return(3, nil).Once()
			q.jobs <- job

			r := waitResult(results)
			convey.So(r.Err, convey.ShouldBeNil)
			convey.So(r.Attempts, convey.ShouldEqual, 3)
			convey.So(sleeps.get(), convey.ShouldResemble, []time.Duration{time.Second, 2 * time.Second})
			runner.AssertExpectations(t)
		})

		convey.Convey("A job that keeps failing is reported after the last attempt", func() {
			runner.On("Run", mock.Anything, req).Return(0, errors.New("upstream down")).Times(3)
			q.jobs <- job

			r := waitResult(results)
			convey.So(r.Err, convey.ShouldNotBeNil)
			convey.So(r.Err.Error(), convey.ShouldEqual, "upstream down")
			convey.So(r.Attempts, convey.ShouldEqual, 3)
			runner.AssertNumberOfCalls(t, "Run", 3)
		})

		convey.Convey("Shutdown stops the loop", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of two workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		runner := &mockRunner{}
		runner.On("Run", mock.Anything, mock.Anything).Return(1, nil)
		results := make(chan worker.JobResult, 8)

		p := worker.NewPool(2, q, runner, worker.WithResultHook(func(r worker.JobResult) { results <- r }))
		convey.So(p.Size(), convey.ShouldEqual, 2)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p.Start(ctx)

		convey.Convey("Every queued job is run exactly once", func() {
			for i := range 4 {
				convey.So(q.Enqueue(ctx, queue.NewJob(model.RefreshAll, model.TriggerManual, time.UnixMilli(int64(i)))), convey.ShouldBeNil)
			}
			ids := map[string]bool{}
			for range 4 {
				r := waitResult(results)
				convey.So(r.Err, convey.ShouldBeNil)
				ids[r.Job.ID] = true
			}
			convey.So(ids, convey.ShouldHaveLength, 4)

			convey.So(p.Shutdown(context.Background()), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)
		})
	})
}
