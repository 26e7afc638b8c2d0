package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/certify/internal/adapters/mq/queue"
	worker "github.com/okian/certify/internal/adapters/mq/worker"
	"github.com/okian/certify/internal/adapters/notify"
	model "github.com/okian/certify/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

type mockSender struct {
	mu    sync.Mutex
	sent  []string
	fail  map[string]error
	delay time.Duration
}

func newMockSender() *mockSender {
	return &mockSender{fail: map[string]error{}}
}

func (ms *mockSender) Send(ctx context.Context, recipient, artifact string) notify.Result {
	if ms.delay > 0 {
		select {
		case <-time.After(ms.delay):
		case <-ctx.Done():
			return notify.Result{Recipient: recipient, Err: ctx.Err()}
		}
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.sent = append(ms.sent, recipient+"|"+artifact)
	return notify.Result{Recipient: recipient, Err: ms.fail[recipient]}
}

func (ms *mockSender) count() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.sent)
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker with a queue and a sender", t, func() {
		q := newMockQueue()
		s := newMockSender()
		w := worker.NewInMemoryWorker(q, s, worker.WithName("test-worker"))

		convey.Convey("When jobs are queued and the queue is closed", func() {
			q.jobs <- model.NewDelivery("alice@x.com", "/tmp/a.pdf")
			q.jobs <- model.NewDelivery("bob@x.com", "/tmp/b.pdf")
			_ = q.Close()

			w.Run(context.Background())

			convey.Convey("Then every job is delivered and the worker stops", func() {
				convey.So(s.sent, convey.ShouldResemble, []string{"alice@x.com|/tmp/a.pdf", "bob@x.com|/tmp/b.pdf"})
				convey.So(w.Processed(), convey.ShouldEqual, 2)
				_, open := <-w.Done()
				convey.So(open, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When a delivery fails", func() {
			s.fail["alice@x.com"] = errors.New("relay down")
			q.jobs <- model.NewDelivery("alice@x.com", "/tmp/a.pdf")
			q.jobs <- model.NewDelivery("bob@x.com", "/tmp/b.pdf")
			_ = q.Close()

			w.Run(context.Background())

			convey.Convey("Then the worker carries on with the next job", func() {
				convey.So(s.count(), convey.ShouldEqual, 2)
				convey.So(w.Processed(), convey.ShouldEqual, 2)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		s := newMockSender()
		p := worker.NewPool(4, q, s)
		ctx := context.Background()

		convey.So(p.Size(), convey.ShouldEqual, 4)

		convey.Convey("When jobs are enqueued and the pool shuts down", func() {
			p.Start(ctx)
			p.Start(ctx)
			for i := 0; i < 20; i++ {
				convey.So(q.Enqueue(ctx, model.NewDelivery("x@x.com", "/tmp/x.pdf")), convey.ShouldBeTrue)
			}
			err := p.Shutdown(ctx)

			convey.Convey("Then every queued job is drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(s.count(), convey.ShouldEqual, 20)
				convey.So(p.Processed(), convey.ShouldEqual, 20)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the pool was never started", func() {
			err := p.Shutdown(ctx)

			convey.Convey("Then shutdown only closes the queue", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool whose sender is slow", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		s := newMockSender()
		s.delay = time.Second
		p := worker.NewPool(1, q, s, worker.WithShutdownTimeout(50*time.Millisecond))
		ctx := context.Background()
		p.Start(ctx)
		for i := 0; i < 5; i++ {
			q.Enqueue(ctx, model.NewDelivery("x@x.com", "/tmp/x.pdf"))
		}

		convey.Convey("Then shutdown gives up after the timeout", func() {
			start := time.Now()
			err := p.Shutdown(ctx)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(time.Since(start), convey.ShouldBeLessThan, time.Second)
		})
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		p := worker.NewPool(0, newMockQueue(), newMockSender())

		convey.Convey("Then at least one worker is created", func() {
			convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
