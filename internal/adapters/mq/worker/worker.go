package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/certify/internal/adapters/mq/queue"
	"github.com/okian/certify/internal/adapters/notify"
	"github.com/okian/certify/pkg/logger"
	"github.com/okian/certify/pkg/metrics"
	"go.uber.org/atomic"
)

const defaultShutdownTimeout = 30 * time.Second

// Job abstracts what workers read off the queue.
type Job = queue.Job

// Sender delivers one certificate.
type Sender interface {
	Send(ctx context.Context, recipient, artifact string) notify.Result
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes delivery jobs.
type Worker interface {
	// Run consumes jobs until the queue is drained or ctx is canceled.
	Run(ctx context.Context)

	// Done is closed when Run returns.
	Done() <-chan struct{}
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	sender    Sender
	name      string
	done      chan struct{}
	processed *atomic.Int64
	logger    logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, s Sender, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		sender:    s,
		name:      "worker",
		done:      make(chan struct{}),
		processed: atomic.NewInt64(0),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for j := range w.queue.Dequeue(ctx) {
		w.process(ctx, j)
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Processed returns the number of jobs handled, whatever their outcome.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

func (w *InMemoryWorker) process(ctx context.Context, j Job) {
	defer w.processed.Inc()

	res := w.sender.Send(ctx, j.Recipient, j.Artifact)
	res.Log(ctx, w.logger.With(logger.String("job_id", j.ID)))
	if res.Err != nil {
		metrics.RecordErrorByComponent("worker", "delivery_failed")
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers         []*InMemoryWorker
	queue           Queue
	cancel          context.CancelFunc
	shutdownTimeout time.Duration
	started         *atomic.Bool
	logger          logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one uses
// one worker per CPU.
func NewPool(workerCount int, q Queue, s Sender, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers:         make([]*InMemoryWorker, workerCount),
		queue:           q,
		cancel:          func() {},
		shutdownTimeout: defaultShutdownTimeout,
		started:         atomic.NewBool(false),
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewInMemoryWorker(q, s,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start starts all workers in the pool. It is a no-op after the first call.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	for _, w := range p.workers {
		go w.Run(runCtx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of jobs handled by all workers.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Shutdown closes the queue and waits for workers to drain it. Jobs still
// pending when the timeout or ctx expires are abandoned.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	if !p.started.Load() {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, p.shutdownTimeout)
	defer cancel()
	defer p.cancel()

	for i, w := range p.workers {
		select {
		case <-w.Done():
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
		}
	}
	return nil
}
