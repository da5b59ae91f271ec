package mirror

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/angelmondragon/storefront/internal/notifications"
	"github.com/angelmondragon/storefront/pkg/gateway"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
)

// JobName labels mirror metrics.
const JobName = "mirror.cart_add"

const (
	defaultWorkers   = 2
	defaultQueueSize = 64
	jobTimeout       = 15 * time.Second
)

// Job mirrors one local add-to-cart onto the remote cart.
type Job struct {
	Token string
	Items []gateway.CartItem
	// Label names the product in user-facing messages.
	Label string
}

type cartAdder interface {
	AddToCart(ctx context.Context, token string, items []gateway.CartItem) error
}

type notifier interface {
	Push(level notifications.Level, message string) notifications.Notification
}

// Params configure the queue.
type Params struct {
	Gateway       cartAdder
	Notifier      notifier
	Logger        *logger.Logger
	Metrics       *metrics.JobMetrics
	Workers       int
	QueueSize     int
	RatePerSecond float64
}

// Queue performs best-effort asynchronous reconciliation of local cart adds.
// Failures are reported but never undo the local write.
type Queue struct {
	gateway  cartAdder
	notifier notifier
	logg     *logger.Logger
	metrics  *metrics.JobMetrics
	limiter  *rate.Limiter
	workers  int

	jobs chan Job
	wg   sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
}

// NewQueue builds a stopped queue; call Start to run workers.
func NewQueue(params Params) (*Queue, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	workers := params.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	size := params.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	limit := rate.Inf
	if params.RatePerSecond > 0 {
		limit = rate.Limit(params.RatePerSecond)
	}
	return &Queue{
		gateway:  params.Gateway,
		notifier: params.Notifier,
		logg:     params.Logger,
		metrics:  params.Metrics,
		limiter:  rate.NewLimiter(limit, 1),
		workers:  workers,
		jobs:     make(chan Job, size),
	}, nil
}

// Start launches the workers. Workers exit once Stop drains the queue or ctx
// is canceled.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true
	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx)
	}
}

// Stop closes the queue and waits for queued jobs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	if q.cancel != nil {
		q.cancel()
	}
}

// Enqueue schedules job without blocking. It reports false when the job was
// dropped because the queue is full or stopped.
func (q *Queue) Enqueue(ctx context.Context, job Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		q.drop(ctx, job, "queue stopped")
		return false
	}
	select {
	case q.jobs <- job:
		return true
	default:
		q.drop(ctx, job, "queue full")
		return false
	}
}

func (q *Queue) drop(ctx context.Context, job Job, reason string) {
	q.metrics.IncDropped(JobName)
	q.logg.Warn(q.logg.WithFields(ctx, map[string]any{"job": JobName, "reason": reason}), "cart mirror job dropped")
	q.notifier.Push(notifications.LevelWarning, fmt.Sprintf("Could not sync %s with your online cart", labelOf(job)))
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.process(ctx, job)
		}
	}
}

func (q *Queue) process(ctx context.Context, job Job) {
	jobCtx := q.logg.WithField(ctx, "job", JobName)
	if err := q.limiter.Wait(ctx); err != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	err := q.gateway.AddToCart(runCtx, job.Token, job.Items)
	q.metrics.ObserveDuration(JobName, time.Since(start))
	if err != nil {
		q.metrics.IncFailure(JobName)
		q.logg.Warn(q.logg.WithField(jobCtx, "error", err.Error()), "cart mirror failed; local cart kept")
		q.notifier.Push(notifications.LevelError, "Failed to add item to cart")
		return
	}
	q.metrics.IncSuccess(JobName)
	q.logg.Debug(jobCtx, "cart mirror completed")
}

func labelOf(job Job) string {
	if job.Label != "" {
		return job.Label
	}
	return "item"
}
