package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/facility-lead-chat/internal/leads"
	"github.com/wolfman30/facility-lead-chat/internal/observability/metrics"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
	maxReceiveBackoff    = 5 * time.Second
	defaultDeliveryLimit = 2 * time.Minute
)

// Deliverer runs the pipeline for one lead. *Dispatcher satisfies it.
type Deliverer interface {
	Deliver(ctx context.Context, lead *leads.Lead) (Result, error)
}

// Worker consumes lead jobs from the queue and delivers them.
type Worker struct {
	queue     Queue
	deliverer Deliverer
	metrics   *metrics.DeliveryMetrics
	logger    *logging.Logger
	cfg       workerConfig
	wg        sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	deliveryTimeout  time.Duration
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithDeliveryTimeout bounds one lead's delivery. Deliveries run on their own
// context so a shutdown stops receiving without cutting them short.
func WithDeliveryTimeout(d time.Duration) WorkerOption {
	return func(cfg *workerConfig) {
		if d > 0 {
			cfg.deliveryTimeout = d
		}
	}
}

// NewWorker creates a worker.
func NewWorker(queue Queue, deliverer Deliverer, m *metrics.DeliveryMetrics, logger *logging.Logger, opts ...WorkerOption) (*Worker, error) {
	if queue == nil {
		return nil, errors.New("dispatch: queue required")
	}
	if deliverer == nil {
		return nil, errors.New("dispatch: deliverer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		deliveryTimeout:  defaultDeliveryLimit,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{queue: queue, deliverer: deliverer, metrics: m, logger: logger, cfg: cfg}, nil
}

// Start launches the consumer goroutines.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// Run starts the consumers and blocks until ctx is cancelled and they exit.
func (w *Worker) Run(ctx context.Context) {
	w.Start(ctx)
	w.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("dispatch worker started", "worker_id", workerID)

	wait := time.Second
	for {
		if ctx.Err() != nil {
			w.logger.Debug("dispatch worker stopping", "worker_id", workerID)
			return
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive lead jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			if wait < maxReceiveBackoff {
				wait *= 2
			}
			continue
		}
		wait = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg Message) {
	job, err := decodeJob(msg.Body)
	if err != nil {
		w.logger.Error("dropping malformed lead job", "error", err, "msg_id", msg.ID)
		w.metrics.ObserveJob("malformed")
		w.deleteMessage(ctx, msg.ReceiptHandle)
		return
	}

	w.logger.Info("worker processing lead job", "job_id", job.ID, "lead_id", job.Lead.ID, "msg_id", msg.ID)
	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.deliveryTimeout)
	defer cancel()
	res, err := w.deliverer.Deliver(deliverCtx, job.Lead)
	if err != nil {
		// Leave the message leased so the queue hands it out again.
		w.logger.Error("lead delivery aborted", "error", err, "job_id", job.ID, "lead_id", job.Lead.ID)
		w.metrics.ObserveJob(StatusFailed)
		return
	}
	w.metrics.ObserveJob(res.Status())
	w.deleteMessage(ctx, msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete lead job", "error", err)
	}
}
