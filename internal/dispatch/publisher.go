package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/facility-lead-chat/internal/leads"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

// Publisher enqueues finished leads for asynchronous delivery.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
	now    func() time.Time
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger, now: time.Now}
}

// Publish wraps the lead in a Job and sends it to the queue.
func (p *Publisher) Publish(ctx context.Context, lead *leads.Lead) error {
	if p == nil || p.queue == nil {
		return errors.New("dispatch: queue not configured")
	}
	if lead == nil || lead.ID == "" {
		return errors.New("dispatch: lead id required")
	}

	job, body, err := encodeJob(lead, p.now())
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("dispatch: enqueue lead: %w", err)
	}
	p.logger.Debug("lead job enqueued", "job_id", job.ID, "lead_id", lead.ID, "source", lead.Source)
	return nil
}
