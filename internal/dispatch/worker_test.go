package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/facility-lead-chat/internal/leads"
	"github.com/wolfman30/facility-lead-chat/internal/observability/metrics"
)

type recordingDeliverer struct {
	mu    sync.Mutex
	leads []string
	err   error
	done  chan struct{}
}

func (r *recordingDeliverer) Deliver(_ context.Context, lead *leads.Lead) (Result, error) {
	r.mu.Lock()
	r.leads = append(r.leads, lead.ID)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
	if r.err != nil {
		return Result{LeadID: lead.ID}, r.err
	}
	return Result{LeadID: lead.ID}, nil
}

type countingQueue struct {
	*MemoryQueue
	mu      sync.Mutex
	deleted []string
}

func (q *countingQueue) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	q.deleted = append(q.deleted, receiptHandle)
	q.mu.Unlock()
	return q.MemoryQueue.Delete(ctx, receiptHandle)
}

func (q *countingQueue) deletedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.deleted)
}

func TestWorkerDeliversPublishedLeads(t *testing.T) {
	q := &countingQueue{MemoryQueue: NewMemoryQueue(4)}
	deliverer := &recordingDeliverer{done: make(chan struct{}, 4)}
	worker, err := NewWorker(q, deliverer, nil, nil, WithWorkerCount(2), WithReceiveWaitSeconds(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	pub := NewPublisher(q, nil)
	require.NoError(t, pub.Publish(ctx, sampleLead("w1")))
	require.NoError(t, pub.Publish(ctx, sampleLead("w2")))

	for i := 0; i < 2; i++ {
		select {
		case <-deliverer.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
	cancel()
	worker.Wait()

	assert.ElementsMatch(t, []string{"w1", "w2"}, deliverer.leads)
	assert.Equal(t, 2, q.deletedCount())
}

func TestWorkerDropsMalformedJobs(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewDeliveryMetrics(reg)
	q := &countingQueue{MemoryQueue: NewMemoryQueue(1)}
	deliverer := &recordingDeliverer{}
	worker, err := NewWorker(q, deliverer, m, nil)
	require.NoError(t, err)

	worker.handleMessage(context.Background(), Message{ID: "m1", Body: "not json", ReceiptHandle: "rh-1"})

	assert.Empty(t, deliverer.leads)
	assert.Equal(t, 1, q.deletedCount())
	assert.Equal(t, 1.0, jobCount(t, reg, "malformed"))
}

func TestWorkerRedeliversJobWhenDeliveryAborts(t *testing.T) {
	q := &countingQueue{MemoryQueue: NewMemoryQueue(1, WithVisibilityTimeout(100*time.Millisecond))}
	defer q.Close()
	deliverer := &recordingDeliverer{err: errors.New("persist failed"), done: make(chan struct{}, 4)}
	worker, err := NewWorker(q, deliverer, nil, nil, WithWorkerCount(1), WithReceiveWaitSeconds(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	require.NoError(t, NewPublisher(q, nil).Publish(ctx, sampleLead("w3")))
	for i := 0; i < 2; i++ {
		select {
		case <-deliverer.done:
		case <-time.After(3 * time.Second):
			t.Fatalf("expected delivery attempt %d", i+1)
		}
	}
	cancel()
	worker.Wait()

	assert.Equal(t, []string{"w3", "w3"}, deliverer.leads[:2])
	assert.Zero(t, q.deletedCount())
}

type blockingDeliverer struct {
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (b *blockingDeliverer) Deliver(ctx context.Context, lead *leads.Lead) (Result, error) {
	close(b.started)
	<-b.release
	b.ctxErr <- ctx.Err()
	return Result{LeadID: lead.ID}, nil
}

func TestWorkerFinishesInFlightDeliveryOnShutdown(t *testing.T) {
	q := &countingQueue{MemoryQueue: NewMemoryQueue(1)}
	defer q.Close()
	deliverer := &blockingDeliverer{started: make(chan struct{}), release: make(chan struct{}), ctxErr: make(chan error, 1)}
	worker, err := NewWorker(q, deliverer, nil, nil, WithWorkerCount(1), WithReceiveWaitSeconds(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)
	require.NoError(t, NewPublisher(q, nil).Publish(ctx, sampleLead("w4")))

	select {
	case <-deliverer.started:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery never started")
	}
	cancel()
	close(deliverer.release)
	worker.Wait()

	assert.NoError(t, <-deliverer.ctxErr)
	assert.Equal(t, 1, q.deletedCount())
	assert.Zero(t, q.InFlight())
}

func TestNewWorkerValidates(t *testing.T) {
	_, err := NewWorker(nil, &recordingDeliverer{}, nil, nil)
	assert.Error(t, err)
	_, err = NewWorker(NewMemoryQueue(1), nil, nil, nil)
	assert.Error(t, err)
}

func jobCount(t *testing.T, reg *prometheus.Registry, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != "leadchat_dispatch_jobs_total" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabel(metric, "status", status) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name && pair.GetValue() == value {
			return true
		}
	}
	return false
}
