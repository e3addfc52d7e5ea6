package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultVisibilityTimeout = 30 * time.Second
	defaultMaxReceives       = 5
)

// MemoryQueue is a Queue backed by a buffered channel. Jobs do not survive a
// restart; use it for development and single-process deployments.
//
// Like SQS, a received message stays leased until it is deleted. A lease
// that is not deleted within the visibility timeout puts the message back on
// the queue. After maxReceives leases the message moves to the dead letters.
type MemoryQueue struct {
	ch          chan Message
	visibility  time.Duration
	maxReceives int

	mu       sync.Mutex
	inflight map[string]*lease
	receives map[string]int
	dead     []Message
	closed   bool
}

type lease struct {
	msg   Message
	timer *time.Timer
}

// MemoryQueueOption customizes a MemoryQueue.
type MemoryQueueOption func(*MemoryQueue)

// WithVisibilityTimeout sets how long a received message stays hidden.
func WithVisibilityTimeout(d time.Duration) MemoryQueueOption {
	return func(q *MemoryQueue) {
		if d > 0 {
			q.visibility = d
		}
	}
}

// WithMaxReceives caps how many times one message is handed out.
func WithMaxReceives(n int) MemoryQueueOption {
	return func(q *MemoryQueue) {
		if n > 0 {
			q.maxReceives = n
		}
	}
}

// NewMemoryQueue creates a MemoryQueue with the provided buffer capacity.
func NewMemoryQueue(buffer int, opts ...MemoryQueueOption) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	q := &MemoryQueue{
		ch:          make(chan Message, buffer),
		visibility:  defaultVisibilityTimeout,
		maxReceives: defaultMaxReceives,
		inflight:    make(map[string]*lease),
		receives:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Send enqueues a payload or blocks until ctx is done.
func (q *MemoryQueue) Send(ctx context.Context, body string) error {
	msg := Message{
		ID:   uuid.NewString(),
		Body: body,
	}
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until a message is available, ctx is done, or waitSeconds elapses.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}

	var timeout <-chan time.Time
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, nil
	case msg := <-q.ch:
		return q.collect(msg, maxMessages), nil
	}
}

// Delete acknowledges a received message so it is not handed out again.
func (q *MemoryQueue) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.inflight[receiptHandle]
	if !ok {
		return nil
	}
	l.timer.Stop()
	delete(q.inflight, receiptHandle)
	delete(q.receives, l.msg.ID)
	return nil
}

// Close stops pending redeliveries. Leased messages are dropped.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for handle, l := range q.inflight {
		l.timer.Stop()
		delete(q.inflight, handle)
	}
}

// Len reports how many jobs are buffered.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

// InFlight reports how many received jobs await Delete.
func (q *MemoryQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

// DeadLetters returns messages that exhausted their receives.
func (q *MemoryQueue) DeadLetters() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Message, len(q.dead))
	copy(out, q.dead)
	return out
}

func (q *MemoryQueue) collect(first Message, max int) []Message {
	messages := make([]Message, 0, max)
	messages = append(messages, q.lease(first))
	for len(messages) < max {
		select {
		case msg := <-q.ch:
			messages = append(messages, q.lease(msg))
		default:
			return messages
		}
	}
	return messages
}

func (q *MemoryQueue) lease(msg Message) Message {
	msg.ReceiptHandle = uuid.NewString()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.receives[msg.ID]++
	handle := msg.ReceiptHandle
	q.inflight[handle] = &lease{
		msg:   msg,
		timer: time.AfterFunc(q.visibility, func() { q.expire(handle) }),
	}
	return msg
}

func (q *MemoryQueue) expire(handle string) {
	q.mu.Lock()
	l, ok := q.inflight[handle]
	if !ok || q.closed {
		q.mu.Unlock()
		return
	}
	delete(q.inflight, handle)
	msg := l.msg
	msg.ReceiptHandle = ""
	if q.receives[msg.ID] >= q.maxReceives {
		delete(q.receives, msg.ID)
		q.dead = append(q.dead, msg)
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()

	// The buffer may be full; hand off without holding the lock.
	go func() { q.ch <- msg }()
}
