package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const memoryBuffer = 256

// MemoryQueue is an in-process queue used when the API and worker run in a
// single binary. Deliveries stay in an inflight map until acknowledged so the
// at-least-once contract matches the remote backends.
type MemoryQueue struct {
	mu       sync.Mutex
	ch       chan Delivery
	inflight map[string]Delivery
	closed   bool
}

// NewMemoryQueue constructs a channel-backed queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		ch:       make(chan Delivery, memoryBuffer),
		inflight: make(map[string]Delivery),
	}
}

// Send enqueues a message. It fails when the buffer is full rather than
// blocking the submission path.
func (q *MemoryQueue) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode memory message: %w", err)
	}

	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return fmt.Errorf("memory queue closed")
	}

	delivery := Delivery{
		Body:         string(payload),
		Receipt:      uuid.NewString(),
		ReceiveCount: 1,
	}
	select {
	case q.ch <- delivery:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("memory queue full")
	}
}

// Receive blocks until a message arrives or the context is cancelled.
func (q *MemoryQueue) Receive(ctx context.Context) ([]Delivery, error) {
	select {
	case d, ok := <-q.ch:
		if !ok {
			return nil, fmt.Errorf("memory queue closed")
		}
		q.mu.Lock()
		q.inflight[d.Receipt] = d
		q.mu.Unlock()
		return []Delivery{d}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ack discards an inflight delivery.
func (q *MemoryQueue) Ack(ctx context.Context, receipt string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inflight[receipt]; !ok {
		return fmt.Errorf("memory ack: unknown receipt")
	}
	delete(q.inflight, receipt)
	return nil
}

// Redeliver pushes an unacknowledged delivery back onto the queue with its
// receive count bumped.
func (q *MemoryQueue) Redeliver(receipt string) bool {
	q.mu.Lock()
	d, ok := q.inflight[receipt]
	if ok {
		delete(q.inflight, receipt)
	}
	q.mu.Unlock()
	if !ok {
		return false
	}

	d.ReceiveCount++
	select {
	case q.ch <- d:
		return true
	default:
		return false
	}
}

// Close stops the queue. Pending sends fail afterwards.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

var (
	_ Client   = (*MemoryQueue)(nil)
	_ Consumer = (*MemoryQueue)(nil)
)
