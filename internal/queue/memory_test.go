package queue

import (
	"context"
	"testing"
	"time"
)

func TestMemoryQueueSendReceiveAck(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	defer q.Close()

	msg := Message{JobID: "job-1", DocumentClass: "lease", Jurisdiction: "NY", OwnerID: "user-1"}
	if err := q.Send(ctx, msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	deliveries, err := q.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery got %d", len(deliveries))
	}

	got, err := DecodeMessage([]byte(deliveries[0].Body))
	if err != nil {
		t.Fatalf("decode delivery: %v", err)
	}
	if got.JobID != msg.JobID {
		t.Fatalf("job id mismatch: got %q want %q", got.JobID, msg.JobID)
	}

	if err := q.Ack(ctx, deliveries[0].Receipt); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if err := q.Ack(ctx, deliveries[0].Receipt); err == nil {
		t.Fatalf("expected second ack to fail")
	}
}

func TestMemoryQueueRedeliver(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	defer q.Close()

	if err := q.Send(ctx, Message{JobID: "job-2"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	deliveries, err := q.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	first := deliveries[0]

	if !q.Redeliver(first.Receipt) {
		t.Fatalf("expected redeliver to succeed")
	}

	deliveries, err = q.Receive(ctx)
	if err != nil {
		t.Fatalf("second receive: %v", err)
	}
	if deliveries[0].ReceiveCount != 2 {
		t.Fatalf("expected receive count 2 got %d", deliveries[0].ReceiveCount)
	}
	if deliveries[0].Body != first.Body {
		t.Fatalf("redelivered body changed")
	}
}

func TestMemoryQueueReceiveHonorsContext(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Receive(ctx); err == nil {
		t.Fatalf("expected context deadline error on empty queue")
	}
}
