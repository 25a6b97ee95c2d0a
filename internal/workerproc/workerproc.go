// Package workerproc runs the queue consumer loop that feeds dispatched
// analysis jobs into the phase processor.
package workerproc

import (
	"context"
	"sync"
	"time"

	"tenantarmor-backend/internal/jobs"
	"tenantarmor-backend/internal/queue"
	"tenantarmor-backend/internal/shared/telemetry"
)

const (
	defaultConcurrency     = 4
	defaultShutdownTimeout = 30 * time.Second
	receiveBackoff         = 2 * time.Second
)

// Runner pulls deliveries from the queue and hands them to the processor.
// A nil processing error acknowledges the delivery; anything else leaves it
// for redelivery after the visibility timeout.
type Runner struct {
	Consumer        queue.Consumer
	Processor       *jobs.Processor
	Concurrency     int
	ShutdownTimeout time.Duration
}

// Run consumes until the context is cancelled, then waits for in-flight jobs
// up to the shutdown timeout.
func (r *Runner) Run(ctx context.Context) {
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	shutdownTimeout := r.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	telemetry.Info("worker.started", map[string]any{
		"concurrency": concurrency,
	})

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		deliveries, err := r.Consumer.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Error("worker.receive", map[string]any{
				"error": err.Error(),
			})
			select {
			case <-time.After(receiveBackoff):
			case <-ctx.Done():
				break pollLoop
			}
			continue
		}

		for _, delivery := range deliveries {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(d queue.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				r.handle(ctx, d)
			}(delivery)
		}
	}

	telemetry.Info("worker.shutdown", map[string]any{
		"timeout": shutdownTimeout.String(),
	})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", nil)
	}
}

func (r *Runner) handle(ctx context.Context, delivery queue.Delivery) {
	msg, err := queue.DecodeMessage([]byte(delivery.Body))
	if err != nil {
		// Malformed payloads never become processable; drop them.
		telemetry.Error("worker.decode_failed", map[string]any{
			"receipt":  delivery.Receipt,
			"body_len": len(delivery.Body),
			"error":    err.Error(),
		})
		r.ack(ctx, delivery, "")
		return
	}

	telemetry.Info("worker.received", map[string]any{
		"request_id":    msg.RequestID,
		"job_id":        msg.JobID,
		"receive_count": delivery.ReceiveCount,
	})

	if err := r.Processor.Process(ctx, msg); err != nil {
		// Leave unacked so the queue redelivers after the visibility window.
		telemetry.Error("worker.process_failed", map[string]any{
			"request_id":    msg.RequestID,
			"job_id":        msg.JobID,
			"receive_count": delivery.ReceiveCount,
			"error":         err.Error(),
		})
		return
	}

	r.ack(ctx, delivery, msg.JobID)
}

func (r *Runner) ack(ctx context.Context, delivery queue.Delivery, jobID string) {
	if err := r.Consumer.Ack(ctx, delivery.Receipt); err != nil {
		telemetry.Error("worker.ack_failed", map[string]any{
			"job_id": jobID,
			"error":  err.Error(),
		})
	}
}
