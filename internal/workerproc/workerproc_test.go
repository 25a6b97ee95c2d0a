package workerproc

import (
	"context"
	"testing"
	"time"

	"tenantarmor-backend/internal/jobs"
	"tenantarmor-backend/internal/llm"
	"tenantarmor-backend/internal/queue"
)

func TestRunnerProcessesAndAcks(t *testing.T) {
	repo := jobs.NewMemoryRepo()
	q := queue.NewMemoryQueue()
	svc := &jobs.Service{Repo: repo, Queue: q}

	job, err := svc.Submit(context.Background(), jobs.SubmitInput{
		OwnerID:       "user-1",
		DocumentClass: jobs.ClassLease,
		ExtractedText: "THIS LEASE AGREEMENT...",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	runner := &Runner{
		Consumer:        q,
		Processor:       &jobs.Processor{Repo: repo, LLM: llm.PlaceholderClient{}},
		Concurrency:     1,
		ShutdownTimeout: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	// The placeholder client fails the analyze phase, so the job lands in a
	// terminal state and the delivery is acknowledged.
	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := repo.GetByID(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if jobs.IsTerminal(got.Status) {
			if got.Status != jobs.StatusFailed {
				t.Fatalf("expected FAILED, got %s", got.Status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never reached a terminal state, status=%s", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}

func TestRunnerDropsMalformedPayload(t *testing.T) {
	q := queue.NewMemoryQueue()
	runner := &Runner{
		Consumer:    q,
		Processor:   &jobs.Processor{Repo: jobs.NewMemoryRepo(), LLM: llm.PlaceholderClient{}},
		Concurrency: 1,
	}

	delivery := queue.Delivery{Body: "{not json", Receipt: "r-1", ReceiveCount: 1}
	// Seed the inflight map the way Receive would.
	if err := q.Send(context.Background(), queue.Message{JobID: "ignored"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	deliveries, err := q.Receive(context.Background())
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	delivery.Receipt = deliveries[0].Receipt

	runner.handle(context.Background(), delivery)

	if err := q.Ack(context.Background(), delivery.Receipt); err == nil {
		t.Fatal("malformed delivery must already be acknowledged")
	}
}
