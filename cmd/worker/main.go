package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"tenantarmor-backend/internal/bootstrap"
	"tenantarmor-backend/internal/queue"
	"tenantarmor-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	// After a crash, deliveries can be stranded on the Redis pending list.
	if rq, ok := app.Consumer.(*queue.RedisQueue); ok {
		requeued, err := rq.RequeuePending(ctx)
		if err != nil {
			log.Printf("requeue pending: %v", err)
		} else if requeued > 0 {
			log.Printf("requeued %d pending deliveries", requeued)
		}
	}

	log.Printf("worker starting backend=%s concurrency=%d", cfg.QueueBackend, cfg.WorkerConcurrency)
	app.Worker.Run(ctx)
}
