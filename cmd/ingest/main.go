package main

// Load knowledge-base passages into the vector index:
//   go run ./cmd/ingest -file knowledge/ca_tenant_law.jsonl

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tenantarmor-backend/internal/bootstrap"
	"tenantarmor-backend/internal/shared/config"
)

func main() {
	filePath := flag.String("file", "", "Path to a JSONL file of knowledge entries")
	flag.Parse()

	if *filePath == "" {
		log.Fatal("-file is required")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	f, err := os.Open(*filePath)
	if err != nil {
		log.Fatalf("open %s: %v", *filePath, err)
	}
	defer f.Close()

	stats, err := app.Ingester.IngestJSONL(ctx, f)
	if err != nil {
		log.Fatalf("ingest: %v", err)
	}
	log.Printf("ingest done total=%d ingested=%d skipped=%d failed=%d",
		stats.Total, stats.Ingested, stats.Skipped, stats.Failed)
}
