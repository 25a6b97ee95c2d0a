package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"tenantarmor-backend/internal/llm"
	"tenantarmor-backend/internal/vector"
)

type fakeEmbedder struct {
	llm.PlaceholderClient
	embedFn func(ctx context.Context, text string) ([]float32, error)
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.embedFn != nil {
		return f.embedFn(ctx, text)
	}
	return []float32{1, 0, 0}, nil
}

func TestIngestJSONLUpsertsEntries(t *testing.T) {
	client := &fakeEmbedder{}
	index := vector.NewMemoryIndex()
	ingester := NewIngester(client, index)

	input := strings.Join([]string{
		`{"id":"ca-entry-1","text":"Landlords must give 24 hours notice before entry.","jurisdiction":"ca","topic":"entry"}`,
		``,
		`# comment line`,
		`{"text":"Security deposits must be returned within 21 days.","jurisdiction":"CA","topic":"deposits"}`,
	}, "\n")

	stats, err := ingester.IngestJSONL(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if stats.Total != 2 || stats.Ingested != 2 || stats.Skipped != 0 || stats.Failed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 embed calls, got %d", client.calls)
	}

	results, err := index.Search(context.Background(), []float32{1, 0, 0}, "CA", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 indexed entries, got %d", len(results))
	}
	for _, r := range results {
		if r.Entry.Jurisdiction != "CA" {
			t.Errorf("jurisdiction not normalized: %q", r.Entry.Jurisdiction)
		}
	}
}

func TestIngestJSONLSkipsBadLines(t *testing.T) {
	client := &fakeEmbedder{}
	ingester := NewIngester(client, vector.NewMemoryIndex())

	long, _ := json.Marshal(Entry{Text: strings.Repeat("x", maxEntryTextLength+1)})
	input := strings.Join([]string{
		`not json at all`,
		`{"text":""}`,
		string(long),
		`{"text":"valid passage","jurisdiction":"NY"}`,
	}, "\n")

	stats, err := ingester.IngestJSONL(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if stats.Total != 4 || stats.Ingested != 1 || stats.Skipped != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if client.calls != 1 {
		t.Fatalf("embed must only run for valid entries, got %d calls", client.calls)
	}
}

func TestIngestJSONLCountsEmbedFailures(t *testing.T) {
	client := &fakeEmbedder{
		embedFn: func(ctx context.Context, text string) ([]float32, error) {
			if strings.Contains(text, "broken") {
				return nil, fmt.Errorf("embeddings down")
			}
			return []float32{0, 1}, nil
		},
	}
	ingester := NewIngester(client, vector.NewMemoryIndex())

	input := strings.Join([]string{
		`{"text":"broken passage"}`,
		`{"text":"healthy passage"}`,
	}, "\n")

	stats, err := ingester.IngestJSONL(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if stats.Failed != 1 || stats.Ingested != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
