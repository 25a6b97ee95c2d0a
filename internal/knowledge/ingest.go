// Package knowledge loads tenant-law reference passages into the vector index
// used for chat retrieval. Entries arrive as JSON Lines, one passage per line.
package knowledge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"tenantarmor-backend/internal/llm"
	"tenantarmor-backend/internal/shared/telemetry"
	"tenantarmor-backend/internal/vector"
)

// Long statutes blow the embedding budget and dilute retrieval; ingest rejects
// them instead of silently truncating.
const maxEntryTextLength = 8000

// scanner buffer for long single-line passages
const maxLineBytes = 1 << 20

// Entry is one knowledge-base passage as it appears in the JSONL source file.
type Entry struct {
	ID           string `json:"id,omitempty"`
	Text         string `json:"text"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Topic        string `json:"topic,omitempty"`
	Source       string `json:"source,omitempty"`
}

// Stats summarizes an ingestion run.
type Stats struct {
	Total     int
	Ingested  int
	Skipped   int
	Failed    int
	StartTime time.Time
	EndTime   time.Time
}

// Ingester embeds knowledge entries and writes them to the vector index.
type Ingester struct {
	LLM   llm.Client
	Index vector.Index
}

// NewIngester constructs an Ingester.
func NewIngester(client llm.Client, index vector.Index) *Ingester {
	return &Ingester{LLM: client, Index: index}
}

// IngestJSONL reads newline-delimited JSON entries and upserts each one into
// the index. Malformed or oversized lines are counted and skipped so one bad
// entry does not abort a bulk load; embedding or index failures count as
// failed entries for the same reason.
func (in *Ingester) IngestJSONL(ctx context.Context, r io.Reader) (Stats, error) {
	stats := Stats{StartTime: time.Now()}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		stats.Total++

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			stats.Skipped++
			telemetry.Warn("knowledge.skip", map[string]any{
				"line":   lineNo,
				"reason": "invalid json",
			})
			continue
		}
		if strings.TrimSpace(entry.Text) == "" {
			stats.Skipped++
			telemetry.Warn("knowledge.skip", map[string]any{
				"line":   lineNo,
				"reason": "empty text",
			})
			continue
		}
		if len(entry.Text) > maxEntryTextLength {
			stats.Skipped++
			telemetry.Warn("knowledge.skip", map[string]any{
				"line":   lineNo,
				"reason": "text too long",
				"length": len(entry.Text),
			})
			continue
		}

		if err := in.ingestEntry(ctx, entry); err != nil {
			stats.Failed++
			telemetry.Error("knowledge.entry", map[string]any{
				"line":  lineNo,
				"id":    entry.ID,
				"error": err.Error(),
			})
			continue
		}
		stats.Ingested++
	}
	if err := scanner.Err(); err != nil {
		stats.EndTime = time.Now()
		return stats, fmt.Errorf("read knowledge entries: %w", err)
	}

	stats.EndTime = time.Now()
	telemetry.Info("knowledge.ingest", map[string]any{
		"total":       stats.Total,
		"ingested":    stats.Ingested,
		"skipped":     stats.Skipped,
		"failed":      stats.Failed,
		"duration_ms": stats.EndTime.Sub(stats.StartTime).Milliseconds(),
	})
	return stats, nil
}

func (in *Ingester) ingestEntry(ctx context.Context, entry Entry) error {
	embedding, err := in.LLM.Embed(ctx, entry.Text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	id := entry.ID
	if id == "" {
		id = uuid.NewString()
	}

	err = in.Index.Upsert(ctx, vector.Entry{
		ID:           id,
		Text:         entry.Text,
		Jurisdiction: strings.ToUpper(strings.TrimSpace(entry.Jurisdiction)),
		Topic:        entry.Topic,
		Source:       entry.Source,
	}, embedding)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}
