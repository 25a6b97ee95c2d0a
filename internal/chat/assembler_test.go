package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"tenantarmor-backend/internal/jobs"
	"tenantarmor-backend/internal/llm"
	"tenantarmor-backend/internal/vector"
)

type fakeLLM struct {
	embedFn  func(ctx context.Context, text string) ([]float32, error)
	streamFn func(ctx context.Context, input llm.ChatInput, emit func(string) error) error
}

func (f *fakeLLM) AnalyzeDocument(ctx context.Context, input llm.AnalyzeInput) (json.RawMessage, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeLLM) GenerateInsights(ctx context.Context, input llm.InsightsInput) (json.RawMessage, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeLLM) StreamChat(ctx context.Context, input llm.ChatInput, emit func(string) error) error {
	if f.streamFn == nil {
		return fmt.Errorf("not used")
	}
	return f.streamFn(ctx, input, emit)
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.embedFn == nil {
		return []float32{1, 0}, nil
	}
	return f.embedFn(ctx, text)
}

type failingIndex struct{}

func (failingIndex) Upsert(ctx context.Context, entry vector.Entry, embedding []float32) error {
	return fmt.Errorf("not used")
}

func (failingIndex) Search(ctx context.Context, embedding []float32, jurisdiction string, topK int) ([]vector.Result, error) {
	return nil, fmt.Errorf("qdrant search: connection refused")
}

func completedJob() jobs.AnalysisJob {
	return leaseJob(map[string]any{
		"summary":         "Standard lease, one risky entry clause.",
		"overallSeverity": "Medium",
	})
}

func TestBuildContextIncludesRetrievedKnowledge(t *testing.T) {
	ctx := context.Background()
	idx := vector.NewMemoryIndex()
	_ = idx.Upsert(ctx, vector.Entry{
		ID:           "e1",
		Text:         "California requires 24 hour written notice before entry.",
		Jurisdiction: "CA",
		Topic:        "entry",
	}, []float32{1, 0})
	_ = idx.Upsert(ctx, vector.Entry{
		ID:           "e2",
		Text:         "New York rules differ.",
		Jurisdiction: "NY",
	}, []float32{1, 0})

	a := &Assembler{LLM: &fakeLLM{}, Index: idx}
	block, err := a.BuildContext(ctx, completedJob(), "can my landlord enter without notice?")
	if err != nil {
		t.Fatalf("build context: %v", err)
	}

	if !strings.Contains(block, "DOCUMENT CONTEXT:") || !strings.Contains(block, "GENERAL KNOWLEDGE:") {
		t.Fatalf("missing sections: %q", block)
	}
	if !strings.Contains(block, "24 hour written notice") {
		t.Fatalf("retrieved passage missing: %q", block)
	}
	if strings.Contains(block, "New York rules differ") {
		t.Fatalf("jurisdiction filter leaked a foreign passage")
	}
	if !strings.Contains(block, "Standard lease, one risky entry clause.") {
		t.Fatalf("document digest missing: %q", block)
	}
}

func TestBuildContextDegradesOnVectorFailure(t *testing.T) {
	a := &Assembler{LLM: &fakeLLM{}, Index: failingIndex{}}

	block, err := a.BuildContext(context.Background(), completedJob(), "question")
	if err != nil {
		t.Fatalf("vector failure must degrade, not fail: %v", err)
	}
	if !strings.Contains(block, generalKnowledgeUnavailable) {
		t.Fatalf("degraded context missing unavailability marker: %q", block)
	}
	if !strings.Contains(block, "DOCUMENT CONTEXT:") {
		t.Fatalf("document section must survive vector failure")
	}
}

func TestBuildContextEmbedFailureIsFatal(t *testing.T) {
	a := &Assembler{
		LLM: &fakeLLM{
			embedFn: func(ctx context.Context, text string) ([]float32, error) {
				return nil, fmt.Errorf("openai embeddings status 500")
			},
		},
		Index: vector.NewMemoryIndex(),
	}

	if _, err := a.BuildContext(context.Background(), completedJob(), "question"); err == nil {
		t.Fatalf("embedding failure must be fatal")
	}
}

func TestBuildContextRespectsBudget(t *testing.T) {
	ctx := context.Background()
	idx := vector.NewMemoryIndex()
	_ = idx.Upsert(ctx, vector.Entry{
		ID:           "big",
		Text:         strings.Repeat("knowledge passage text ", 500),
		Jurisdiction: "CA",
	}, []float32{1, 0})

	job := leaseJob(map[string]any{
		"summary":         strings.Repeat("summary ", 1000),
		"overallSeverity": "Low",
	})

	a := &Assembler{LLM: &fakeLLM{}, Index: idx}
	block, err := a.BuildContext(ctx, job, "question")
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	// Section labels and ellipses add a little on top of the text budget.
	if len(block) > maxContextTextLength+100 {
		t.Fatalf("context block %d bytes blows the budget", len(block))
	}
}

func TestBuildContextWithoutIndex(t *testing.T) {
	a := &Assembler{LLM: &fakeLLM{}}
	block, err := a.BuildContext(context.Background(), completedJob(), "question")
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	if !strings.Contains(block, generalKnowledgeUnavailable) {
		t.Fatalf("missing index must mark general knowledge unavailable")
	}
}
