package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Client abstracts LLM providers for document analysis, insight generation,
// chat streaming, and embeddings.
type Client interface {
	AnalyzeDocument(ctx context.Context, input AnalyzeInput) (json.RawMessage, error)
	GenerateInsights(ctx context.Context, input InsightsInput) (json.RawMessage, error)
	StreamChat(ctx context.Context, input ChatInput, emit func(chunk string) error) error
	Embed(ctx context.Context, text string) ([]float32, error)
}

// AnalyzeInput captures the inputs for the structured analysis call.
type AnalyzeInput struct {
	DocumentText  string
	DocumentClass string
	Jurisdiction  string
	PromptVersion string
}

// InsightsInput captures the inputs for the actionable-insights call. Context
// is the condensed digest of the prior analysis, not the full document.
type InsightsInput struct {
	Context       string
	DocumentClass string
	Jurisdiction  string
	PromptVersion string
}

// ChatMessage is one turn of a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatInput captures the inputs for a streamed chat completion.
type ChatInput struct {
	System   string
	Messages []ChatMessage
}

// ErrTimeout marks a provider call that exceeded its deadline. Callers use it
// to distinguish transient failures from schema failures.
var ErrTimeout = errors.New("llm request timeout")

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

func (PlaceholderClient) AnalyzeDocument(ctx context.Context, input AnalyzeInput) (json.RawMessage, error) {
	_ = ctx
	_ = input
	return nil, ErrNotImplemented
}

func (PlaceholderClient) GenerateInsights(ctx context.Context, input InsightsInput) (json.RawMessage, error) {
	_ = ctx
	_ = input
	return nil, ErrNotImplemented
}

func (PlaceholderClient) StreamChat(ctx context.Context, input ChatInput, emit func(chunk string) error) error {
	_ = ctx
	_ = input
	_ = emit
	return ErrNotImplemented
}

func (PlaceholderClient) Embed(ctx context.Context, text string) ([]float32, error) {
	_ = ctx
	_ = text
	return nil, ErrNotImplemented
}
