package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tenantarmor-backend/internal/llm"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient("test-key", "gpt-4.1", "text-embedding-ada-002")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	c.baseURL = server.URL
	return c
}

func TestAnalyzeDocumentParsesChoices(t *testing.T) {
	want := `{"summary":"ok","overallSeverity":"Low","clauses":[]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format")
		}
		if len(req.Messages) != 3 {
			t.Errorf("expected 3 prompt messages got %d", len(req.Messages))
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": want}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	raw, err := c.AnalyzeDocument(context.Background(), llm.AnalyzeInput{
		DocumentText:  "lease text",
		DocumentClass: "lease",
		Jurisdiction:  "CA",
	})
	if err != nil {
		t.Fatalf("analyze document: %v", err)
	}
	if string(raw) != want {
		t.Fatalf("got %s want %s", raw, want)
	}
}

func TestAnalyzeDocumentRejectsNonJSONContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Sorry, I cannot help."}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	if _, err := c.AnalyzeDocument(context.Background(), llm.AnalyzeInput{DocumentClass: "lease"}); err == nil {
		t.Fatalf("expected error for non-JSON content")
	}
}

func TestAnalyzeDocumentSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"error": map[string]string{"message": "rate limited", "type": "rate_limit_error"},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.AnalyzeDocument(context.Background(), llm.AnalyzeInput{DocumentClass: "lease"})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected surfaced API error, got %v", err)
	}
}

func TestStreamChatEmitsDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			t.Errorf("expected stream flag")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{"Your ", "lease ", "says..."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := newTestClient(t, server)
	var got strings.Builder
	err := c.StreamChat(context.Background(), llm.ChatInput{
		System:   "system prompt",
		Messages: []llm.ChatMessage{{Role: "user", Content: "what does my lease say?"}},
	}, func(chunk string) error {
		got.WriteString(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("stream chat: %v", err)
	}
	if got.String() != "Your lease says..." {
		t.Fatalf("unexpected streamed content %q", got.String())
	}
}

func TestStreamChatStopsWhenEmitFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := newTestClient(t, server)
	emitted := 0
	err := c.StreamChat(context.Background(), llm.ChatInput{}, func(chunk string) error {
		emitted++
		return fmt.Errorf("client went away")
	})
	if err == nil || !strings.Contains(err.Error(), "client went away") {
		t.Fatalf("expected emit error to propagate, got %v", err)
	}
	if emitted != 1 {
		t.Fatalf("expected streaming to stop after first emit failure, emitted %d", emitted)
	}
}

func TestEmbedReturnsVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "text-embedding-ada-002" {
			t.Errorf("unexpected embedding model %q", req.Model)
		}

		resp := map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2, 0.3}, "index": 0},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	vec, err := c.Embed(context.Background(), "security deposit rules")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Fatalf("unexpected embedding %v", vec)
	}
}
