package openai

import (
	"strings"

	"tenantarmor-backend/internal/llm"
)

// Message represents an OpenAI chat message.
type Message struct {
	Role    string
	Content string
}

const (
	systemPromptAnalysis = "You are a tenant-rights document analysis engine. Respond with JSON only. No markdown. Never omit required keys. Output must match the schema exactly."
	systemPromptInsights = "You are a tenant advisory engine. Respond with JSON only. No markdown. Output must match the schema exactly."
)

// BuildAnalysisPrompt creates the chat messages for a document analysis request.
func BuildAnalysisPrompt(input llm.AnalyzeInput) []Message {
	template, _ := llm.AnalysisPromptTemplate(input.DocumentClass)
	developer := llm.RenderJurisdiction(template, input.Jurisdiction)

	return []Message{
		{Role: "system", Content: systemPromptAnalysis},
		{Role: "developer", Content: developer},
		{Role: "user", Content: buildDocumentPrompt(input.DocumentText)},
	}
}

// BuildInsightsPrompt creates the chat messages for an insight generation
// request. The user turn carries the analysis digest rather than the document.
func BuildInsightsPrompt(input llm.InsightsInput) []Message {
	developer := llm.RenderJurisdiction(llm.InsightsPromptTemplate(), input.Jurisdiction)

	return []Message{
		{Role: "system", Content: systemPromptInsights},
		{Role: "developer", Content: developer},
		{Role: "user", Content: "Analysis digest:\n\n" + strings.TrimSpace(input.Context)},
	}
}

func buildDocumentPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Document text:\n\n")
	b.WriteString(strings.TrimSpace(text))
	return b.String()
}
