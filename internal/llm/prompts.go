package llm

import (
	_ "embed"
	"strings"
)

var (
	//go:embed prompts/lease_v1.txt
	leasePromptV1 string
	//go:embed prompts/eviction_v1.txt
	evictionPromptV1 string
	//go:embed prompts/insights_v1.txt
	insightsPromptV1 string
	//go:embed prompts/chat_v1.txt
	chatPromptV1 string
)

// AnalysisPromptTemplate returns the analysis template for a document class
// and whether the class was recognized. Unknown classes fall back to the
// lease template.
func AnalysisPromptTemplate(documentClass string) (string, bool) {
	switch documentClass {
	case "lease":
		return leasePromptV1, true
	case "eviction":
		return evictionPromptV1, true
	default:
		return leasePromptV1, false
	}
}

// InsightsPromptTemplate returns the actionable-insights template.
func InsightsPromptTemplate() string {
	return insightsPromptV1
}

// ChatSystemPrompt renders the chat system prompt with the assembled context
// block substituted in.
func ChatSystemPrompt(contextBlock string) string {
	return strings.ReplaceAll(chatPromptV1, "{{CONTEXT}}", contextBlock)
}

// RenderJurisdiction fills the jurisdiction placeholder in a template.
// An empty jurisdiction renders as a generic fallback so prompts never ship
// with a dangling placeholder.
func RenderJurisdiction(template, jurisdiction string) string {
	j := strings.TrimSpace(jurisdiction)
	if j == "" {
		j = "the tenant's jurisdiction"
	}
	return strings.ReplaceAll(template, "{{JURISDICTION}}", j)
}
