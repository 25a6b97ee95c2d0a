package llm

import (
	"strings"
	"testing"
)

func TestAnalysisPromptTemplateSelection(t *testing.T) {
	lease, ok := AnalysisPromptTemplate("lease")
	if !ok {
		t.Fatalf("expected lease class to be recognized")
	}
	if !strings.Contains(lease, "overallSeverity") {
		t.Fatalf("lease template missing overallSeverity schema key")
	}

	eviction, ok := AnalysisPromptTemplate("eviction")
	if !ok {
		t.Fatalf("expected eviction class to be recognized")
	}
	if !strings.Contains(eviction, "noticeType") {
		t.Fatalf("eviction template missing noticeType schema key")
	}

	fallback, ok := AnalysisPromptTemplate("unknown")
	if ok {
		t.Fatalf("expected unknown class to be unrecognized")
	}
	if fallback != lease {
		t.Fatalf("expected unknown class to fall back to lease template")
	}
}

func TestRenderJurisdiction(t *testing.T) {
	template, _ := AnalysisPromptTemplate("lease")

	rendered := RenderJurisdiction(template, "CA")
	if strings.Contains(rendered, "{{JURISDICTION}}") {
		t.Fatalf("placeholder left in rendered prompt")
	}
	if !strings.Contains(rendered, "CA") {
		t.Fatalf("jurisdiction not substituted")
	}

	rendered = RenderJurisdiction(template, "  ")
	if !strings.Contains(rendered, "the tenant's jurisdiction") {
		t.Fatalf("blank jurisdiction should render the generic fallback")
	}
}

func TestChatSystemPrompt(t *testing.T) {
	prompt := ChatSystemPrompt("DOCUMENT CONTEXT:\nsummary here")
	if strings.Contains(prompt, "{{CONTEXT}}") {
		t.Fatalf("context placeholder left in chat prompt")
	}
	if !strings.Contains(prompt, "summary here") {
		t.Fatalf("context block not substituted")
	}
}
