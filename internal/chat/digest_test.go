package chat

import (
	"strings"
	"testing"

	"tenantarmor-backend/internal/jobs"
)

func leaseJob(result map[string]any) jobs.AnalysisJob {
	return jobs.AnalysisJob{
		ID:            "job-1",
		OwnerID:       "user-1",
		DocumentClass: jobs.ClassLease,
		Jurisdiction:  "CA",
		Status:        jobs.StatusComplete,
		Result:        result,
	}
}

func TestTruncateAtWordNeverSplitsWords(t *testing.T) {
	s := "the quick brown fox jumps over the lazy dog"

	out := truncateAtWord(s, 15)
	if !strings.HasSuffix(out, "...") {
		t.Fatalf("expected ellipsis marker, got %q", out)
	}
	body := strings.TrimSuffix(out, "...")
	if len(body) > 15 {
		t.Fatalf("truncated body %q exceeds limit", body)
	}
	for _, word := range strings.Fields(body) {
		if !strings.Contains(s, word) {
			t.Fatalf("word %q was split", word)
		}
	}

	// Deterministic: same input, same output.
	if again := truncateAtWord(s, 15); again != out {
		t.Fatalf("truncation not deterministic: %q vs %q", out, again)
	}

	// Under the limit the string is untouched.
	if untouched := truncateAtWord("short", 100); untouched != "short" {
		t.Fatalf("short input modified: %q", untouched)
	}
}

func TestBuildDocumentDigestLease(t *testing.T) {
	result := map[string]any{
		"summary":         "A one-year lease with a steep late fee and a broad entry clause.",
		"overallSeverity": "High",
		"clauses": []any{
			map[string]any{
				"title": "Late Fees",
				"issues": []any{
					map[string]any{"description": "Fee of $150 per day likely exceeds the statutory cap for this state", "severity": "High"},
				},
			},
			map[string]any{"title": "Entry", "issues": []any{}},
			map[string]any{"title": "C3"},
			map[string]any{"title": "C4"},
			map[string]any{"title": "C5"},
			map[string]any{"title": "C6 beyond the cap"},
		},
		"actionableInsights": map[string]any{
			"overallRecommendation": "Negotiate the late fee down before signing.",
		},
	}

	digest := BuildDocumentDigest(leaseJob(result))
	if !strings.Contains(digest, "Overall severity: High") {
		t.Fatalf("digest missing severity: %q", digest)
	}
	if !strings.Contains(digest, "Late Fees") || !strings.Contains(digest, "Entry") {
		t.Fatalf("digest missing clause titles: %q", digest)
	}
	if strings.Contains(digest, "C6 beyond the cap") {
		t.Fatalf("digest must cap clause lines at %d", maxClauseLines)
	}
	if !strings.Contains(digest, "Recommendation: Negotiate the late fee") {
		t.Fatalf("digest missing recommendation: %q", digest)
	}
	// The issue snippet obeys its own budget.
	for _, line := range strings.Split(digest, "\n") {
		if strings.HasPrefix(line, "- Late Fees: ") {
			snippet := strings.TrimPrefix(line, "- Late Fees: ")
			if len(strings.TrimSuffix(snippet, "...")) > issueSnippetBudget {
				t.Fatalf("issue snippet over budget: %q", snippet)
			}
		}
	}
}

func TestBuildDocumentDigestBudgets(t *testing.T) {
	result := map[string]any{
		"summary":         strings.Repeat("very long summary text ", 100),
		"overallSeverity": "Low",
		"actionableInsights": map[string]any{
			"overallRecommendation": strings.Repeat("long recommendation ", 100),
		},
	}

	digest := BuildDocumentDigest(leaseJob(result))
	for _, line := range strings.Split(digest, "\n") {
		if strings.HasPrefix(line, "Summary: ") {
			if len(line) > summaryBudget+len("Summary: ")+3 {
				t.Fatalf("summary line over budget: %d bytes", len(line))
			}
		}
		if strings.HasPrefix(line, "Recommendation: ") {
			if len(line) > recommendationBudget+len("Recommendation: ")+3 {
				t.Fatalf("recommendation line over budget: %d bytes", len(line))
			}
		}
	}
}

func TestBuildDocumentDigestEviction(t *testing.T) {
	job := jobs.AnalysisJob{
		DocumentClass: jobs.ClassEviction,
		Result: map[string]any{
			"noticeType": "3-Day Notice to Pay Rent or Quit",
			"deadline":   "2026-09-01",
			"urgency":    "High",
		},
	}
	digest := BuildDocumentDigest(job)
	if !strings.Contains(digest, "3-Day Notice") || !strings.Contains(digest, "2026-09-01") {
		t.Fatalf("eviction digest missing notice facts: %q", digest)
	}
}

func TestBuildDocumentDigestEmptyResult(t *testing.T) {
	if digest := BuildDocumentDigest(jobs.AnalysisJob{}); digest != "" {
		t.Fatalf("expected empty digest for missing result, got %q", digest)
	}
}
