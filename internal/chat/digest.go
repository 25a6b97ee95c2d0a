package chat

import (
	"strings"

	"tenantarmor-backend/internal/jobs"
)

// Per-section budgets for the document digest. The digest has to stay small
// enough to share the context window with retrieved knowledge and history.
const (
	summaryBudget        = 500
	recommendationBudget = 300
	maxClauseLines       = 5
	issueSnippetBudget   = 50
)

// truncateAtWord cuts s to at most limit bytes without splitting a word, and
// marks the cut with an ellipsis. The same input always yields the same
// output.
func truncateAtWord(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " .,;:") + "..."
}

// BuildDocumentDigest condenses a finished analysis into the document section
// of the chat context: summary, recommendation, and the first few flagged
// clauses with a short issue snippet each.
func BuildDocumentDigest(job jobs.AnalysisJob) string {
	if job.Result == nil {
		return ""
	}
	var b strings.Builder

	switch job.DocumentClass {
	case jobs.ClassEviction:
		writeLine(&b, "Notice type", stringField(job.Result, "noticeType"))
		writeLine(&b, "Deadline", stringField(job.Result, "deadline"))
		writeLine(&b, "Amount due", stringField(job.Result, "amountDue"))
		writeLine(&b, "Urgency", stringField(job.Result, "urgency"))
	default:
		writeLine(&b, "Summary", truncateAtWord(stringField(job.Result, "summary"), summaryBudget))
		writeLine(&b, "Overall severity", stringField(job.Result, "overallSeverity"))
		writeClauseLines(&b, job.Result)
	}

	if rec := insightsRecommendation(job.Result); rec != "" {
		writeLine(&b, "Recommendation", truncateAtWord(rec, recommendationBudget))
	}
	return strings.TrimSpace(b.String())
}

func writeClauseLines(b *strings.Builder, result map[string]any) {
	clauses, ok := result["clauses"].([]any)
	if !ok || len(clauses) == 0 {
		return
	}
	b.WriteString("Flagged clauses:\n")
	for i, rawClause := range clauses {
		if i >= maxClauseLines {
			break
		}
		clause, ok := rawClause.(map[string]any)
		if !ok {
			continue
		}
		title := stringField(clause, "title")
		if title == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(title)
		if snippet := firstIssueSnippet(clause); snippet != "" {
			b.WriteString(": ")
			b.WriteString(snippet)
		}
		b.WriteString("\n")
	}
}

func firstIssueSnippet(clause map[string]any) string {
	issues, ok := clause["issues"].([]any)
	if !ok || len(issues) == 0 {
		return ""
	}
	issue, ok := issues[0].(map[string]any)
	if !ok {
		return ""
	}
	return truncateAtWord(stringField(issue, "description"), issueSnippetBudget)
}

func insightsRecommendation(result map[string]any) string {
	insights, ok := result["actionableInsights"].(map[string]any)
	if !ok {
		return ""
	}
	return stringField(insights, "overallRecommendation")
}

func writeLine(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
