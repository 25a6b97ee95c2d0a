package chat

import (
	"context"
	"fmt"
	"strings"

	"tenantarmor-backend/internal/jobs"
	"tenantarmor-backend/internal/llm"
	"tenantarmor-backend/internal/shared/metrics"
	"tenantarmor-backend/internal/shared/telemetry"
	"tenantarmor-backend/internal/vector"
)

// maxContextTextLength bounds the assembled context text. The budget is split
// evenly between the document digest and retrieved general knowledge.
const maxContextTextLength = 4000

const defaultTopK = 3

// generalKnowledgeUnavailable is inserted when the knowledge index cannot be
// reached, so the model knows not to claim jurisdiction-specific authority.
const generalKnowledgeUnavailable = "(general knowledge unavailable)"

// Assembler builds the context block for a chat turn: the document digest
// plus knowledge-base passages retrieved for the tenant's question.
type Assembler struct {
	LLM   llm.Client
	Index vector.Index
	TopK  int
}

func (a *Assembler) topK() int {
	if a.TopK > 0 {
		return a.TopK
	}
	return defaultTopK
}

// BuildContext assembles the context text for one question about a job.
// An embedding failure is fatal. A knowledge-index failure degrades the
// context instead of failing the chat.
func (a *Assembler) BuildContext(ctx context.Context, job jobs.AnalysisJob, question string) (string, error) {
	half := maxContextTextLength / 2

	docSection := truncateAtWord(BuildDocumentDigest(job), half)

	generalSection := generalKnowledgeUnavailable
	if a.Index != nil {
		embedding, err := a.LLM.Embed(ctx, question)
		if err != nil {
			return "", fmt.Errorf("embed question: %w", err)
		}

		results, err := a.Index.Search(ctx, embedding, job.Jurisdiction, a.topK())
		if err != nil {
			metrics.IncChatVectorFallback()
			telemetry.Warn("chat.vector_fallback", map[string]any{
				"job_id":       job.ID,
				"jurisdiction": job.Jurisdiction,
				"error":        err.Error(),
			})
		} else if len(results) > 0 {
			generalSection = truncateAtWord(joinPassages(results), half)
		} else {
			generalSection = "(no matching knowledge found)"
		}
	}

	var b strings.Builder
	b.WriteString("DOCUMENT CONTEXT:\n")
	if docSection != "" {
		b.WriteString(docSection)
	} else {
		b.WriteString("(no analysis available)")
	}
	b.WriteString("\n\nGENERAL KNOWLEDGE:\n")
	b.WriteString(generalSection)
	return b.String(), nil
}

func joinPassages(results []vector.Result) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if r.Entry.Topic != "" {
			b.WriteString("[")
			b.WriteString(r.Entry.Topic)
			b.WriteString("] ")
		}
		b.WriteString(strings.TrimSpace(r.Entry.Text))
	}
	return b.String()
}
