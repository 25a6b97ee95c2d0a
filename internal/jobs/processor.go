package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tenantarmor-backend/internal/llm"
	"tenantarmor-backend/internal/queue"
	"tenantarmor-backend/internal/shared/metrics"
	"tenantarmor-backend/internal/shared/telemetry"
)

// Processing phases, recorded on ErrorDetail so callers know where a job died.
const (
	PhaseExtract  = "extract"
	PhaseAnalyze  = "analyze"
	PhaseInsights = "insights"
)

// insightsContextLimit caps the analysis digest passed into the insights
// prompt so a large lease cannot blow up the second call.
const insightsContextLimit = 3500

// errTransitionLost means another worker already advanced the job. The
// delivery is acknowledged and processing stops.
var errTransitionLost = errors.New("status transition lost")

// Processor drives one dispatched job through the phase pipeline:
// payload validation, document analysis, insight generation.
type Processor struct {
	Repo Repo
	LLM  llm.Client
	Now  func() time.Time
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

// Process handles one delivery. A nil return acknowledges the message.
// Redeliveries of terminal jobs are acknowledged without any writes.
func (p *Processor) Process(ctx context.Context, msg queue.Message) error {
	startedAt := p.now()

	job, err := p.Repo.GetByID(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			telemetry.Warn("job.orphan_message", map[string]any{
				"request_id": msg.RequestID,
				"job_id":     msg.JobID,
			})
			return nil
		}
		return fmt.Errorf("load job %s: %w", msg.JobID, err)
	}

	if IsTerminal(job.Status) {
		metrics.IncJobRedelivered()
		telemetry.Info("job.redelivery_ignored", map[string]any{
			"request_id": msg.RequestID,
			"job_id":     job.ID,
			"status":     job.Status,
		})
		return nil
	}

	// Phase 1: payload validation.
	if err := p.transition(ctx, &job, StatusExtracting, msg.RequestID, nil, nil); err != nil {
		return ackIfLost(err)
	}
	if strings.TrimSpace(msg.ExtractedText) == "" {
		p.fail(ctx, &job, msg.RequestID, PhaseExtract, fmt.Errorf("validation: extracted text is empty"), startedAt)
		return nil
	}
	if msg.DocumentClass != ClassLease && msg.DocumentClass != ClassEviction {
		p.fail(ctx, &job, msg.RequestID, PhaseExtract, fmt.Errorf("validation: unknown document class %q", msg.DocumentClass), startedAt)
		return nil
	}

	// Phase 2: structured analysis.
	if err := p.transition(ctx, &job, StatusAnalyzing, msg.RequestID, nil, nil); err != nil {
		return ackIfLost(err)
	}
	analysisResult, err := p.analyze(ctx, msg)
	if err != nil {
		p.fail(ctx, &job, msg.RequestID, PhaseAnalyze, err, startedAt)
		return nil
	}

	// Phase 3: actionable insights. Failure here keeps the analysis.
	if err := p.transition(ctx, &job, StatusInsightsPending, msg.RequestID, nil, nil); err != nil {
		return ackIfLost(err)
	}
	insights, err := p.generateInsights(ctx, msg, analysisResult)
	if err != nil {
		code, _ := classifyFailure(err)
		detail := &ErrorDetail{
			Code:    code,
			Message: sanitizeError(err),
			Phase:   PhaseInsights,
		}
		if terr := p.transition(ctx, &job, StatusPartialComplete, msg.RequestID, analysisResult, detail); terr != nil {
			return ackIfLost(terr)
		}
		metrics.IncJobPartial()
		metrics.ObserveJobDurationMs(durationMs(startedAt, p.now()))
		return nil
	}

	analysisResult["actionableInsights"] = insights["actionableInsights"]
	if err := p.transition(ctx, &job, StatusComplete, msg.RequestID, analysisResult, nil); err != nil {
		return ackIfLost(err)
	}
	metrics.IncJobCompleted()
	metrics.ObserveJobDurationMs(durationMs(startedAt, p.now()))
	return nil
}

func (p *Processor) analyze(ctx context.Context, msg queue.Message) (map[string]any, error) {
	raw, err := p.LLM.AnalyzeDocument(ctx, llm.AnalyzeInput{
		DocumentText:  msg.ExtractedText,
		DocumentClass: msg.DocumentClass,
		Jurisdiction:  msg.Jurisdiction,
	})
	if err != nil {
		return nil, err
	}

	switch msg.DocumentClass {
	case ClassEviction:
		result, err := ParseEvictionResult(raw)
		if err != nil {
			return nil, err
		}
		return toResultMap(result)
	default:
		result, err := ParseLeaseResult(raw)
		if err != nil {
			return nil, err
		}
		return toResultMap(result)
	}
}

func (p *Processor) generateInsights(ctx context.Context, msg queue.Message, analysisResult map[string]any) (map[string]any, error) {
	raw, err := p.LLM.GenerateInsights(ctx, llm.InsightsInput{
		Context:       BuildInsightsContext(msg.DocumentClass, analysisResult),
		DocumentClass: msg.DocumentClass,
		Jurisdiction:  msg.Jurisdiction,
	})
	if err != nil {
		return nil, err
	}
	result, err := ParseInsightsResult(raw)
	if err != nil {
		return nil, err
	}
	return toResultMap(result)
}

func (p *Processor) transition(ctx context.Context, job *AnalysisJob, status, requestID string, result map[string]any, detail *ErrorDetail) error {
	prev := job.Status
	if err := p.Repo.UpdateStatus(ctx, job.ID, status, result, detail); err != nil {
		if errors.Is(err, ErrStaleTransition) {
			// Another worker advanced this job. Ack and walk away.
			metrics.IncJobRedelivered()
			telemetry.Warn("job.transition_lost", map[string]any{
				"request_id": requestID,
				"job_id":     job.ID,
				"from":       prev,
				"to":         status,
			})
			return errTransitionLost
		}
		return fmt.Errorf("update status %s: %w", status, err)
	}
	job.Status = status
	if result != nil {
		job.Result = result
	}
	if detail != nil {
		job.ErrorDetail = detail
	}
	telemetry.Info("job.status", map[string]any{
		"request_id":        requestID,
		"owner_id":          job.OwnerID,
		"job_id":            job.ID,
		"status":            status,
		"status_transition": prev + "->" + status,
	})
	return nil
}

func (p *Processor) fail(ctx context.Context, job *AnalysisJob, requestID, phase string, cause error, startedAt time.Time) {
	code, _ := classifyFailure(cause)
	detail := &ErrorDetail{
		Code:    code,
		Message: sanitizeError(cause),
		Phase:   phase,
	}
	if err := p.Repo.UpdateStatus(ctx, job.ID, StatusFailed, nil, detail); err != nil {
		telemetry.Error("job.fail_write", map[string]any{
			"request_id": requestID,
			"job_id":     job.ID,
			"error":      err.Error(),
			"cause":      sanitizeError(cause),
		})
	}
	prev := job.Status
	job.Status = StatusFailed
	job.ErrorDetail = detail
	metrics.IncJobFailed()
	metrics.ObserveJobDurationMs(durationMs(startedAt, p.now()))
	telemetry.Info("job.status", map[string]any{
		"request_id":        requestID,
		"owner_id":          job.OwnerID,
		"job_id":            job.ID,
		"status":            StatusFailed,
		"status_transition": prev + "->" + StatusFailed,
		"error_code":        code,
		"phase":             phase,
	})
}

// BuildInsightsContext condenses an analysis result into the digest fed to
// the insights prompt. Lease digests carry the summary, overall severity, and
// high-severity issue descriptions. Eviction digests carry the notice facts.
func BuildInsightsContext(documentClass string, result map[string]any) string {
	var b strings.Builder

	switch documentClass {
	case ClassEviction:
		writeField(&b, "Notice type", stringField(result, "noticeType"))
		writeField(&b, "Deadline", stringField(result, "deadline"))
		writeField(&b, "Amount due", stringField(result, "amountDue"))
		writeField(&b, "Urgency", stringField(result, "urgency"))
		writeList(&b, "Violations", stringListField(result, "violations"))
		writeList(&b, "Defenses", stringListField(result, "defenses"))
	default:
		writeField(&b, "Summary", stringField(result, "summary"))
		writeField(&b, "Overall severity", stringField(result, "overallSeverity"))
		writeList(&b, "High severity issues", highSeverityIssues(result))
	}

	return truncateContext(b.String(), insightsContextLimit)
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(label)
	b.WriteString(":\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func stringListField(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func highSeverityIssues(result map[string]any) []string {
	clauses, ok := result["clauses"].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, rawClause := range clauses {
		clause, ok := rawClause.(map[string]any)
		if !ok {
			continue
		}
		issues, ok := clause["issues"].([]any)
		if !ok {
			continue
		}
		for _, rawIssue := range issues {
			issue, ok := rawIssue.(map[string]any)
			if !ok {
				continue
			}
			if stringField(issue, "severity") != SeverityHigh {
				continue
			}
			if desc := stringField(issue, "description"); desc != "" {
				out = append(out, desc)
			}
		}
	}
	return out
}

func truncateContext(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func ackIfLost(err error) error {
	if errors.Is(err, errTransitionLost) {
		return nil
	}
	return err
}

func durationMs(startedAt, completedAt time.Time) float64 {
	return float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0
}
