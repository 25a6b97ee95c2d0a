package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity levels for clause issues and the overall document. The set is
// closed: anything else from the model is a schema mismatch, never coerced.
const (
	SeverityHigh   = "High"
	SeverityMedium = "Medium"
	SeverityLow    = "Low"
)

// Importance levels for next steps.
const (
	ImportanceHigh     = "High"
	ImportanceMedium   = "Medium"
	ImportanceConsider = "Consider"
)

// LeaseIssue is one problem found in a clause.
type LeaseIssue struct {
	Description    string `json:"description"`
	Severity       string `json:"severity"`
	Recommendation string `json:"recommendation"`
}

// LeaseClause is one flagged clause with its issues.
type LeaseClause struct {
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Issues []LeaseIssue `json:"issues"`
}

// LeaseResult is the validated analysis output for a lease.
type LeaseResult struct {
	Summary         string        `json:"summary"`
	OverallSeverity string        `json:"overallSeverity"`
	Clauses         []LeaseClause `json:"clauses"`
}

// EvictionResult is the validated analysis output for an eviction notice.
type EvictionResult struct {
	NoticeType string   `json:"noticeType"`
	Deadline   string   `json:"deadline"`
	AmountDue  string   `json:"amountDue,omitempty"`
	Violations []string `json:"violations"`
	Defenses   []string `json:"defenses"`
	Urgency    string   `json:"urgency"`
}

// NextStep is one prioritized action for the tenant.
type NextStep struct {
	Step       string `json:"step"`
	Importance string `json:"importance"`
	Details    string `json:"details,omitempty"`
}

// InsightsResult is the validated actionable-insights output.
type InsightsResult struct {
	ActionableInsights struct {
		OverallRecommendation string     `json:"overallRecommendation"`
		NextSteps             []NextStep `json:"nextSteps"`
	} `json:"actionableInsights"`
}

func validSeverity(s string) bool {
	return s == SeverityHigh || s == SeverityMedium || s == SeverityLow
}

func validImportance(s string) bool {
	return s == ImportanceHigh || s == ImportanceMedium || s == ImportanceConsider
}

// ParseLeaseResult validates a raw LLM output against the lease schema.
func ParseLeaseResult(raw json.RawMessage) (LeaseResult, error) {
	var result LeaseResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return LeaseResult{}, fmt.Errorf("llm output parse: %w", err)
	}
	if strings.TrimSpace(result.Summary) == "" {
		return LeaseResult{}, fmt.Errorf("llm output schema: summary is required")
	}
	if !validSeverity(result.OverallSeverity) {
		return LeaseResult{}, fmt.Errorf("llm output schema: overallSeverity %q outside closed severity set", result.OverallSeverity)
	}
	for i, clause := range result.Clauses {
		if strings.TrimSpace(clause.Title) == "" {
			return LeaseResult{}, fmt.Errorf("llm output schema: clause %d missing title", i)
		}
		for j, issue := range clause.Issues {
			if strings.TrimSpace(issue.Description) == "" {
				return LeaseResult{}, fmt.Errorf("llm output schema: clause %d issue %d missing description", i, j)
			}
			if !validSeverity(issue.Severity) {
				return LeaseResult{}, fmt.Errorf("llm output schema: clause %d issue %d severity %q outside closed severity set", i, j, issue.Severity)
			}
		}
	}
	if result.Clauses == nil {
		result.Clauses = []LeaseClause{}
	}
	return result, nil
}

// ParseEvictionResult validates a raw LLM output against the eviction schema.
func ParseEvictionResult(raw json.RawMessage) (EvictionResult, error) {
	var result EvictionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return EvictionResult{}, fmt.Errorf("llm output parse: %w", err)
	}
	if strings.TrimSpace(result.NoticeType) == "" {
		return EvictionResult{}, fmt.Errorf("llm output schema: noticeType is required")
	}
	if !validSeverity(result.Urgency) {
		return EvictionResult{}, fmt.Errorf("llm output schema: urgency %q outside closed severity set", result.Urgency)
	}
	if result.Violations == nil {
		result.Violations = []string{}
	}
	if result.Defenses == nil {
		result.Defenses = []string{}
	}
	return result, nil
}

// ParseInsightsResult validates a raw LLM output against the insights schema.
func ParseInsightsResult(raw json.RawMessage) (InsightsResult, error) {
	var result InsightsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return InsightsResult{}, fmt.Errorf("llm output parse: %w", err)
	}
	if strings.TrimSpace(result.ActionableInsights.OverallRecommendation) == "" {
		return InsightsResult{}, fmt.Errorf("llm output schema: overallRecommendation is required")
	}
	for i, step := range result.ActionableInsights.NextSteps {
		if strings.TrimSpace(step.Step) == "" {
			return InsightsResult{}, fmt.Errorf("llm output schema: nextSteps %d missing step", i)
		}
		if !validImportance(step.Importance) {
			return InsightsResult{}, fmt.Errorf("llm output schema: nextSteps %d importance %q outside closed importance set", i, step.Importance)
		}
	}
	if result.ActionableInsights.NextSteps == nil {
		result.ActionableInsights.NextSteps = []NextStep{}
	}
	return result, nil
}

// toResultMap converts a validated result struct into the map shape stored on
// the job record.
func toResultMap(v any) (map[string]any, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}
