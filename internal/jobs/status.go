package jobs

// Job lifecycle statuses. A job only ever moves forward through these.
const (
	StatusQueued          = "QUEUED"
	StatusExtracting      = "EXTRACTING"
	StatusAnalyzing       = "ANALYZING"
	StatusInsightsPending = "INSIGHTS_PENDING"
	StatusComplete        = "COMPLETE"
	StatusPartialComplete = "PARTIAL_COMPLETE"
	StatusFailed          = "FAILED"
)

var statusRank = map[string]int{
	StatusQueued:          0,
	StatusExtracting:      1,
	StatusAnalyzing:       2,
	StatusInsightsPending: 3,
	StatusComplete:        4,
	StatusPartialComplete: 4,
	StatusFailed:          4,
}

var transitions = map[string][]string{
	StatusQueued:          {StatusExtracting, StatusFailed},
	StatusExtracting:      {StatusAnalyzing, StatusFailed},
	StatusAnalyzing:       {StatusInsightsPending, StatusFailed},
	StatusInsightsPending: {StatusComplete, StatusPartialComplete},
	StatusComplete:        nil,
	StatusPartialComplete: nil,
	StatusFailed:          nil,
}

// IsValidStatus reports whether s is a known job status.
func IsValidStatus(s string) bool {
	_, ok := statusRank[s]
	return ok
}

// IsTerminal reports whether a job in this status will never change again.
func IsTerminal(status string) bool {
	return status == StatusComplete || status == StatusPartialComplete || status == StatusFailed
}

// CanTransition reports whether the state machine permits moving from one
// status directly to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusRank returns the monotone ordering position of a status. Terminal
// statuses share the top rank. Unknown statuses rank below everything.
func StatusRank(status string) int {
	rank, ok := statusRank[status]
	if !ok {
		return -1
	}
	return rank
}
