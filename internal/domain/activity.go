package domain

import "time"

// ActivitySeverity grades a log entry by impact.
type ActivitySeverity string

const (
	SeverityInfo    ActivitySeverity = "info"
	SeverityWarning ActivitySeverity = "warning"
	SeverityError   ActivitySeverity = "error"
)

// ActivityEntry is one append-only audit record. Entries are never
// mutated or deleted by the pipeline.
type ActivityEntry struct {
	Type      string
	Message   string
	Details   map[string]any
	Severity  ActivitySeverity
	CreatedAt time.Time
}
