package domain

import "time"

// ScheduleState is the singleton record describing the digest
// schedule. NextRun and LastRun are nil until the scheduler has been
// armed or has completed a run.
type ScheduleState struct {
	Enabled        bool       `db:"enabled"`
	FrequencyHours int        `db:"frequency_hours"`
	NextRun        *time.Time `db:"next_run"`
	LastRun        *time.Time `db:"last_run"`
}

// RunStats summarizes one completed pipeline run.
type RunStats struct {
	Trigger     string
	Articles    int
	Sources     int
	DigestID    string
	EmailSent   bool
	FailedStage string
	Duration    time.Duration
}
