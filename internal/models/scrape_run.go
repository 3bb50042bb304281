package models

import (
	"database/sql"
	"time"
)

// Run statuses recorded in the scrape_runs audit table.
const (
	RunStatusRunning     = "running"
	RunStatusCompleted   = "completed"
	RunStatusPartial     = "partial"
	RunStatusBlockedSkip = "blocked_skip"
	RunStatusFailed      = "failed"
)

// ScrapeRun is the append-only audit record of one reconciliation run.
// Created when the run starts, finalized when it ends, never mutated after.
type ScrapeRun struct {
	ID         string       `db:"id"` // uuid
	StartedAt  time.Time    `db:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at"`
	Status     string       `db:"status"`

	EventsFound     int `db:"events_found"`
	EventsAdded     int `db:"events_added"`
	EventsUpdated   int `db:"events_updated"`
	EventsCancelled int `db:"events_cancelled"`
	FightsAdded     int `db:"fights_added"`
	FightsUpdated   int `db:"fights_updated"`
	FightsRemoved   int `db:"fights_removed"`
	FightersAdded   int `db:"fighters_added"`

	ErrorMessage sql.NullString `db:"error_message"`
}
