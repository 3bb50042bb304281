package reconcile

import (
	"time"

	"fightsync/reconciler/internal/models"
)

// Run states, reported in logs when a step fails.
const (
	StateFetching      = "fetching"
	StateValidating    = "validating"
	StateMatching      = "matching"
	StateWriting       = "writing"
	StateLedgerPersist = "ledger_persist"
	StateBlockedSkip   = "blocked_skip"
)

// Per-event outcomes.
const (
	OutcomeOk      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// EventResult is the outcome of reconciling one scraped or persisted event.
// One failed event never aborts the run; the result carries the error.
type EventResult struct {
	EventID string
	Name    string
	Outcome string
	Reason  string // set for OutcomeSkipped
	Err     error  // set for OutcomeFailed
}

// Summary aggregates a whole reconciliation run.
type Summary struct {
	RunID   string
	Status  string
	Elapsed time.Duration

	EventsFound     int
	EventsAdded     int
	EventsUpdated   int
	EventsCancelled int
	FightsAdded     int
	FightsUpdated   int
	FightsRemoved   int
	FightersAdded   int

	SourcesBlocked []string
	SourcesFailed  []string
	Results        []EventResult
}

// Failed returns the results that carry an error.
func (s *Summary) Failed() []EventResult {
	var failed []EventResult
	for _, r := range s.Results {
		if r.Outcome == OutcomeFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

func (s *Summary) toRun(run *models.ScrapeRun) {
	run.Status = s.Status
	run.EventsFound = s.EventsFound
	run.EventsAdded = s.EventsAdded
	run.EventsUpdated = s.EventsUpdated
	run.EventsCancelled = s.EventsCancelled
	run.FightsAdded = s.FightsAdded
	run.FightsUpdated = s.FightsUpdated
	run.FightsRemoved = s.FightsRemoved
	run.FightersAdded = s.FightersAdded
}
