// Package validate rejects structurally broken scraped records before they
// can reach the catalog. Validation is pure and per-record: callers log the
// failures and keep going with the valid subset, a batch is never aborted by
// one bad record.
package validate

import (
	"fmt"

	"fightsync/reconciler/internal/models"
)

// Result is the outcome of validating a single record.
type Result struct {
	Valid  bool
	Errors []string
}

func (r *Result) add(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Fighter validates a scraped fighter record.
func Fighter(in *models.FighterInput) Result {
	r := Result{Valid: true}
	if in == nil {
		r.add("fighter record is nil")
		return r
	}
	if in.ID == "" {
		r.add("fighter id is missing")
	}
	if in.Name == "" {
		r.add("fighter name is missing")
	}
	checkCount(&r, "wins", in.Wins)
	checkCount(&r, "losses", in.Losses)
	checkCount(&r, "draws", in.Draws)
	return r
}

// Fight validates a scraped fight-card entry.
func Fight(in *models.FightInput) Result {
	r := Result{Valid: true}
	if in == nil {
		r.add("fight record is nil")
		return r
	}
	if in.EventID == "" {
		r.add("fight event id is missing")
	}
	if in.Fighter1ID == "" {
		r.add("fighter1 id is missing")
	}
	if in.Fighter2ID == "" {
		r.add("fighter2 id is missing")
	}
	if in.Fighter1ID != "" && in.Fighter1ID == in.Fighter2ID {
		r.add("fight is self-referential: fighter1 == fighter2 (%s)", in.Fighter1ID)
	}
	if in.ScheduledRounds != nil && (*in.ScheduledRounds < 1 || *in.ScheduledRounds > 5) {
		r.add("scheduled rounds out of range: %d", *in.ScheduledRounds)
	}
	if in.FightNumber != nil && *in.FightNumber < 1 {
		r.add("fight number out of range: %d", *in.FightNumber)
	}
	return r
}

// Event validates a scraped event listing. Fights on the card are validated
// separately so one broken bout does not sink the event.
func Event(in *models.EventInput) Result {
	r := Result{Valid: true}
	if in == nil {
		r.add("event record is nil")
		return r
	}
	if in.ID == "" {
		r.add("event id is missing")
	}
	if in.Name == "" {
		r.add("event name is missing")
	}
	if in.Date != "" && in.ParsedDate().IsZero() {
		r.add("event date is unparseable: %q", in.Date)
	}
	return r
}

func checkCount(r *Result, field string, v *int) {
	if v != nil && *v < 0 {
		r.add("%s is negative: %d", field, *v)
	}
}
