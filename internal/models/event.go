package models

import (
	"database/sql"
	"time"
)

// Event represents one fight card in the catalog. Completed doubles as
// cancelled: the reconciler marks an event completed when it disappears from
// every source for enough consecutive runs.
type Event struct {
	ID        string         `db:"id"` // source slug, e.g. "UFC-320"
	Name      string         `db:"name"`
	Date      time.Time      `db:"date"` // date-only semantics, UTC midnight
	Location  sql.NullString `db:"location"`
	Venue     sql.NullString `db:"venue"`
	Completed bool           `db:"completed"`
	SourceURL sql.NullString `db:"source_url"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`

	// Fights is populated by Events.ListUpcoming; not a column.
	Fights []*Fight `db:"-"`
}

// EventInput is an event listing as scraped from a source.
type EventInput struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Date      string `json:"date"` // ISO 8601
	Venue     string `json:"venue,omitempty"`
	Location  string `json:"location,omitempty"`
	SourceURL string `json:"sourceUrl,omitempty"`

	Fights []FightInput `json:"fights,omitempty"`
}

// ParsedDate returns the event date truncated to its UTC calendar day.
// The zero time is returned when the source supplied no parseable date.
func (ei *EventInput) ParsedDate() time.Time {
	if ei.Date == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, ei.Date); err == nil {
			return DateOnly(t)
		}
	}
	return time.Time{}
}

// ToEvent converts a scraped listing to an Event model.
func (ei *EventInput) ToEvent() *Event {
	event := &Event{
		ID:   ei.ID,
		Name: ei.Name,
		Date: ei.ParsedDate(),
	}
	if ei.Location != "" {
		event.Location = sql.NullString{String: ei.Location, Valid: true}
	}
	if ei.Venue != "" {
		event.Venue = sql.NullString{String: ei.Venue, Valid: true}
	}
	if ei.SourceURL != "" {
		event.SourceURL = sql.NullString{String: ei.SourceURL, Valid: true}
	}
	return event
}

// DateOnly truncates t to its UTC calendar day. All event date comparisons in
// the reconciler go through this: sources do not agree on time-of-day.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}
