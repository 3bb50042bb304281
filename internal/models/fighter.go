package models

import (
	"database/sql"
	"regexp"
	"time"
)

// Fighter represents a fighter in the catalog. Fighters are upserted by ID
// and never deleted by the reconciler.
type Fighter struct {
	ID          string         `db:"id"` // source slug, e.g. "Jon-Jones"
	Name        string         `db:"name"`
	Nickname    sql.NullString `db:"nickname"`
	Wins        sql.NullInt32  `db:"wins"`
	Losses      sql.NullInt32  `db:"losses"`
	Draws       sql.NullInt32  `db:"draws"`
	WeightClass sql.NullString `db:"weight_class"`
	SourceURL   sql.NullString `db:"source_url"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// FighterInput is a fighter record as scraped from a source.
type FighterInput struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Nickname    string `json:"nickname,omitempty"`
	Record      string `json:"record,omitempty"` // "W-L-D"
	Wins        *int   `json:"wins,omitempty"`
	Losses      *int   `json:"losses,omitempty"`
	Draws       *int   `json:"draws,omitempty"`
	WeightClass string `json:"weightClass,omitempty"`
	SourceURL   string `json:"sourceUrl,omitempty"`
}

var recordPattern = regexp.MustCompile(`^(\d+)-(\d+)-(\d+)`)

// ParseRecord splits a "W-L-D" record string into wins, losses and draws.
// Returns ok=false when the string does not carry a record.
func ParseRecord(record string) (wins, losses, draws int, ok bool) {
	m := recordPattern.FindStringSubmatch(record)
	if m == nil {
		return 0, 0, 0, false
	}
	// Submatches are \d+ so Atoi cannot fail; parse inline.
	for i, dst := range []*int{&wins, &losses, &draws} {
		n := 0
		for _, c := range m[i+1] {
			n = n*10 + int(c-'0')
		}
		*dst = n
	}
	return wins, losses, draws, true
}

// ToFighter converts a scraped record to a Fighter model. Explicit win/loss
// counts take precedence; otherwise the W-L-D record string is parsed.
func (fi *FighterInput) ToFighter() *Fighter {
	fighter := &Fighter{
		ID:   fi.ID,
		Name: fi.Name,
	}
	if fi.Nickname != "" {
		fighter.Nickname = sql.NullString{String: fi.Nickname, Valid: true}
	}
	if fi.WeightClass != "" {
		fighter.WeightClass = sql.NullString{String: fi.WeightClass, Valid: true}
	}
	if fi.SourceURL != "" {
		fighter.SourceURL = sql.NullString{String: fi.SourceURL, Valid: true}
	}

	wins, losses, draws := fi.Wins, fi.Losses, fi.Draws
	if wins == nil && losses == nil && draws == nil && fi.Record != "" {
		if w, l, d, ok := ParseRecord(fi.Record); ok {
			wins, losses, draws = &w, &l, &d
		}
	}
	if wins != nil {
		fighter.Wins = sql.NullInt32{Int32: int32(*wins), Valid: true}
	}
	if losses != nil {
		fighter.Losses = sql.NullInt32{Int32: int32(*losses), Valid: true}
	}
	if draws != nil {
		fighter.Draws = sql.NullInt32{Int32: int32(*draws), Valid: true}
	}
	return fighter
}
