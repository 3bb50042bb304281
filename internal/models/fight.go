package models

import (
	"database/sql"
	"time"
)

// Fight represents one bout on an event's card. The prediction columns are
// written by the external scoring job only; the reconciler preserves them on
// every upsert.
type Fight struct {
	ID              string         `db:"id"` // "{eventID}-{fighter1ID}-{fighter2ID}"
	EventID         string         `db:"event_id"`
	Fighter1ID      string         `db:"fighter1_id"`
	Fighter2ID      string         `db:"fighter2_id"`
	Fighter1Name    string         `db:"fighter1_name"`
	Fighter2Name    string         `db:"fighter2_name"`
	WeightClass     sql.NullString `db:"weight_class"`
	TitleFight      bool           `db:"title_fight"`
	MainEvent       bool           `db:"main_event"`
	CardPosition    sql.NullString `db:"card_position"`
	ScheduledRounds sql.NullInt32  `db:"scheduled_rounds"`
	FightNumber     sql.NullInt32  `db:"fight_number"`

	// Scoring-job columns; never supplied by a scrape.
	PredictedWinnerID  sql.NullString  `db:"predicted_winner_id"`
	EntertainmentScore sql.NullFloat64 `db:"entertainment_score"`
	PredictionSummary  sql.NullString  `db:"prediction_summary"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// FightInput is a fight-card entry as scraped from a source.
type FightInput struct {
	ID              string   `json:"id"`
	EventID         string   `json:"eventId"`
	Fighter1ID      string   `json:"fighter1Id"`
	Fighter2ID      string   `json:"fighter2Id"`
	Fighter1Name    string   `json:"fighter1Name"`
	Fighter2Name    string   `json:"fighter2Name"`
	WeightClass     string   `json:"weightClass,omitempty"`
	TitleFight      bool     `json:"titleFight,omitempty"`
	MainEvent       bool     `json:"mainEvent,omitempty"`
	CardPosition    string   `json:"cardPosition,omitempty"`
	ScheduledRounds *int     `json:"scheduledRounds,omitempty"`
	FightNumber     *int     `json:"fightNumber,omitempty"`
	SourceURL       string   `json:"sourceUrl,omitempty"`
}

// ToFight converts a scraped card entry to a Fight model.
func (fi *FightInput) ToFight() *Fight {
	fight := &Fight{
		ID:           fi.ID,
		EventID:      fi.EventID,
		Fighter1ID:   fi.Fighter1ID,
		Fighter2ID:   fi.Fighter2ID,
		Fighter1Name: fi.Fighter1Name,
		Fighter2Name: fi.Fighter2Name,
		TitleFight:   fi.TitleFight,
		MainEvent:    fi.MainEvent,
	}
	if fight.ID == "" && fi.EventID != "" {
		fight.ID = fi.EventID + "-" + fi.Fighter1ID + "-" + fi.Fighter2ID
	}
	if fi.WeightClass != "" {
		fight.WeightClass = sql.NullString{String: fi.WeightClass, Valid: true}
	}
	if fi.CardPosition != "" {
		fight.CardPosition = sql.NullString{String: fi.CardPosition, Valid: true}
	}
	if fi.ScheduledRounds != nil {
		fight.ScheduledRounds = sql.NullInt32{Int32: int32(*fi.ScheduledRounds), Valid: true}
	}
	if fi.FightNumber != nil {
		fight.FightNumber = sql.NullInt32{Int32: int32(*fi.FightNumber), Valid: true}
	}
	return fight
}
