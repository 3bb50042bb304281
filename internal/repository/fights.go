package repository

import (
	"context"
	"fmt"

	"fightsync/reconciler/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// FightRepository handles fight database operations
type FightRepository struct {
	db *Database
}

const fightColumns = `id, event_id, fighter1_id, fighter2_id, fighter1_name, fighter2_name,
	       weight_class, title_fight, main_event, card_position, scheduled_rounds, fight_number,
	       predicted_winner_id, entertainment_score, prediction_summary, created_at, updated_at`

func scanFight(row pgx.Row) (*models.Fight, error) {
	var fight models.Fight
	err := row.Scan(
		&fight.ID, &fight.EventID, &fight.Fighter1ID, &fight.Fighter2ID,
		&fight.Fighter1Name, &fight.Fighter2Name,
		&fight.WeightClass, &fight.TitleFight, &fight.MainEvent,
		&fight.CardPosition, &fight.ScheduledRounds, &fight.FightNumber,
		&fight.PredictedWinnerID, &fight.EntertainmentScore, &fight.PredictionSummary,
		&fight.CreatedAt, &fight.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &fight, nil
}

// BulkInsertSkipDuplicates inserts fights, silently skipping rows whose
// primary key already exists. Used when writing a brand-new event, where a
// duplicate can only mean the same bout listed twice on the source page.
func (r *FightRepository) BulkInsertSkipDuplicates(ctx context.Context, q Querier, fights []*models.Fight) (inserted int, err error) {
	query := `
		INSERT INTO fights (
			id, event_id, fighter1_id, fighter2_id, fighter1_name, fighter2_name,
			weight_class, title_fight, main_event, card_position, scheduled_rounds, fight_number
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`

	for _, fight := range fights {
		result, err := q.Exec(
			ctx, query,
			fight.ID, fight.EventID, fight.Fighter1ID, fight.Fighter2ID,
			fight.Fighter1Name, fight.Fighter2Name,
			fight.WeightClass, fight.TitleFight, fight.MainEvent,
			fight.CardPosition, fight.ScheduledRounds, fight.FightNumber,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert fight %s: %w", fight.ID, err)
		}
		inserted += int(result.RowsAffected())
	}

	return inserted, nil
}

// UpsertPreservingPredictions inserts or updates a fight without ever
// touching the prediction columns, which belong to the external scoring job.
// Scrape-absent optional fields keep their stored values via COALESCE.
func (r *FightRepository) UpsertPreservingPredictions(ctx context.Context, q Querier, fight *models.Fight) error {
	query := `
		INSERT INTO fights (
			id, event_id, fighter1_id, fighter2_id, fighter1_name, fighter2_name,
			weight_class, title_fight, main_event, card_position, scheduled_rounds, fight_number
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			fighter1_name = EXCLUDED.fighter1_name,
			fighter2_name = EXCLUDED.fighter2_name,
			weight_class = COALESCE(EXCLUDED.weight_class, fights.weight_class),
			title_fight = EXCLUDED.title_fight,
			main_event = EXCLUDED.main_event,
			card_position = COALESCE(EXCLUDED.card_position, fights.card_position),
			scheduled_rounds = COALESCE(EXCLUDED.scheduled_rounds, fights.scheduled_rounds),
			fight_number = COALESCE(EXCLUDED.fight_number, fights.fight_number),
			updated_at = NOW()
	`

	_, err := q.Exec(
		ctx, query,
		fight.ID, fight.EventID, fight.Fighter1ID, fight.Fighter2ID,
		fight.Fighter1Name, fight.Fighter2Name,
		fight.WeightClass, fight.TitleFight, fight.MainEvent,
		fight.CardPosition, fight.ScheduledRounds, fight.FightNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert fight %s: %w", fight.ID, err)
	}
	return nil
}

// Delete removes a fight. Only the engine's threshold-crossing path calls
// this; prediction rows go with it.
func (r *FightRepository) Delete(ctx context.Context, q Querier, id string) error {
	result, err := q.Exec(ctx, `DELETE FROM fights WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete fight: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("fight not found: id=%s", id)
	}

	log.Debug().Str("id", id).Msg("Fight deleted")
	return nil
}

// ListByEventIDs retrieves the fights for a set of events, ordered by fight
// number within each event.
func (r *FightRepository) ListByEventIDs(ctx context.Context, eventIDs []string) ([]*models.Fight, error) {
	query := `
		SELECT ` + fightColumns + `
		FROM fights
		WHERE event_id = ANY($1)
		ORDER BY event_id, fight_number
	`

	rows, err := r.db.Pool.Query(ctx, query, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list fights: %w", err)
	}
	defer rows.Close()

	var fights []*models.Fight
	for rows.Next() {
		fight, err := scanFight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fight: %w", err)
		}
		fights = append(fights, fight)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fights: %w", err)
	}

	return fights, nil
}

// Count returns the total number of fights
func (r *FightRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM fights`

	var count int
	err := r.db.Pool.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count fights: %w", err)
	}

	return count, nil
}
