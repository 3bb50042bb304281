package repository

import (
	"context"
	"fmt"
	"time"

	"fightsync/reconciler/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// FighterRepository handles fighter database operations
type FighterRepository struct {
	db *Database
}

// Upsert inserts or updates a fighter by ID. Fighters are never deleted.
func (r *FighterRepository) Upsert(ctx context.Context, q Querier, fighter *models.Fighter) error {
	query := `
		INSERT INTO fighters (id, name, nickname, wins, losses, draws, weight_class, source_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			nickname = COALESCE(EXCLUDED.nickname, fighters.nickname),
			wins = COALESCE(EXCLUDED.wins, fighters.wins),
			losses = COALESCE(EXCLUDED.losses, fighters.losses),
			draws = COALESCE(EXCLUDED.draws, fighters.draws),
			weight_class = COALESCE(EXCLUDED.weight_class, fighters.weight_class),
			source_url = COALESCE(EXCLUDED.source_url, fighters.source_url),
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := q.QueryRow(
		ctx, query,
		fighter.ID, fighter.Name, fighter.Nickname,
		fighter.Wins, fighter.Losses, fighter.Draws,
		fighter.WeightClass, fighter.SourceURL,
	).Scan(&fighter.CreatedAt, &fighter.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert fighter %s: %w", fighter.ID, err)
	}
	return nil
}

// UpsertBatch upserts fighters in chunks with a short pause between chunks
// to avoid hammering the pool during large cards. Returns the number of
// fighters that did not exist before.
func (r *FighterRepository) UpsertBatch(ctx context.Context, q Querier, fighters []*models.Fighter, chunkSize int, pause time.Duration) (added int, err error) {
	if chunkSize <= 0 {
		chunkSize = 10
	}

	for start := 0; start < len(fighters); start += chunkSize {
		end := start + chunkSize
		if end > len(fighters) {
			end = len(fighters)
		}

		for _, fighter := range fighters[start:end] {
			existed, err := r.exists(ctx, q, fighter.ID)
			if err != nil {
				return added, err
			}
			if err := r.Upsert(ctx, q, fighter); err != nil {
				return added, err
			}
			if !existed {
				added++
			}
		}

		if end < len(fighters) && pause > 0 {
			select {
			case <-ctx.Done():
				return added, ctx.Err()
			case <-time.After(pause):
			}
		}
	}

	log.Debug().
		Int("total", len(fighters)).
		Int("added", added).
		Msg("Fighter batch upserted")

	return added, nil
}

func (r *FighterRepository) exists(ctx context.Context, q Querier, id string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM fighters WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check fighter %s: %w", id, err)
	}
	return exists, nil
}

// GetByID retrieves a fighter by ID
func (r *FighterRepository) GetByID(ctx context.Context, id string) (*models.Fighter, error) {
	query := `
		SELECT id, name, nickname, wins, losses, draws, weight_class, source_url, created_at, updated_at
		FROM fighters
		WHERE id = $1
	`

	var fighter models.Fighter
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&fighter.ID, &fighter.Name, &fighter.Nickname,
		&fighter.Wins, &fighter.Losses, &fighter.Draws,
		&fighter.WeightClass, &fighter.SourceURL,
		&fighter.CreatedAt, &fighter.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("fighter not found: id=%s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fighter: %w", err)
	}

	return &fighter, nil
}

// Count returns the total number of fighters
func (r *FighterRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM fighters`

	var count int
	err := r.db.Pool.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count fighters: %w", err)
	}

	return count, nil
}
