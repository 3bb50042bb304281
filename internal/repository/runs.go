package repository

import (
	"context"
	"fmt"

	"fightsync/reconciler/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// RunRepository handles the append-only scrape_runs audit table
type RunRepository struct {
	db *Database
}

// Create records the start of a reconciliation run.
func (r *RunRepository) Create(ctx context.Context, run *models.ScrapeRun) error {
	query := `
		INSERT INTO scrape_runs (id, started_at, status)
		VALUES ($1, $2, $3)
	`

	_, err := r.db.Pool.Exec(ctx, query, run.ID, run.StartedAt, run.Status)
	if err != nil {
		return fmt.Errorf("failed to create scrape run: %w", err)
	}

	log.Debug().Str("run_id", run.ID).Msg("Scrape run created")
	return nil
}

// Finish finalizes a run with its terminal status and counters.
func (r *RunRepository) Finish(ctx context.Context, run *models.ScrapeRun) error {
	query := `
		UPDATE scrape_runs
		SET finished_at = $1, status = $2,
		    events_found = $3, events_added = $4, events_updated = $5, events_cancelled = $6,
		    fights_added = $7, fights_updated = $8, fights_removed = $9, fighters_added = $10,
		    error_message = $11
		WHERE id = $12
	`

	result, err := r.db.Pool.Exec(
		ctx, query,
		run.FinishedAt, run.Status,
		run.EventsFound, run.EventsAdded, run.EventsUpdated, run.EventsCancelled,
		run.FightsAdded, run.FightsUpdated, run.FightsRemoved, run.FightersAdded,
		run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish scrape run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("scrape run not found: id=%s", run.ID)
	}

	return nil
}

// Latest returns the most recently started run, or nil when none exist.
func (r *RunRepository) Latest(ctx context.Context) (*models.ScrapeRun, error) {
	query := `
		SELECT id, started_at, finished_at, status,
		       events_found, events_added, events_updated, events_cancelled,
		       fights_added, fights_updated, fights_removed, fighters_added,
		       error_message
		FROM scrape_runs
		ORDER BY started_at DESC
		LIMIT 1
	`

	var run models.ScrapeRun
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &run.Status,
		&run.EventsFound, &run.EventsAdded, &run.EventsUpdated, &run.EventsCancelled,
		&run.FightsAdded, &run.FightsUpdated, &run.FightsRemoved, &run.FightersAdded,
		&run.ErrorMessage,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest scrape run: %w", err)
	}

	return &run, nil
}
