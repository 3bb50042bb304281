package repository

import (
	"context"
	"time"

	"fightsync/reconciler/internal/models"

	"github.com/jackc/pgx/v5"
)

// The methods below implement the engine's Catalog interface on top of the
// repositories, with WithTx supplying the per-event transaction boundary.

// ListUpcomingEvents returns the reconciliation baseline.
func (db *Database) ListUpcomingEvents(ctx context.Context, today time.Time) ([]*models.Event, error) {
	return db.Events.ListUpcoming(ctx, today)
}

// CreateEventWithCard writes a new event, its fighters and its fight card
// in one transaction. Fighters go first so the fight rows' foreign keys
// resolve; duplicate fight IDs are skipped.
func (db *Database) CreateEventWithCard(ctx context.Context, event *models.Event, fighters []*models.Fighter, fights []*models.Fight) (fightersAdded, fightsInserted int, err error) {
	err = db.WithTx(ctx, func(tx pgx.Tx) error {
		added, err := db.Fighters.UpsertBatch(ctx, tx, fighters, db.FighterBatchSize, db.FighterBatchPause)
		if err != nil {
			return err
		}
		fightersAdded = added

		if err := db.Events.Create(ctx, tx, event); err != nil {
			return err
		}

		inserted, err := db.Fights.BulkInsertSkipDuplicates(ctx, tx, fights)
		if err != nil {
			return err
		}
		fightsInserted = inserted
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return fightersAdded, fightsInserted, nil
}

// SyncEvent applies a matched event's diff in one transaction.
func (db *Database) SyncEvent(ctx context.Context, event *models.Event, updateDetails bool, fighters []*models.Fighter, fights []*models.Fight, removeFightIDs []string) (fightersAdded int, err error) {
	err = db.WithTx(ctx, func(tx pgx.Tx) error {
		if updateDetails {
			if err := db.Events.UpdateDetails(ctx, tx, event); err != nil {
				return err
			}
		}

		added, err := db.Fighters.UpsertBatch(ctx, tx, fighters, db.FighterBatchSize, db.FighterBatchPause)
		if err != nil {
			return err
		}
		fightersAdded = added

		for _, fight := range fights {
			if err := db.Fights.UpsertPreservingPredictions(ctx, tx, fight); err != nil {
				return err
			}
		}

		for _, id := range removeFightIDs {
			if err := db.Fights.Delete(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return fightersAdded, nil
}

// MarkEventCompleted cancels an event outside any larger transaction.
func (db *Database) MarkEventCompleted(ctx context.Context, id string) error {
	return db.Events.MarkCompleted(ctx, db.Pool, id)
}

// CreateRun records the start of a reconciliation run.
func (db *Database) CreateRun(ctx context.Context, run *models.ScrapeRun) error {
	return db.Runs.Create(ctx, run)
}

// FinishRun finalizes a reconciliation run record.
func (db *Database) FinishRun(ctx context.Context, run *models.ScrapeRun) error {
	return db.Runs.Finish(ctx, run)
}
