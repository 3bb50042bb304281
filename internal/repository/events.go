package repository

import (
	"context"
	"fmt"
	"time"

	"fightsync/reconciler/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// EventRepository handles event database operations
type EventRepository struct {
	db *Database
}

const eventColumns = `id, name, date, location, venue, completed, source_url, created_at, updated_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	var event models.Event
	err := row.Scan(
		&event.ID, &event.Name, &event.Date, &event.Location, &event.Venue,
		&event.Completed, &event.SourceURL, &event.CreatedAt, &event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Create inserts a new event. Pass a pgx.Tx as q to make the insert part of
// a larger transaction.
func (r *EventRepository) Create(ctx context.Context, q Querier, event *models.Event) error {
	query := `
		INSERT INTO events (id, name, date, location, venue, completed, source_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := q.QueryRow(
		ctx, query,
		event.ID, event.Name, event.Date, event.Location, event.Venue,
		event.Completed, event.SourceURL,
	).Scan(&event.CreatedAt, &event.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	log.Debug().
		Str("id", event.ID).
		Str("name", event.Name).
		Time("date", event.Date).
		Msg("Event created")

	return nil
}

// GetByID retrieves an event by ID
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.db.Pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("event not found: id=%s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// ListUpcoming retrieves all non-completed events dated today or later,
// ordered by date ascending, with their fight cards attached. This is the
// reconciliation baseline.
func (r *EventRepository) ListUpcoming(ctx context.Context, today time.Time) ([]*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE completed = false AND date >= $1
		ORDER BY date, id
	`

	rows, err := r.db.Pool.Query(ctx, query, today)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	byID := make(map[string]*models.Event)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
		byID[event.ID] = event
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	if len(events) == 0 {
		return events, nil
	}

	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}

	fights, err := r.db.Fights.ListByEventIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, fight := range fights {
		if event, ok := byID[fight.EventID]; ok {
			event.Fights = append(event.Fights, fight)
		}
	}

	log.Debug().Int("count", len(events)).Msg("Retrieved upcoming events")
	return events, nil
}

// UpdateDetails updates the mutable scrape-owned fields of an event.
func (r *EventRepository) UpdateDetails(ctx context.Context, q Querier, event *models.Event) error {
	query := `
		UPDATE events
		SET name = $1, date = $2, location = $3, venue = $4, source_url = $5, updated_at = NOW()
		WHERE id = $6
	`

	result, err := q.Exec(
		ctx, query,
		event.Name, event.Date, event.Location, event.Venue, event.SourceURL, event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("event not found: id=%s", event.ID)
	}
	return nil
}

// MarkCompleted flags an event as completed/cancelled. Its fights stay in
// place; completed events drop out of the reconciliation baseline.
func (r *EventRepository) MarkCompleted(ctx context.Context, q Querier, id string) error {
	query := `
		UPDATE events
		SET completed = true, updated_at = NOW()
		WHERE id = $1
	`

	result, err := q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark event completed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("event not found: id=%s", id)
	}

	log.Debug().Str("id", id).Msg("Event marked completed")
	return nil
}

// Count returns the total number of events
func (r *EventRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM events`

	var count int
	err := r.db.Pool.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}

	return count, nil
}
