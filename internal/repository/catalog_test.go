//go:build integration

package repository

import (
	"database/sql"
	"testing"
	"time"

	"fightsync/reconciler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(id, name string, daysOut int) *models.Event {
	return &models.Event{
		ID:   id,
		Name: name,
		Date: models.DateOnly(time.Now().AddDate(0, 0, daysOut)),
	}
}

func testFighter(id string) *models.Fighter {
	return &models.Fighter{ID: id, Name: id}
}

func testFight(eventID, f1, f2 string) *models.Fight {
	return &models.Fight{
		ID:           eventID + "-" + f1 + "-" + f2,
		EventID:      eventID,
		Fighter1ID:   f1,
		Fighter2ID:   f2,
		Fighter1Name: f1,
		Fighter2Name: f2,
	}
}

func TestCreateEventWithCard(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	event := testEvent("it-ufc-900", "UFC 900: Alpha vs. Bravo", 14)
	fighters := []*models.Fighter{testFighter("IT-Alpha"), testFighter("IT-Bravo")}
	fights := []*models.Fight{testFight("it-ufc-900", "IT-Alpha", "IT-Bravo")}

	fightersAdded, fightsInserted, err := db.CreateEventWithCard(ctx, event, fighters, fights)
	require.NoError(t, err)
	assert.Equal(t, 2, fightersAdded)
	assert.Equal(t, 1, fightsInserted)

	// The card comes back attached to the upcoming listing.
	upcoming, err := db.ListUpcomingEvents(ctx, models.DateOnly(time.Now()))
	require.NoError(t, err)

	var found *models.Event
	for _, e := range upcoming {
		if e.ID == "it-ufc-900" {
			found = e
		}
	}
	require.NotNil(t, found, "new event should be in the upcoming listing")
	require.Len(t, found.Fights, 1)
	assert.Equal(t, "IT-Alpha", found.Fights[0].Fighter1ID)

	// Re-inserting the same card skips the duplicate fight.
	_, fightsInserted, err = db.CreateEventWithCard(ctx, testEvent("it-ufc-901", "UFC 901: Alpha vs. Bravo II", 21), fighters,
		[]*models.Fight{testFight("it-ufc-900", "IT-Alpha", "IT-Bravo")})
	require.NoError(t, err)
	assert.Zero(t, fightsInserted)
}

func TestUpsertFightPreservesPredictions(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	event := testEvent("it-ufc-910", "UFC 910: Charlie vs. Delta", 14)
	fighters := []*models.Fighter{testFighter("IT-Charlie"), testFighter("IT-Delta")}
	fight := testFight("it-ufc-910", "IT-Charlie", "IT-Delta")

	_, _, err := db.CreateEventWithCard(ctx, event, fighters, []*models.Fight{fight})
	require.NoError(t, err)

	// Simulate the external scoring job writing its columns.
	_, err = db.Pool.Exec(ctx,
		`UPDATE fights SET predicted_winner_id = $1, entertainment_score = $2 WHERE id = $3`,
		"IT-Charlie", 8.5, fight.ID,
	)
	require.NoError(t, err)

	// A fresh scrape never carries predictions; the upsert must not wipe them.
	rescraped := testFight("it-ufc-910", "IT-Charlie", "IT-Delta")
	rescraped.WeightClass = sql.NullString{String: "Lightweight", Valid: true}
	require.NoError(t, db.Fights.UpsertPreservingPredictions(ctx, db.Pool, rescraped))

	fights, err := db.Fights.ListByEventIDs(ctx, []string{"it-ufc-910"})
	require.NoError(t, err)
	require.Len(t, fights, 1)
	assert.Equal(t, "IT-Charlie", fights[0].PredictedWinnerID.String)
	assert.InDelta(t, 8.5, fights[0].EntertainmentScore.Float64, 0.001)
	assert.Equal(t, "Lightweight", fights[0].WeightClass.String)
}

func TestMarkEventCompletedDropsFromBaseline(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	event := testEvent("it-ufc-920", "UFC 920: Echo vs. Foxtrot", 14)
	_, _, err := db.CreateEventWithCard(ctx, event, nil, nil)
	require.NoError(t, err)

	require.NoError(t, db.MarkEventCompleted(ctx, "it-ufc-920"))

	upcoming, err := db.ListUpcomingEvents(ctx, models.DateOnly(time.Now()))
	require.NoError(t, err)
	for _, e := range upcoming {
		assert.NotEqual(t, "it-ufc-920", e.ID, "completed event must leave the baseline")
	}
}

func TestFighterUpsertKeepsRecordOnPartialScrape(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	full := testFighter("IT-Golf")
	full.Wins = sql.NullInt32{Int32: 20, Valid: true}
	full.Losses = sql.NullInt32{Int32: 3, Valid: true}
	require.NoError(t, db.Fighters.Upsert(ctx, db.Pool, full))

	// A later scrape without record numbers must not null them out.
	partial := testFighter("IT-Golf")
	require.NoError(t, db.Fighters.Upsert(ctx, db.Pool, partial))

	got, err := db.Fighters.GetByID(ctx, "IT-Golf")
	require.NoError(t, err)
	assert.Equal(t, int32(20), got.Wins.Int32)
	assert.Equal(t, int32(3), got.Losses.Int32)
}

func TestRunLifecycle(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	run := &models.ScrapeRun{
		ID:        "00000000-0000-4000-8000-000000000001",
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
	}
	require.NoError(t, db.Runs.Create(ctx, run))

	run.Status = models.RunStatusCompleted
	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	run.EventsFound = 3
	run.EventsAdded = 1
	require.NoError(t, db.Runs.Finish(ctx, run))

	latest, err := db.Runs.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, run.ID, latest.ID)
	assert.Equal(t, models.RunStatusCompleted, latest.Status)
	assert.Equal(t, 3, latest.EventsFound)
}
