package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fightsync/reconciler/internal/audit"
	"fightsync/reconciler/internal/ledger"
	"fightsync/reconciler/internal/models"
	"fightsync/reconciler/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type memStore struct {
	state   ledger.State
	loadErr error
	saveErr error
	saves   int
}

func newMemStore() *memStore {
	return &memStore{state: ledger.NewState()}
}

func (s *memStore) Load(ctx context.Context) (ledger.State, error) {
	if s.loadErr != nil {
		return ledger.State{}, s.loadErr
	}
	return s.state, nil
}

func (s *memStore) Save(ctx context.Context, state ledger.State) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.state = state
	s.saves++
	return nil
}

type memSink struct {
	records []string
}

func (s *memSink) Record(level, message string, fields map[string]any) {
	s.records = append(s.records, level+": "+message)
}

type fakeAdapter struct {
	name string
	snap *source.Snapshot
	err  error
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) FetchUpcoming(ctx context.Context, limit int) (*source.Snapshot, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.snap, nil
}

type fakeCatalog struct {
	events  map[string]*models.Event
	listErr error
	txErr   map[string]error // per event ID, fails the write transaction

	created   []string
	synced    []string
	cancelled []string
	runs      []*models.ScrapeRun
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		events: make(map[string]*models.Event),
		txErr:  make(map[string]error),
	}
}

func (c *fakeCatalog) ListUpcomingEvents(ctx context.Context, today time.Time) ([]*models.Event, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	var events []*models.Event
	for _, e := range c.events {
		if !e.Completed {
			events = append(events, e)
		}
	}
	return events, nil
}

func (c *fakeCatalog) CreateEventWithCard(ctx context.Context, event *models.Event, fighters []*models.Fighter, fights []*models.Fight) (int, int, error) {
	if err := c.txErr[event.ID]; err != nil {
		return 0, 0, err
	}
	stored := *event
	stored.Fights = fights
	c.events[event.ID] = &stored
	c.created = append(c.created, event.ID)
	return len(fighters), len(fights), nil
}

func (c *fakeCatalog) SyncEvent(ctx context.Context, event *models.Event, updateDetails bool, fighters []*models.Fighter, fights []*models.Fight, removeFightIDs []string) (int, error) {
	if err := c.txErr[event.ID]; err != nil {
		return 0, err
	}

	stored, ok := c.events[event.ID]
	if !ok {
		return 0, fmt.Errorf("event not found: %s", event.ID)
	}
	if updateDetails {
		stored.Name = event.Name
		stored.Date = event.Date
		stored.Location = event.Location
		stored.Venue = event.Venue
	}

	byID := make(map[string]*models.Fight)
	for _, f := range stored.Fights {
		byID[f.ID] = f
	}
	for _, f := range fights {
		byID[f.ID] = f
	}
	for _, id := range removeFightIDs {
		delete(byID, id)
	}
	stored.Fights = stored.Fights[:0]
	for _, f := range byID {
		stored.Fights = append(stored.Fights, f)
	}

	c.synced = append(c.synced, event.ID)
	return 0, nil
}

func (c *fakeCatalog) MarkEventCompleted(ctx context.Context, id string) error {
	event, ok := c.events[id]
	if !ok {
		return fmt.Errorf("event not found: %s", id)
	}
	event.Completed = true
	c.cancelled = append(c.cancelled, id)
	return nil
}

func (c *fakeCatalog) CreateRun(ctx context.Context, run *models.ScrapeRun) error {
	c.runs = append(c.runs, run)
	return nil
}

func (c *fakeCatalog) FinishRun(ctx context.Context, run *models.ScrapeRun) error {
	return nil
}

// --- helpers ---

func fightInput(eventID, f1, f2 string) models.FightInput {
	return models.FightInput{
		ID:           eventID + "-" + f1 + "-" + f2,
		EventID:      eventID,
		Fighter1ID:   f1,
		Fighter2ID:   f2,
		Fighter1Name: f1,
		Fighter2Name: f2,
	}
}

func eventInput(id, name, date string, fights ...models.FightInput) models.EventInput {
	return models.EventInput{ID: id, Name: name, Date: date, Fights: fights}
}

func persistedEvent(input models.EventInput) *models.Event {
	event := input.ToEvent()
	for i := range input.Fights {
		event.Fights = append(event.Fights, input.Fights[i].ToFight())
	}
	return event
}

func newTestEngine(catalog Catalog, store ledger.Store, adapters ...source.Adapter) *Engine {
	return New(adapters, catalog, store, audit.Nop{}, Config{
		EventCancelThreshold: 3,
		FightCancelThreshold: 2,
	})
}

// --- tests ---

func TestRun_AddsNewEvent(t *testing.T) {
	catalog := newFakeCatalog()
	store := newMemStore()
	adapter := &fakeAdapter{
		name: "ufcstats",
		snap: &source.Snapshot{
			Events: []models.EventInput{
				eventInput("ufc-320", "UFC 320: Alpha vs. Bravo", "2026-09-12",
					fightInput("ufc-320", "Alpha", "Bravo"),
					fightInput("ufc-320", "Charlie", "Delta"),
				),
			},
			Fighters: []models.FighterInput{
				{ID: "Alpha", Name: "Alpha"}, {ID: "Bravo", Name: "Bravo"},
				{ID: "Charlie", Name: "Charlie"}, {ID: "Delta", Name: "Delta"},
			},
		},
	}

	summary, err := newTestEngine(catalog, store, adapter).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, summary.Status)
	assert.Equal(t, 1, summary.EventsFound)
	assert.Equal(t, 1, summary.EventsAdded)
	assert.Equal(t, 2, summary.FightsAdded)
	assert.Equal(t, 4, summary.FightersAdded)
	assert.Equal(t, []string{"ufc-320"}, catalog.created)
	assert.Equal(t, 1, store.saves)
}

func TestRun_SecondRunMakesNoChanges(t *testing.T) {
	input := eventInput("ufc-320", "UFC 320: Alpha vs. Bravo", "2026-09-12",
		fightInput("ufc-320", "Alpha", "Bravo"))

	catalog := newFakeCatalog()
	catalog.events["ufc-320"] = persistedEvent(input)
	store := newMemStore()
	adapter := &fakeAdapter{name: "ufcstats", snap: &source.Snapshot{
		Events: []models.EventInput{input},
	}}

	summary, err := newTestEngine(catalog, store, adapter).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, summary.Status)
	assert.Zero(t, summary.EventsAdded)
	assert.Zero(t, summary.EventsUpdated)
	assert.Zero(t, summary.EventsCancelled)
	assert.Zero(t, summary.FightsAdded)
	assert.Zero(t, summary.FightsUpdated, "identical card must not count as updated")
	assert.Zero(t, summary.FightsRemoved)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, OutcomeSkipped, summary.Results[0].Outcome)
}

func TestRun_FightDetailChangeCountsAsUpdate(t *testing.T) {
	input := eventInput("ufc-320", "UFC 320: Alpha vs. Bravo", "2026-09-12",
		fightInput("ufc-320", "Alpha", "Bravo"))

	catalog := newFakeCatalog()
	catalog.events["ufc-320"] = persistedEvent(input)
	store := newMemStore()

	changed := input
	changed.Fights = []models.FightInput{input.Fights[0]}
	changed.Fights[0].WeightClass = "Light Heavyweight"
	adapter := &fakeAdapter{name: "ufcstats", snap: &source.Snapshot{
		Events: []models.EventInput{changed},
	}}

	summary, err := newTestEngine(catalog, store, adapter).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FightsUpdated)
	assert.Zero(t, summary.FightsAdded)
	assert.Equal(t, []string{"ufc-320"}, catalog.synced)
}

func TestRun_MatchesRenamedEventAndUpdatesDetails(t *testing.T) {
	// Persisted under the bare numbered name; the source now carries the
	// full header plus a location.
	persisted := persistedEvent(eventInput("ufc-320", "UFC 320", "2026-09-12",
		fightInput("ufc-320", "Alpha", "Bravo")))

	catalog := newFakeCatalog()
	catalog.events["ufc-320"] = persisted
	store := newMemStore()

	scraped := eventInput("ufc-320-b", "UFC 320: Alpha vs. Bravo", "2026-09-12",
		fightInput("ufc-320-b", "Alpha", "Bravo"))
	scraped.Location = "Las Vegas, Nevada, USA"
	adapter := &fakeAdapter{name: "ufcstats", snap: &source.Snapshot{
		Events: []models.EventInput{scraped},
	}}

	summary, err := newTestEngine(catalog, store, adapter).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.EventsAdded)
	assert.Equal(t, 1, summary.EventsUpdated)
	assert.Equal(t, []string{"ufc-320"}, catalog.synced)
	assert.Equal(t, "Las Vegas, Nevada, USA", catalog.events["ufc-320"].Location.String)
	// The card matched by pair key, so nothing was added or removed.
	assert.Zero(t, summary.FightsAdded)
	assert.Zero(t, summary.FightsRemoved)
}

func TestRun_BlockedSourceMutatesNothing(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.events["ufc-320"] = persistedEvent(eventInput("ufc-320", "UFC 320", "2026-09-12"))
	store := newMemStore()
	adapter := &fakeAdapter{name: "ufcstats", err: &source.BlockError{Source: "ufcstats", StatusCode: 403}}

	summary, err := newTestEngine(catalog, store, adapter).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusBlockedSkip, summary.Status)
	assert.Equal(t, []string{"ufcstats"}, summary.SourcesBlocked)
	assert.Empty(t, catalog.cancelled)
	assert.Zero(t, store.saves, "ledger must not be touched on a blocked run")
	assert.Empty(t, store.state.Events)
}

func TestRun_EventCancelledAfterThreshold(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.events["ufc-320"] = persistedEvent(eventInput("ufc-320", "UFC 320", "2026-09-12"))
	store := newMemStore()
	adapter := &fakeAdapter{name: "ufcstats", snap: &source.Snapshot{}}
	engine := newTestEngine(catalog, store, adapter)

	for i := 1; i <= 2; i++ {
		summary, err := engine.Run(context.Background())
		require.NoError(t, err)
		assert.Zero(t, summary.EventsCancelled, "run %d must stay below threshold", i)
		assert.False(t, catalog.events["ufc-320"].Completed)
	}

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EventsCancelled)
	assert.True(t, catalog.events["ufc-320"].Completed)
	assert.Equal(t, []string{"ufc-320"}, catalog.cancelled)
	assert.Empty(t, store.state.Events, "ledger entry deleted with the cancellation")
}

func TestRun_ReappearanceResetsStrikes(t *testing.T) {
	input := eventInput("ufc-320", "UFC 320", "2026-09-12")
	catalog := newFakeCatalog()
	catalog.events["ufc-320"] = persistedEvent(input)
	store := newMemStore()

	missing := &fakeAdapter{name: "ufcstats", snap: &source.Snapshot{}}
	present := &fakeAdapter{name: "ufcstats", snap: &source.Snapshot{
		Events: []models.EventInput{input},
	}}

	engine := newTestEngine(catalog, store, missing)
	for i := 0; i < 2; i++ {
		_, err := engine.Run(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.state.Events["ufc-320"].Count)

	// The event reappears: strikes go back to zero.
	_, err := newTestEngine(catalog, store, present).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, store.state.Events)

	// Two fresh misses still do not cancel.
	for i := 0; i < 2; i++ {
		_, err := engine.Run(context.Background())
		require.NoError(t, err)
	}
	assert.False(t, catalog.events["ufc-320"].Completed)
	assert.Equal(t, 2, store.state.Events["ufc-320"].Count)
}

func TestRun_FightRemovedAfterThreshold(t *testing.T) {
	full := eventInput("ufc-320", "UFC 320", "2026-09-12",
		fightInput("ufc-320", "Alpha", "Bravo"),
		fightInput("ufc-320", "Charlie", "Delta"),
	)
	trimmed := eventInput("ufc-320", "UFC 320", "2026-09-12",
		fightInput("ufc-320", "Alpha", "Bravo"),
	)

	catalog := newFakeCatalog()
	catalog.events["ufc-320"] = persistedEvent(full)
	store := newMemStore()
	adapter := &fakeAdapter{name: "ufcstats", snap: &source.Snapshot{
		Events: []models.EventInput{trimmed},
	}}
	engine := newTestEngine(catalog, store, adapter)

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.FightsRemoved)
	assert.Len(t, catalog.events["ufc-320"].Fights, 2)

	summary, err = engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FightsRemoved)
	assert.Len(t, catalog.events["ufc-320"].Fights, 1)
	assert.Empty(t, store.state.Fights, "ledger entry deleted with the removal")
}

func TestRun_FailedSyncPreservesStrikes(t *testing.T) {
	full := eventInput("ufc-320", "UFC 320", "2026-09-12",
		fightInput("ufc-320", "Alpha", "Bravo"),
		fightInput("ufc-320", "Charlie", "Delta"),
	)
	trimmed := eventInput("ufc-320", "UFC 320", "2026-09-12",
		fightInput("ufc-320", "Alpha", "Bravo"),
	)

	catalog := newFakeCatalog()
	catalog.events["ufc-320"] = persistedEvent(full)
	store := newMemStore()
	// One strike already on the books: the next miss crosses the threshold.
	key := ledger.FightKey("ufc-320", "charlie|delta")
	store.state.Fights[key] = ledger.Entry{Count: 1}

	sink := &memSink{}
	adapter := &fakeAdapter{name: "ufcstats", snap: &source.Snapshot{
		Events: []models.EventInput{trimmed},
	}}
	engine := New([]source.Adapter{adapter}, catalog, store, sink, Config{
		EventCancelThreshold: 3,
		FightCancelThreshold: 2,
	})

	catalog.txErr["ufc-320"] = errors.New("deadlock detected")
	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	// The fight stays in the catalog, its strike streak stays intact and no
	// removal is reported.
	assert.Equal(t, models.RunStatusPartial, summary.Status)
	assert.Zero(t, summary.FightsRemoved)
	assert.Len(t, catalog.events["ufc-320"].Fights, 2)
	assert.Equal(t, 1, store.state.Fights[key].Count)
	assert.NotContains(t, sink.records, "error: fight removed after repeated misses")

	// Once the transaction goes through, the preserved streak crosses the
	// threshold on the very next miss.
	delete(catalog.txErr, "ufc-320")
	summary, err = engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FightsRemoved)
	assert.Len(t, catalog.events["ufc-320"].Fights, 1)
	assert.NotContains(t, store.state.Fights, key, "ledger entry deleted with the removal")
	assert.Contains(t, sink.records, "error: fight removed after repeated misses")
}

func TestRun_PartialFailureContinues(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.txErr["ufc-320"] = errors.New("boom")
	store := newMemStore()
	adapter := &fakeAdapter{name: "ufcstats", snap: &source.Snapshot{
		Events: []models.EventInput{
			eventInput("ufc-320", "UFC 320: Alpha vs. Bravo", "2026-09-12"),
			eventInput("ufc-321", "UFC 321: Charlie vs. Delta", "2026-09-19"),
		},
	}}

	summary, err := newTestEngine(catalog, store, adapter).Run(context.Background())
	require.NoError(t, err, "one failed event must not fail the run")

	assert.Equal(t, models.RunStatusPartial, summary.Status)
	assert.Equal(t, 1, summary.EventsAdded)
	assert.Equal(t, []string{"ufc-321"}, catalog.created)
	require.Len(t, summary.Failed(), 1)
	assert.Equal(t, "ufc-320", summary.Failed()[0].EventID)
	assert.Equal(t, 1, store.saves, "ledger still flushed after a partial run")
}

func TestRun_CrossSourceCollapse(t *testing.T) {
	catalog := newFakeCatalog()
	store := newMemStore()
	first := &fakeAdapter{name: "ufcstats", snap: &source.Snapshot{
		Events: []models.EventInput{
			eventInput("ufc-320", "UFC 320: Alpha vs. Bravo", "2026-09-12",
				fightInput("ufc-320", "Alpha", "Bravo")),
		},
	}}
	second := &fakeAdapter{name: "mirror", snap: &source.Snapshot{
		Events: []models.EventInput{
			eventInput("ufc-320-m", "UFC 320", "2026-09-12",
				fightInput("ufc-320-m", "Alpha", "Bravo")),
		},
	}}

	summary, err := newTestEngine(catalog, store, first, second).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.EventsAdded, "same card through two sources is one event")
	assert.Len(t, catalog.created, 1)
	assert.Equal(t, []string{"ufc-320"}, catalog.synced)
}

func TestRun_EventsProcessedInDateOrder(t *testing.T) {
	catalog := newFakeCatalog()
	store := newMemStore()
	adapter := &fakeAdapter{name: "ufcstats", snap: &source.Snapshot{
		Events: []models.EventInput{
			eventInput("ufc-322", "UFC 322: Echo vs. Foxtrot", "2026-10-03"),
			eventInput("ufc-320", "UFC 320: Alpha vs. Bravo", "2026-09-12"),
			eventInput("ufc-321", "UFC 321: Charlie vs. Delta", "2026-09-19"),
		},
	}}

	_, err := newTestEngine(catalog, store, adapter).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ufc-320", "ufc-321", "ufc-322"}, catalog.created)
}

func TestRun_BaselineReadFailureIsFatal(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.listErr = errors.New("connection refused")
	store := newMemStore()
	adapter := &fakeAdapter{name: "ufcstats", snap: &source.Snapshot{
		Events: []models.EventInput{eventInput("ufc-320", "UFC 320", "2026-09-12")},
	}}

	summary, err := newTestEngine(catalog, store, adapter).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.RunStatusFailed, summary.Status)
	assert.Zero(t, store.saves)
	assert.Empty(t, catalog.created)
}

func TestRun_LedgerFlushFailureIsNotFatal(t *testing.T) {
	catalog := newFakeCatalog()
	store := newMemStore()
	store.saveErr = errors.New("disk full")
	adapter := &fakeAdapter{name: "ufcstats", snap: &source.Snapshot{
		Events: []models.EventInput{eventInput("ufc-320", "UFC 320: Alpha vs. Bravo", "2026-09-12")},
	}}

	summary, err := newTestEngine(catalog, store, adapter).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, summary.Status)
	assert.Equal(t, 1, summary.EventsAdded, "catalog writes stand when the flush fails")
}

func TestRun_InvalidRecordsDropped(t *testing.T) {
	catalog := newFakeCatalog()
	store := newMemStore()
	adapter := &fakeAdapter{name: "ufcstats", snap: &source.Snapshot{
		Events: []models.EventInput{
			eventInput("", "No ID", "2026-09-12"), // invalid: missing id
			eventInput("ufc-320", "UFC 320: Alpha vs. Bravo", "2026-09-12",
				fightInput("ufc-320", "Alpha", "Alpha"), // invalid: self-referential
				fightInput("ufc-320", "Alpha", "Bravo"),
			),
		},
	}}

	summary, err := newTestEngine(catalog, store, adapter).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.EventsFound)
	assert.Equal(t, 1, summary.EventsAdded)
	assert.Equal(t, 1, summary.FightsAdded)
}
