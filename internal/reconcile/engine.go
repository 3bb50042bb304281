// Package reconcile drives one reconciliation pass: fetch scraped snapshots
// from every enabled source, validate them, match scraped events against the
// persisted catalog, apply field and card diffs, route disappearances through
// the strike ledger and persist a run record.
package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"fightsync/reconciler/internal/audit"
	"fightsync/reconciler/internal/ledger"
	"fightsync/reconciler/internal/match"
	"fightsync/reconciler/internal/metrics"
	"fightsync/reconciler/internal/models"
	"fightsync/reconciler/internal/source"
	"fightsync/reconciler/internal/validate"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Catalog is the subset of catalog-store operations the engine needs. The
// compound methods are transaction boundaries: either everything inside
// lands or nothing does.
type Catalog interface {
	// ListUpcomingEvents returns all non-completed events dated today or
	// later with their fight cards attached, ordered by date ascending.
	ListUpcomingEvents(ctx context.Context, today time.Time) ([]*models.Event, error)

	// CreateEventWithCard writes a brand-new event, its fighters and its
	// fight card in one transaction. Duplicate fight IDs are skipped.
	CreateEventWithCard(ctx context.Context, event *models.Event, fighters []*models.Fighter, fights []*models.Fight) (fightersAdded, fightsInserted int, err error)

	// SyncEvent applies a matched event's diff in one transaction: the
	// detail update when details changed, fighter upserts, fight upserts
	// preserving prediction columns, and fight removals.
	SyncEvent(ctx context.Context, event *models.Event, updateDetails bool, fighters []*models.Fighter, fights []*models.Fight, removeFightIDs []string) (fightersAdded int, err error)

	// MarkEventCompleted cancels an event that crossed the miss threshold.
	MarkEventCompleted(ctx context.Context, id string) error

	CreateRun(ctx context.Context, run *models.ScrapeRun) error
	FinishRun(ctx context.Context, run *models.ScrapeRun) error
}

// Config tunes one engine instance.
type Config struct {
	EventCancelThreshold int // consecutive missed runs before an event is cancelled
	FightCancelThreshold int // consecutive missed runs before a fight is removed
	FetchLimit           int // nearest upcoming events fetched per source
	Now                  func() time.Time
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.EventCancelThreshold <= 0 {
		cfg.EventCancelThreshold = 3
	}
	if cfg.FightCancelThreshold <= 0 {
		cfg.FightCancelThreshold = 2
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg
}

// Engine reconciles the persisted catalog against scraped source snapshots.
type Engine struct {
	sources     []source.Adapter
	catalog     Catalog
	ledgerStore ledger.Store
	matcher     match.Matcher
	sink        audit.Sink
	cfg         Config
}

// New creates an engine. A nil sink discards audit notices.
func New(sources []source.Adapter, catalog Catalog, store ledger.Store, sink audit.Sink, cfg Config) *Engine {
	if sink == nil {
		sink = audit.Nop{}
	}
	return &Engine{
		sources:     sources,
		catalog:     catalog,
		ledgerStore: store,
		matcher:     match.New(),
		sink:        sink,
		cfg:         cfg.withDefaults(),
	}
}

// Run executes one reconciliation pass. It returns an error only for fatal
// conditions (run record creation, baseline catalog read); per-event and
// per-source failures are folded into the summary.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	start := e.cfg.Now()
	run := &models.ScrapeRun{
		ID:        uuid.NewString(),
		StartedAt: start,
		Status:    models.RunStatusRunning,
	}
	if err := e.catalog.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}

	summary := &Summary{RunID: run.ID}
	log.Info().Str("run_id", run.ID).Msg("Reconciliation run started")

	err := e.execute(ctx, run, summary)
	summary.Elapsed = e.cfg.Now().Sub(start)

	if err != nil {
		summary.Status = models.RunStatusFailed
		run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}

	summary.toRun(run)
	run.FinishedAt = sql.NullTime{Time: e.cfg.Now(), Valid: true}
	if finishErr := e.catalog.FinishRun(ctx, run); finishErr != nil {
		log.Warn().Err(finishErr).Str("run_id", run.ID).Msg("Failed to finalize run record")
	}

	metrics.RecordRun(summary.Status, summary.Elapsed.Seconds())
	e.sink.Record(audit.LevelInfo, "reconciliation run finished", map[string]any{
		"run_id":           summary.RunID,
		"status":           summary.Status,
		"events_found":     summary.EventsFound,
		"events_added":     summary.EventsAdded,
		"events_updated":   summary.EventsUpdated,
		"events_cancelled": summary.EventsCancelled,
		"fights_added":     summary.FightsAdded,
		"fights_updated":   summary.FightsUpdated,
		"fights_removed":   summary.FightsRemoved,
		"elapsed":          summary.Elapsed.String(),
	})

	log.Info().
		Str("run_id", summary.RunID).
		Str("status", summary.Status).
		Dur("elapsed", summary.Elapsed).
		Int("events_found", summary.EventsFound).
		Int("events_added", summary.EventsAdded).
		Int("events_updated", summary.EventsUpdated).
		Int("events_cancelled", summary.EventsCancelled).
		Msg("Reconciliation run finished")

	return summary, err
}

// execute runs the state machine. The summary is mutated in place so the
// caller can persist partial counts even on a fatal error.
func (e *Engine) execute(ctx context.Context, run *models.ScrapeRun, summary *Summary) error {
	snapshots := e.fetchAll(ctx, summary)
	if len(snapshots) == 0 {
		// Every source blocked or errored: no catalog or ledger mutation.
		summary.Status = models.RunStatusBlockedSkip
		log.Warn().Str("run_id", run.ID).Str("state", StateBlockedSkip).Msg("All sources unavailable, skipping run")
		return nil
	}

	events, fighters := e.validateAll(snapshots)
	summary.EventsFound = len(events)

	state := StateMatching
	today := models.DateOnly(e.cfg.Now())
	baseline, err := e.catalog.ListUpcomingEvents(ctx, today)
	if err != nil {
		log.Error().Err(err).Str("state", state).Msg("Baseline catalog read failed")
		return fmt.Errorf("failed to read baseline catalog: %w", err)
	}

	led := e.loadLedger(ctx)

	// Scraped events apply in ascending date order so near-term cards win
	// any pair-key collisions.
	sortInputsByDate(events)

	matchedIDs := make(map[string]bool, len(baseline))
	var createdThisRun []*models.Event

	for i := range events {
		input := &events[i]

		persisted := e.findMatch(baseline, createdThisRun, input)
		if persisted == nil {
			created, result := e.writeNewEvent(ctx, input, fighters, summary)
			summary.Results = append(summary.Results, result)
			if created != nil {
				createdThisRun = append(createdThisRun, created)
				led.ClearEvent(created.ID)
			}
			continue
		}

		matchedIDs[persisted.ID] = true
		led.SeenEvent(persisted.ID)
		result := e.syncMatchedEvent(ctx, persisted, input, fighters, led, summary)
		summary.Results = append(summary.Results, result)
	}

	// Persisted events no source mentioned this run.
	for _, event := range baseline {
		if matchedIDs[event.ID] {
			continue
		}
		summary.Results = append(summary.Results, e.missEvent(ctx, event, led, summary))
	}

	state = StateLedgerPersist
	if err := e.ledgerStore.Save(ctx, led.State()); err != nil {
		// Catalog writes stand; the ledger catches up next run.
		log.Warn().Err(err).Str("state", state).Msg("Strike ledger flush failed")
		e.sink.Record(audit.LevelWarn, "strike ledger flush failed", map[string]any{
			"run_id": run.ID,
			"error":  err.Error(),
		})
	}
	metrics.UpdateLedgerStats(len(led.State().Events), len(led.State().Fights))

	summary.Status = models.RunStatusCompleted
	if len(summary.Failed()) > 0 || len(summary.SourcesBlocked) > 0 || len(summary.SourcesFailed) > 0 {
		summary.Status = models.RunStatusPartial
	}
	return nil
}

// fetchAll fetches every source, partitioning failures into blocked and
// errored. A blocked or failed source contributes nothing to the run.
func (e *Engine) fetchAll(ctx context.Context, summary *Summary) []*source.Snapshot {
	var snapshots []*source.Snapshot
	for _, adapter := range e.sources {
		start := e.cfg.Now()
		snap, err := adapter.FetchUpcoming(ctx, e.cfg.FetchLimit)
		elapsed := time.Since(start).Seconds()

		switch {
		case source.IsBlocked(err):
			metrics.RecordSourceFetch(adapter.Name(), "blocked", elapsed)
			summary.SourcesBlocked = append(summary.SourcesBlocked, adapter.Name())
			log.Warn().Err(err).Str("source", adapter.Name()).Str("state", StateFetching).Msg("Source blocked access, skipping")
			e.sink.Record(audit.LevelWarn, "source blocked access", map[string]any{
				"source": adapter.Name(),
				"error":  err.Error(),
			})
		case err != nil:
			metrics.RecordSourceFetch(adapter.Name(), "error", elapsed)
			summary.SourcesFailed = append(summary.SourcesFailed, adapter.Name())
			log.Warn().Err(err).Str("source", adapter.Name()).Str("state", StateFetching).Msg("Source fetch failed, skipping")
		default:
			metrics.RecordSourceFetch(adapter.Name(), "success", elapsed)
			snapshots = append(snapshots, snap)
		}
	}
	return snapshots
}

// validateAll flattens the snapshots, dropping invalid records with a log
// line each. Fighters are deduplicated by ID across sources.
func (e *Engine) validateAll(snapshots []*source.Snapshot) ([]models.EventInput, map[string]*models.Fighter) {
	var events []models.EventInput
	fighters := make(map[string]*models.Fighter)

	for _, snap := range snapshots {
		for i := range snap.Events {
			event := snap.Events[i]
			if res := validate.Event(&event); !res.Valid {
				metrics.RecordDroppedRecord("event")
				log.Warn().Str("event", event.Name).Strs("errors", res.Errors).Str("state", StateValidating).Msg("Dropping invalid event")
				continue
			}

			kept := event.Fights[:0]
			for j := range event.Fights {
				fight := event.Fights[j]
				if res := validate.Fight(&fight); !res.Valid {
					metrics.RecordDroppedRecord("fight")
					log.Warn().Str("fight", fight.ID).Strs("errors", res.Errors).Msg("Dropping invalid fight")
					continue
				}
				kept = append(kept, fight)
			}
			event.Fights = kept
			events = append(events, event)
		}

		for i := range snap.Fighters {
			fighter := snap.Fighters[i]
			if res := validate.Fighter(&fighter); !res.Valid {
				metrics.RecordDroppedRecord("fighter")
				log.Warn().Str("fighter", fighter.Name).Strs("errors", res.Errors).Msg("Dropping invalid fighter")
				continue
			}
			if _, ok := fighters[fighter.ID]; !ok {
				fighters[fighter.ID] = fighter.ToFighter()
			}
		}
	}

	return events, fighters
}

// loadLedger loads the strike ledger, falling back to an empty ledger when
// the load fails. Starting empty only delays cancellations, never causes
// spurious ones.
func (e *Engine) loadLedger(ctx context.Context) *ledger.Ledger {
	state, err := e.ledgerStore.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Strike ledger load failed, starting from empty state")
		e.sink.Record(audit.LevelWarn, "strike ledger load failed", map[string]any{
			"error": err.Error(),
		})
		return ledger.New(ledger.NewState())
	}
	return ledger.New(state)
}

// findMatch locates the persisted event a scraped listing refers to. Events
// created earlier in this same run are candidates too, so the same card
// seen through two sources collapses into one row.
func (e *Engine) findMatch(baseline, createdThisRun []*models.Event, input *models.EventInput) *models.Event {
	for _, event := range baseline {
		if e.matcher.SameEvent(event, input) {
			return event
		}
	}
	for _, event := range createdThisRun {
		if e.matcher.SameEvent(event, input) {
			return event
		}
	}
	return nil
}

// writeNewEvent inserts a scraped event, its fighters and its card in one
// transaction. On failure the event is tagged Failed and the run continues.
func (e *Engine) writeNewEvent(ctx context.Context, input *models.EventInput, fighters map[string]*models.Fighter, summary *Summary) (*models.Event, EventResult) {
	event := input.ToEvent()

	var fights []*models.Fight
	for i := range input.Fights {
		fi := input.Fights[i]
		fi.EventID = event.ID
		fights = append(fights, fi.ToFight())
	}

	eventFighters := cardFighters(input, fighters)
	fightersAdded, fightsInserted, err := e.catalog.CreateEventWithCard(ctx, event, eventFighters, fights)
	if err != nil {
		metrics.RecordError("reconcile", "event_create")
		log.Error().Err(err).Str("event", event.ID).Str("state", StateWriting).Msg("New event transaction failed")
		return nil, EventResult{EventID: event.ID, Name: event.Name, Outcome: OutcomeFailed, Err: err}
	}

	// Keep the card attached so a second source matching this event later
	// in the run diffs against it instead of duplicating the card.
	event.Fights = fights

	summary.EventsAdded++
	summary.FightsAdded += fightsInserted
	summary.FightersAdded += fightersAdded
	metrics.EventsAdded.Inc()
	metrics.FightsAdded.Add(float64(fightsInserted))
	metrics.FightersUpserted.Add(float64(len(eventFighters)))

	log.Info().
		Str("event", event.ID).
		Str("name", event.Name).
		Int("fights", fightsInserted).
		Msg("New event added to catalog")

	return event, EventResult{EventID: event.ID, Name: event.Name, Outcome: OutcomeOk}
}

// syncMatchedEvent applies the field and card diff for a matched event in
// one transaction, and routes fights missing from the scrape through the
// fight ledger.
func (e *Engine) syncMatchedEvent(ctx context.Context, persisted *models.Event, input *models.EventInput, fighters map[string]*models.Fighter, led *ledger.Ledger, summary *Summary) EventResult {
	detailsChanged := diffEventDetails(persisted, input)
	diff := diffCard(persisted.Fights, input.Fights, e.matcher.PairKey)

	for _, f := range diff.adds {
		f.EventID = persisted.ID
		f.ID = persisted.ID + "-" + f.Fighter1ID + "-" + f.Fighter2ID
	}
	for _, f := range diff.updates {
		f.EventID = persisted.ID
	}

	// Plan removals from the current counts. Ledger mutations and audit
	// notices wait for the transaction to commit: a failed sync must
	// neither consume a miss streak nor report a removal that never
	// happened.
	type fightMiss struct {
		fight   *models.Fight
		pairKey string
		count   int
		remove  bool
	}
	var misses []fightMiss
	var removeIDs []string
	for _, f := range diff.missing {
		pairKey := e.matcher.PairKey(f.Fighter1Name, f.Fighter2Name)
		count := led.FightCount(persisted.ID, pairKey) + 1
		remove := count >= e.cfg.FightCancelThreshold
		if remove {
			removeIDs = append(removeIDs, f.ID)
		}
		misses = append(misses, fightMiss{fight: f, pairKey: pairKey, count: count, remove: remove})
	}

	upserts := append(append([]*models.Fight{}, diff.adds...), diff.updates...)
	fightersAdded, err := e.catalog.SyncEvent(ctx, persisted, detailsChanged, cardFighters(input, fighters), upserts, removeIDs)
	if err != nil {
		metrics.RecordError("reconcile", "event_sync")
		log.Error().Err(err).Str("event", persisted.ID).Str("state", StateWriting).Msg("Event sync transaction failed")
		return EventResult{EventID: persisted.ID, Name: persisted.Name, Outcome: OutcomeFailed, Err: err}
	}

	for _, f := range diff.adds {
		led.ClearFight(persisted.ID, e.matcher.PairKey(f.Fighter1Name, f.Fighter2Name))
	}
	for _, f := range diff.updates {
		led.SeenFight(persisted.ID, e.matcher.PairKey(f.Fighter1Name, f.Fighter2Name))
	}
	for _, f := range diff.unchanged {
		led.SeenFight(persisted.ID, e.matcher.PairKey(f.Fighter1Name, f.Fighter2Name))
	}

	removed := 0
	now := e.cfg.Now()
	for _, m := range misses {
		if m.remove {
			led.ClearFight(persisted.ID, m.pairKey)
			removed++
			e.sink.Record(audit.LevelError, "fight removed after repeated misses", map[string]any{
				"event_id": persisted.ID,
				"fight_id": m.fight.ID,
				"misses":   m.count,
			})
			continue
		}
		led.MissFight(persisted.ID, m.pairKey, now)
		e.sink.Record(audit.LevelWarn, "fight missing from source", map[string]any{
			"event_id": persisted.ID,
			"fight_id": m.fight.ID,
			"misses":   m.count,
		})
	}

	// Refresh the in-memory card so a later source in this run diffs
	// against what the catalog now holds.
	card := append([]*models.Fight{}, upserts...)
	card = append(card, diff.unchanged...)
	for _, m := range misses {
		if !m.remove {
			card = append(card, m.fight)
		}
	}
	persisted.Fights = card

	if detailsChanged {
		summary.EventsUpdated++
		metrics.EventsUpdated.Inc()
	}
	summary.FightsAdded += len(diff.adds)
	summary.FightsUpdated += len(diff.updates)
	summary.FightsRemoved += removed
	summary.FightersAdded += fightersAdded
	metrics.FightsAdded.Add(float64(len(diff.adds)))
	metrics.FightsUpdated.Add(float64(len(diff.updates)))
	metrics.FightsRemoved.Add(float64(removed))

	if !detailsChanged && len(diff.adds) == 0 && len(diff.updates) == 0 && len(diff.missing) == 0 {
		return EventResult{EventID: persisted.ID, Name: persisted.Name, Outcome: OutcomeSkipped, Reason: "no changes"}
	}
	return EventResult{EventID: persisted.ID, Name: persisted.Name, Outcome: OutcomeOk}
}

// missEvent records one missed run for a persisted event nothing scraped,
// cancelling it once the threshold is crossed.
func (e *Engine) missEvent(ctx context.Context, event *models.Event, led *ledger.Ledger, summary *Summary) EventResult {
	count := led.MissEvent(event.ID, e.cfg.Now())
	if count < e.cfg.EventCancelThreshold {
		e.sink.Record(audit.LevelWarn, "event missing from all sources", map[string]any{
			"event_id": event.ID,
			"name":     event.Name,
			"misses":   count,
		})
		return EventResult{EventID: event.ID, Name: event.Name, Outcome: OutcomeSkipped, Reason: "missing below threshold"}
	}

	if err := e.catalog.MarkEventCompleted(ctx, event.ID); err != nil {
		metrics.RecordError("reconcile", "event_cancel")
		log.Error().Err(err).Str("event", event.ID).Str("state", StateWriting).Msg("Event cancellation failed")
		return EventResult{EventID: event.ID, Name: event.Name, Outcome: OutcomeFailed, Err: err}
	}

	led.ClearEvent(event.ID)
	summary.EventsCancelled++
	metrics.EventsCancelled.Inc()
	e.sink.Record(audit.LevelError, "event cancelled after repeated misses", map[string]any{
		"event_id": event.ID,
		"name":     event.Name,
		"misses":   count,
	})
	log.Warn().Str("event", event.ID).Str("name", event.Name).Int("misses", count).Msg("Event cancelled")

	return EventResult{EventID: event.ID, Name: event.Name, Outcome: OutcomeOk}
}

// cardFighters picks the snapshot fighters appearing on one event's card.
func cardFighters(input *models.EventInput, fighters map[string]*models.Fighter) []*models.Fighter {
	var out []*models.Fighter
	seen := make(map[string]bool)
	for _, f := range input.Fights {
		for _, id := range []string{f.Fighter1ID, f.Fighter2ID} {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			if fighter, ok := fighters[id]; ok {
				out = append(out, fighter)
			}
		}
	}
	return out
}

func sortInputsByDate(events []models.EventInput) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ParsedDate().Before(events[j].ParsedDate())
	})
}
