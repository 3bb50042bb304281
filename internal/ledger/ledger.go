// Package ledger tracks consecutive "missing from scrape" counts per event
// and per fight, independent of the main catalog. The counts gate the
// destructive actions of the reconciler: an event is only cancelled, and a
// fight only dropped, after it has been absent for a configured number of
// consecutive runs. The ledger records absences only, never successes.
package ledger

import (
	"context"
	"time"
)

// Entry is one miss streak.
type Entry struct {
	Count    int       `json:"count"`
	LastSeen time.Time `json:"lastSeen"`
}

// State is the full persisted ledger: one flat map per entity kind. Deleting
// the persisted state resets every strike, which is a supported operation.
type State struct {
	// Events is keyed by event ID.
	Events map[string]Entry `json:"events"`
	// Fights is keyed by FightKey(eventID, pairKey).
	Fights map[string]Entry `json:"fights"`
}

// NewState returns an empty ledger state.
func NewState() State {
	return State{
		Events: make(map[string]Entry),
		Fights: make(map[string]Entry),
	}
}

// Store persists ledger state between runs. The medium is swappable: a flat
// JSON file by default, Redis when configured.
type Store interface {
	// Load reads the persisted state. A missing ledger is an empty state,
	// not an error.
	Load(ctx context.Context) (State, error)

	// Save replaces the persisted state.
	Save(ctx context.Context, state State) error
}

// FightKey builds the fight-level ledger key from the owning event and the
// normalized fighter-pair key.
func FightKey(eventID, pairKey string) string {
	return eventID + "|" + pairKey
}

// Ledger applies miss/seen transitions to an in-memory state. The engine
// owns the lifecycle: load at run start, mutate during the run, save at run
// end whatever the outcome.
type Ledger struct {
	state State
}

// New wraps a loaded state. Nil maps are tolerated so a zero State works.
func New(state State) *Ledger {
	if state.Events == nil {
		state.Events = make(map[string]Entry)
	}
	if state.Fights == nil {
		state.Fights = make(map[string]Entry)
	}
	return &Ledger{state: state}
}

// State returns the current state for persistence.
func (l *Ledger) State() State { return l.state }

// MissEvent records one missed run for an event and returns the new
// consecutive-miss count.
func (l *Ledger) MissEvent(eventID string, now time.Time) int {
	return miss(l.state.Events, eventID, now)
}

// MissFight records one missed run for a fight and returns the new count.
func (l *Ledger) MissFight(eventID, pairKey string, now time.Time) int {
	return miss(l.state.Fights, FightKey(eventID, pairKey), now)
}

// SeenEvent clears an event's miss streak. A single reappearance fully
// resets the streak regardless of how close to the threshold it was.
func (l *Ledger) SeenEvent(eventID string) {
	delete(l.state.Events, eventID)
}

// SeenFight clears a fight's miss streak.
func (l *Ledger) SeenFight(eventID, pairKey string) {
	delete(l.state.Fights, FightKey(eventID, pairKey))
}

// ClearEvent removes an event entry and every fight entry under that event.
// Called when the threshold-crossing action has consumed the strikes.
func (l *Ledger) ClearEvent(eventID string) {
	delete(l.state.Events, eventID)
	prefix := eventID + "|"
	for key := range l.state.Fights {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(l.state.Fights, key)
		}
	}
}

// ClearFight removes a fight entry after the drop action consumed it.
func (l *Ledger) ClearFight(eventID, pairKey string) {
	delete(l.state.Fights, FightKey(eventID, pairKey))
}

// EventCount returns the current miss count for an event, zero if none.
func (l *Ledger) EventCount(eventID string) int {
	return l.state.Events[eventID].Count
}

// FightCount returns the current miss count for a fight, zero if none.
func (l *Ledger) FightCount(eventID, pairKey string) int {
	return l.state.Fights[FightKey(eventID, pairKey)].Count
}

func miss(entries map[string]Entry, key string, now time.Time) int {
	entry := entries[key]
	entry.Count++
	entry.LastSeen = now
	entries[key] = entry
	return entry.Count
}
