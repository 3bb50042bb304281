package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_MissMonotonicallyIncreases(t *testing.T) {
	l := New(NewState())
	now := time.Now()

	assert.Equal(t, 1, l.MissEvent("UFC-320", now))
	assert.Equal(t, 2, l.MissEvent("UFC-320", now.Add(6*time.Hour)))
	assert.Equal(t, 3, l.MissEvent("UFC-320", now.Add(12*time.Hour)))
	assert.Equal(t, 3, l.EventCount("UFC-320"))
}

func TestLedger_ReappearanceResetsStreak(t *testing.T) {
	l := New(NewState())
	now := time.Now()

	l.MissEvent("UFC-320", now)
	l.MissEvent("UFC-320", now)
	require.Equal(t, 2, l.EventCount("UFC-320"))

	// One reappearance deletes the entry entirely, even below threshold.
	l.SeenEvent("UFC-320")
	assert.Equal(t, 0, l.EventCount("UFC-320"))
	assert.NotContains(t, l.State().Events, "UFC-320")

	// The streak starts over from one afterwards.
	assert.Equal(t, 1, l.MissEvent("UFC-320", now))
}

func TestLedger_FightEntriesIndependentOfEvent(t *testing.T) {
	l := New(NewState())
	now := time.Now()

	pair := "ankalaev|pereira"
	assert.Equal(t, 1, l.MissFight("UFC-320", pair, now))
	assert.Equal(t, 2, l.MissFight("UFC-320", pair, now))
	assert.Equal(t, 0, l.EventCount("UFC-320"))

	l.SeenFight("UFC-320", pair)
	assert.Equal(t, 0, l.FightCount("UFC-320", pair))
}

func TestLedger_ClearEventRemovesFightEntries(t *testing.T) {
	l := New(NewState())
	now := time.Now()

	l.MissEvent("UFC-320", now)
	l.MissFight("UFC-320", "a|b", now)
	l.MissFight("UFC-320", "c|d", now)
	l.MissFight("UFC-321", "e|f", now)

	l.ClearEvent("UFC-320")

	assert.Empty(t, l.State().Events)
	assert.Len(t, l.State().Fights, 1)
	assert.Equal(t, 1, l.FightCount("UFC-321", "e|f"))
}

func TestLedger_LastSeenStamped(t *testing.T) {
	l := New(NewState())
	now := time.Date(2025, 10, 4, 3, 0, 0, 0, time.UTC)

	l.MissEvent("UFC-320", now)
	assert.Equal(t, now, l.State().Events["UFC-320"].LastSeen)

	later := now.Add(6 * time.Hour)
	l.MissEvent("UFC-320", later)
	assert.Equal(t, later, l.State().Events["UFC-320"].LastSeen)
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.json")
	store := NewFileStore(path)

	// Missing file loads as empty state.
	state, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.Events)
	assert.Empty(t, state.Fights)

	now := time.Date(2025, 10, 4, 3, 0, 0, 0, time.UTC)
	l := New(state)
	l.MissEvent("UFC-320", now)
	l.MissFight("UFC-320", "a|b", now)
	require.NoError(t, store.Save(ctx, l.State()))

	reloaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Events["UFC-320"].Count)
	assert.True(t, reloaded.Events["UFC-320"].LastSeen.Equal(now))
	assert.Equal(t, 1, reloaded.Fights[FightKey("UFC-320", "a|b")].Count)
}

func TestFileStore_DeleteResetsAllStrikes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.json")
	store := NewFileStore(path)

	l := New(NewState())
	l.MissEvent("UFC-320", time.Now())
	require.NoError(t, store.Save(ctx, l.State()))

	require.NoError(t, os.Remove(path))

	state, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.Events)
}

func TestFileStore_CorruptFileErrors(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Load(ctx)
	assert.Error(t, err)
}
