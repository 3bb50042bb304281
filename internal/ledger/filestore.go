package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// FileStore persists the ledger as one flat JSON file. Writes go through a
// temp file and rename so a crash mid-write never leaves a truncated ledger.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the ledger file. A missing file is an empty ledger: deleting
// the file is the documented way to reset all strikes.
func (s *FileStore) Load(ctx context.Context) (State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("path", s.path).Msg("No ledger file, starting with empty state")
		return NewState(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to read ledger file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("failed to parse ledger file %s: %w", s.path, err)
	}
	if state.Events == nil {
		state.Events = make(map[string]Entry)
	}
	if state.Fights == nil {
		state.Fights = make(map[string]Entry)
	}
	return state, nil
}

// Save writes the ledger atomically.
func (s *FileStore) Save(ctx context.Context, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ledger temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}
