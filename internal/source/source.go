// Package source defines the contract for external event sources and ships
// the UFCStats adapter. Sources are untrusted: any of them may return partial
// data, nothing at all, or an explicit block signal, and the reconciler has
// to tell those cases apart.
package source

import (
	"context"
	"errors"
	"fmt"

	"fightsync/reconciler/internal/models"
)

// ErrBlocked is the sentinel for "the source actively refused us" (access
// denial, rate limiting). A blocked source must never be treated as "every
// event disappeared", so callers check errors.Is(err, ErrBlocked) before
// touching the strike ledger.
var ErrBlocked = errors.New("source blocked the request")

// BlockError carries the block details alongside the sentinel.
type BlockError struct {
	Source     string
	StatusCode int
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("source %s blocked the request (status %d)", e.Source, e.StatusCode)
}

func (e *BlockError) Unwrap() error { return ErrBlocked }

// IsBlocked reports whether err is a source block signal.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrBlocked)
}

// Snapshot is one source's view of the upcoming schedule: event listings
// with their fight cards attached, plus every fighter referenced by them.
type Snapshot struct {
	Events   []models.EventInput
	Fighters []models.FighterInput
}

// Adapter fetches upcoming events from one external source.
type Adapter interface {
	// Name identifies the source in logs, metrics and audit events.
	Name() string

	// FetchUpcoming returns up to limit upcoming events, nearest first.
	// Returns a *BlockError (wrapping ErrBlocked) when the source refuses
	// access; any other error is a generic network/parse failure.
	FetchUpcoming(ctx context.Context, limit int) (*Snapshot, error)
}
