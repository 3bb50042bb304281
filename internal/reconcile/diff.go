package reconcile

import (
	"database/sql"

	"fightsync/reconciler/internal/models"
)

// diffEventDetails applies the scraped field values to the persisted event
// and reports whether anything changed. Only scrape-owned fields move:
// date, location, venue, name and source URL.
func diffEventDetails(persisted *models.Event, scraped *models.EventInput) bool {
	changed := false

	if d := scraped.ParsedDate(); !d.IsZero() && !models.SameDay(persisted.Date, d) {
		persisted.Date = d
		changed = true
	}
	if scraped.Name != "" && scraped.Name != persisted.Name {
		persisted.Name = scraped.Name
		changed = true
	}
	if scraped.Location != "" && scraped.Location != persisted.Location.String {
		persisted.Location = sql.NullString{String: scraped.Location, Valid: true}
		changed = true
	}
	if scraped.Venue != "" && scraped.Venue != persisted.Venue.String {
		persisted.Venue = sql.NullString{String: scraped.Venue, Valid: true}
		changed = true
	}
	if scraped.SourceURL != "" && scraped.SourceURL != persisted.SourceURL.String {
		persisted.SourceURL = sql.NullString{String: scraped.SourceURL, Valid: true}
		changed = true
	}

	return changed
}

// cardDiff is the reconciliation plan for one matched event's fight card.
type cardDiff struct {
	adds      []*models.Fight // pair key absent from the stored card
	updates   []*models.Fight // pair key present, details changed; upsert preserving predictions
	unchanged []*models.Fight // pair key present, nothing to write
	missing   []*models.Fight // stored fights absent from the scrape
}

// diffCard compares the persisted fight card against the scraped one by
// unordered fighter pair key. Scraped fights inherit the persisted fight's
// ID when the pair matches, so upserts target the existing row. Matched
// fights whose scraped details add nothing are reported unchanged and never
// written.
func diffCard(persisted []*models.Fight, scraped []models.FightInput, pairKey func(a, b string) string) cardDiff {
	stored := make(map[string]*models.Fight, len(persisted))
	for _, f := range persisted {
		stored[pairKey(f.Fighter1Name, f.Fighter2Name)] = f
	}

	var diff cardDiff
	seen := make(map[string]bool, len(scraped))
	for i := range scraped {
		in := scraped[i]
		key := pairKey(in.Fighter1Name, in.Fighter2Name)
		if seen[key] {
			continue // same bout listed twice on the source page
		}
		seen[key] = true

		fight := in.ToFight()
		existing, ok := stored[key]
		switch {
		case !ok:
			diff.adds = append(diff.adds, fight)
		case fightChanged(existing, fight):
			fight.ID = existing.ID
			diff.updates = append(diff.updates, fight)
		default:
			diff.unchanged = append(diff.unchanged, existing)
		}
	}

	for key, f := range stored {
		if !seen[key] {
			diff.missing = append(diff.missing, f)
		}
	}

	return diff
}

// fightChanged mirrors the upsert's column ownership: name, title and
// main-event flags always move, the optional columns only when the scrape
// supplied a value. A fight where no owned column moves is a no-op write.
func fightChanged(existing, scraped *models.Fight) bool {
	if scraped.Fighter1Name != existing.Fighter1Name || scraped.Fighter2Name != existing.Fighter2Name {
		return true
	}
	if scraped.TitleFight != existing.TitleFight || scraped.MainEvent != existing.MainEvent {
		return true
	}
	if scraped.WeightClass.Valid && scraped.WeightClass != existing.WeightClass {
		return true
	}
	if scraped.CardPosition.Valid && scraped.CardPosition != existing.CardPosition {
		return true
	}
	if scraped.ScheduledRounds.Valid && scraped.ScheduledRounds != existing.ScheduledRounds {
		return true
	}
	if scraped.FightNumber.Valid && scraped.FightNumber != existing.FightNumber {
		return true
	}
	return false
}
