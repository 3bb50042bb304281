package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"fightsync/reconciler/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

const ufcstatsDateLayout = "January 02, 2006"

// UFCStatsAdapter scrapes upcoming events from a ufcstats.com-style stats
// site: an events listing page, one detail page per event with the fight
// card and fighter links.
type UFCStatsAdapter struct {
	baseURL string
	listURL string
	client  *httpClient
	now     func() time.Time
}

// NewUFCStatsAdapter creates the adapter. baseURL is the site root, e.g.
// "http://ufcstats.com".
func NewUFCStatsAdapter(baseURL string, timeout time.Duration) *UFCStatsAdapter {
	base := strings.TrimRight(baseURL, "/")
	return &UFCStatsAdapter{
		baseURL: base,
		listURL: base + "/statistics/events/completed",
		client:  newHTTPClient("ufcstats", timeout),
		now:     time.Now,
	}
}

// Name implements Adapter.
func (a *UFCStatsAdapter) Name() string { return "ufcstats" }

// FetchUpcoming implements Adapter: it parses the events listing, keeps
// events dated today or later, sorts them nearest-first and scrapes the
// detail page of the first limit events.
func (a *UFCStatsAdapter) FetchUpcoming(ctx context.Context, limit int) (*Snapshot, error) {
	body, err := a.client.get(ctx, a.listURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events list: %w", err)
	}

	listings, err := parseEventList(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse events list: %w", err)
	}

	today := models.DateOnly(a.now())
	upcoming := listings[:0]
	for _, l := range listings {
		d := l.ParsedDate()
		if !d.IsZero() && !d.Before(today) {
			upcoming = append(upcoming, l)
		}
	}
	// Listing order is newest-first; the engine wants nearest-first.
	for i, j := 0, len(upcoming)-1; i < j; i, j = i+1, j-1 {
		upcoming[i], upcoming[j] = upcoming[j], upcoming[i]
	}
	if limit > 0 && len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}

	log.Info().
		Str("source", a.Name()).
		Int("total", len(listings)).
		Int("upcoming", len(upcoming)).
		Msg("Events list parsed")

	snapshot := &Snapshot{}
	seenFighters := make(map[string]bool)
	for _, listing := range upcoming {
		detailBody, err := a.client.get(ctx, listing.SourceURL)
		if err != nil {
			// A block on any page is a block on the whole source.
			if IsBlocked(err) {
				return nil, err
			}
			log.Warn().
				Err(err).
				Str("source", a.Name()).
				Str("event", listing.Name).
				Msg("Failed to fetch event detail, skipping event")
			continue
		}

		event, fighters, err := parseEventDetail(detailBody, listing)
		if err != nil {
			log.Warn().
				Err(err).
				Str("source", a.Name()).
				Str("event", listing.Name).
				Msg("Failed to parse event detail, skipping event")
			continue
		}

		snapshot.Events = append(snapshot.Events, *event)
		for _, f := range fighters {
			if !seenFighters[f.ID] {
				seenFighters[f.ID] = true
				snapshot.Fighters = append(snapshot.Fighters, f)
			}
		}
	}

	return snapshot, nil
}

// parseEventList extracts event listings from the statistics table on the
// events index page.
func parseEventList(body []byte) ([]models.EventInput, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var events []models.EventInput
	doc.Find("table.b-statistics__table-events tbody tr").Each(func(_ int, row *goquery.Selection) {
		link := row.Find("a.b-link").First()
		href := strings.TrimSpace(link.AttrOr("href", ""))
		name := strings.TrimSpace(link.Text())
		if href == "" || name == "" {
			return
		}

		dateText := strings.TrimSpace(row.Find("span.b-statistics__date").First().Text())
		location := ""
		cols := row.Find("td.b-statistics__table-col")
		if cols.Length() >= 2 {
			location = strings.TrimSpace(cols.Eq(1).Text())
		}

		events = append(events, models.EventInput{
			ID:        idFromURL(href, name),
			Name:      name,
			Date:      isoDate(dateText),
			Location:  location,
			SourceURL: href,
		})
	})

	return events, nil
}

// parseEventDetail extracts the full card from an event detail page. The
// listing supplies the fallbacks for anything missing on the page.
func parseEventDetail(body []byte, listing models.EventInput) (*models.EventInput, []models.FighterInput, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}

	event := listing

	if title := strings.TrimSpace(doc.Find("h2.b-content__title span.b-content__title-highlight").First().Text()); title != "" {
		event.Name = title
	}

	doc.Find("ul.b-list__box-list li.b-list__box-list-item").Each(func(_ int, item *goquery.Selection) {
		text := strings.TrimSpace(item.Text())
		switch {
		case strings.Contains(text, "Date:"):
			if iso := isoDate(afterLabel(text, "Date:")); iso != "" {
				event.Date = iso
			}
		case strings.Contains(text, "Location:"):
			loc := afterLabel(text, "Location:")
			event.Location = loc
			// First comma-separated part doubles as the venue/city.
			if parts := strings.SplitN(loc, ",", 2); len(parts) > 0 {
				event.Venue = strings.TrimSpace(parts[0])
			}
		}
	})

	var fighters []models.FighterInput
	seen := make(map[string]bool)
	fightIdx := 0

	doc.Find("table.b-fight-details__table tbody tr").Each(func(_ int, row *goquery.Selection) {
		links := row.Find(`a[href*="fighter-details"]`)
		if links.Length() < 2 {
			return
		}
		fightIdx++

		f1URL := strings.TrimSpace(links.Eq(0).AttrOr("href", ""))
		f2URL := strings.TrimSpace(links.Eq(1).AttrOr("href", ""))
		f1Name := strings.TrimSpace(links.Eq(0).Text())
		f2Name := strings.TrimSpace(links.Eq(1).Text())
		f1ID := idFromURL(f1URL, f1Name)
		f2ID := idFromURL(f2URL, f2Name)

		weightClass := ""
		titleFight := false
		row.Find("td.b-fight-details__table-col").Each(func(_ int, cell *goquery.Selection) {
			text := strings.TrimSpace(cell.Text())
			if strings.Contains(text, "Title") {
				titleFight = true
			}
			if weightClass == "" && strings.Contains(strings.ToLower(text), "weight") {
				wc := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
				wc = strings.TrimSpace(strings.TrimSuffix(wc, "Title"))
				weightClass = wc
			}
		})

		num := fightIdx
		mainEvent := fightIdx == 1
		rounds := 3
		if mainEvent || titleFight {
			rounds = 5
		}

		event.Fights = append(event.Fights, models.FightInput{
			ID:              event.ID + "-" + f1ID + "-" + f2ID,
			EventID:         event.ID,
			Fighter1ID:      f1ID,
			Fighter2ID:      f2ID,
			Fighter1Name:    f1Name,
			Fighter2Name:    f2Name,
			WeightClass:     weightClass,
			TitleFight:      titleFight,
			MainEvent:       mainEvent,
			CardPosition:    cardPosition(fightIdx),
			ScheduledRounds: &rounds,
			FightNumber:     &num,
			SourceURL:       listing.SourceURL,
		})

		for _, f := range []struct {
			id, name, url string
		}{{f1ID, f1Name, f1URL}, {f2ID, f2Name, f2URL}} {
			if f.id != "" && !seen[f.id] {
				seen[f.id] = true
				fighters = append(fighters, models.FighterInput{
					ID:          f.id,
					Name:        f.name,
					WeightClass: weightClass,
					SourceURL:   f.url,
				})
			}
		}
	})

	return &event, fighters, nil
}

func cardPosition(fightNumber int) string {
	switch fightNumber {
	case 1:
		return "Main Event"
	case 2:
		return "Co-Main Event"
	case 3, 4, 5:
		return "Main Card"
	default:
		return "Prelims"
	}
}

// idFromURL takes the last URL path segment as the record ID, falling back
// to a slug of the display name.
func idFromURL(url, fallbackName string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndexByte(url, '/'); i >= 0 && i+1 < len(url) {
		return url[i+1:]
	}
	return strings.Join(strings.Fields(fallbackName), "-")
}

// isoDate converts the site's "November 01, 2025" date text to ISO 8601.
// Unparseable text is passed through untouched so the validator can report
// it instead of it silently vanishing.
func isoDate(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if t, err := time.Parse(ufcstatsDateLayout, text); err == nil {
		return t.Format("2006-01-02")
	}
	return text
}

func afterLabel(text, label string) string {
	if i := strings.Index(text, label); i >= 0 {
		return strings.TrimSpace(text[i+len(label):])
	}
	return strings.TrimSpace(text)
}
