package match

import (
	"testing"
	"time"

	"fightsync/reconciler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func persisted(name, date string) *models.Event {
	return &models.Event{ID: "evt", Name: name, Date: day(date)}
}

func scraped(name, date string) *models.EventInput {
	return &models.EventInput{ID: "scraped", Name: name, Date: date}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips promotion prefix", "UFC 320: Ankalaev vs. Pereira 2", "320 ankalaev vs pereira 2"},
		{"collapses fight night number", "UFC Fight Night 262 - De Ridder vs. Allen", "fn de ridder vs allen"},
		{"collapses plain fight night", "UFC Fight Night: de Ridder vs. Allen", "fn de ridder vs allen"},
		{"strips punctuation and case", "UFC 299: O'Malley vs. Vera 2", "299 o malley vs vera 2"},
		{"collapses whitespace", "  UFC   300:   Pereira    vs Hill ", "300 pereira vs hill"},
		{"no prefix untouched", "Bellator 301", "bellator 301"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestSameEvent_NormalizedEquality(t *testing.T) {
	m := New()

	// Names differing only by promotion-prefix casing and punctuation match
	// on equal dates.
	assert.True(t, m.SameEvent(
		persisted("UFC 320: Ankalaev vs. Pereira 2", "2025-10-04"),
		scraped("ufc 320 Ankalaev vs Pereira 2", "2025-10-04"),
	))

	// Same names, different days: never merged.
	assert.False(t, m.SameEvent(
		persisted("UFC 320: Ankalaev vs. Pereira 2", "2025-10-04"),
		scraped("UFC 320: Ankalaev vs. Pereira 2", "2025-10-11"),
	))
}

func TestSameEvent_FightNightShapes(t *testing.T) {
	m := New()

	p := persisted("UFC Fight Night: de Ridder vs. Allen", "2025-07-26")

	assert.True(t, m.SameEvent(p, scraped("UFC Fight Night 262 - De Ridder vs. Allen", "2025-07-26")))
	assert.False(t, m.SameEvent(p, scraped("UFC Fight Night 262 - De Ridder vs. Allen", "2025-08-02")))
}

func TestSameEvent_UnrelatedCards(t *testing.T) {
	m := New()

	p := persisted("UFC 320: Ankalaev vs. Pereira 2", "2025-10-04")
	s := scraped("UFC Fight Night: Ulberg vs. Reyes", "2025-10-04")

	// Same date, entirely different cards.
	assert.False(t, m.SameEvent(p, s))
	assert.False(t, m.SameEvent(p, scraped("UFC Fight Night: Ulberg vs. Reyes", "2025-11-01")))
}

func TestSameEvent_NumberedEvent(t *testing.T) {
	m := New()

	// The number wins even when the subtitle disagrees (a source that
	// renamed the co-headliner).
	assert.True(t, m.SameEvent(
		persisted("UFC 308: Topuria vs. Holloway", "2024-10-26"),
		scraped("UFC 308: Topuria vs. Max Holloway", "2024-10-26"),
	))
	assert.False(t, m.SameEvent(
		persisted("UFC 308: Topuria vs. Holloway", "2024-10-26"),
		scraped("UFC 309: Jones vs. Miocic", "2024-10-26"),
	))
}

func TestSameEvent_SubstringContainment(t *testing.T) {
	m := New()

	assert.True(t, m.SameEvent(
		persisted("UFC 311: Makhachev vs. Tsarukyan 2", "2025-01-18"),
		scraped("Makhachev vs. Tsarukyan 2", "2025-01-18"),
	))
}

func TestSameEvent_MissingDates(t *testing.T) {
	m := New()

	p := persisted("UFC Fight Night: Ulberg vs. Reyes", "2025-09-27")

	// Without a scraped date only exact normalized equality is trusted.
	assert.True(t, m.SameEvent(p, &models.EventInput{Name: "UFC Fight Night: Ulberg vs Reyes"}))
	assert.False(t, m.SameEvent(p, &models.EventInput{Name: "UFC Vegas 110: Ulberg vs. Reyes"}))
}

func TestExtractMainEventPair(t *testing.T) {
	tests := []struct {
		in     string
		a, b   string
		wantOK bool
	}{
		{"UFC Fight Night: de Ridder vs. Allen", "de ridder", "allen", true},
		{"UFC Fight Night 262 - De Ridder vs. Allen", "de ridder", "allen", true},
		{"UFC 320: Ankalaev vs. Pereira 2", "ankalaev", "pereira", true},
		{"Topuria v. Holloway", "topuria", "holloway", true},
		{"UFC 300", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a, b, ok := ExtractMainEventPair(tt.in)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.a, a)
				assert.Equal(t, tt.b, b)
			}
		})
	}
}

func TestPairKey(t *testing.T) {
	// Unordered and normalized.
	assert.Equal(t, PairKey("Jon Jones", "Stipe Miocic"), PairKey("Stipe Miocic", "Jon Jones"))
	assert.Equal(t, PairKey("O'Malley", "Vera"), PairKey("o malley", "VERA"))
	assert.NotEqual(t, PairKey("Jones", "Miocic"), PairKey("Jones", "Gane"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("abc", "abc"))
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.InDelta(t, 0.8, Similarity("abcde", "abcdx"), 1e-9)
	assert.Less(t, Similarity("ulberg reyes", "ankalaev pereira"), 0.5)

	// Fight-night pair tolerance: small spelling drift stays above the floor.
	assert.GreaterOrEqual(t, Similarity("de ridder allen", "deridder allen"), 0.8)
}
