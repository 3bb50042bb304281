// Package match decides whether two differently-named records refer to the
// same real-world event or fight. Sources disagree on naming ("UFC Fight
// Night: de Ridder vs. Allen" vs "UFC Fight Night 262 - De Ridder vs. Allen"),
// so event matching layers normalization, numbered-event extraction and
// Levenshtein similarity. Everything here is pure.
package match

import (
	"regexp"
	"strconv"
	"strings"

	"fightsync/reconciler/internal/models"
)

// Similarity thresholds for the fuzzy fallbacks. Matching is deliberately
// precision-over-recall: a missed match costs one redundant strike, a wrong
// match silently merges two unrelated cards.
const (
	pairSimilarityFloor = 0.8
	nameSimilarityFloor = 0.9
)

// Matcher decides identity between persisted and freshly scraped records.
type Matcher interface {
	// SameEvent reports whether a persisted event and a scraped listing
	// refer to the same real-world card.
	SameEvent(persisted *models.Event, scraped *models.EventInput) bool

	// PairKey builds the unordered fighter-pair key that identifies a fight
	// within its event.
	PairKey(fighter1, fighter2 string) string
}

// Default is the production Matcher.
type Default struct{}

func New() Default { return Default{} }

var (
	punctPattern      = regexp.MustCompile(`[^\pL\pN\s]+`)
	spacePattern      = regexp.MustCompile(`\s+`)
	fightNightPattern = regexp.MustCompile(`\bfight night\s*\d*\b`)
	versusPattern     = regexp.MustCompile(`\s+(?:vs\.?|v\.)\s+`)
	headerPattern     = regexp.MustCompile(`(?i)^\s*(?:ufc\s+fight\s+night(?:\s+\d+)?\s*[:\-]|ufc\s+\d+\s*[:\-]|ufc\s*[:\-])\s*`)
	rematchPattern    = regexp.MustCompile(`\s+\d+$`)
)

// promotionTokens are leading organization tokens stripped during
// normalization so "UFC 320" and "320" compare equal.
var promotionTokens = map[string]bool{"ufc": true}

// Normalize lowercases the name, strips a leading promotion token, collapses
// "fight night ###" to the canonical "fn" token, removes punctuation and
// collapses whitespace. Two listings of the same card from different sources
// normalize to the same string far more often than they compare equal raw.
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = punctPattern.ReplaceAllString(s, " ")
	s = spacePattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if i := strings.IndexByte(s, ' '); i > 0 && promotionTokens[s[:i]] {
		s = s[i+1:]
	}
	s = fightNightPattern.ReplaceAllString(s, "fn")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeFighter normalizes one fighter's display name for pair keys.
func NormalizeFighter(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = punctPattern.ReplaceAllString(s, " ")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// PairKey returns the unordered normalized fighter-pair key. The same two
// fighters always produce the same key regardless of listing order.
func (Default) PairKey(fighter1, fighter2 string) string {
	return PairKey(fighter1, fighter2)
}

// PairKey is the package-level form of Default.PairKey.
func PairKey(fighter1, fighter2 string) string {
	a, b := NormalizeFighter(fighter1), NormalizeFighter(fighter2)
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// leadingNumber extracts a numbered-event identifier: a bare integer as the
// first token of the normalized name ("320 ankalaev vs pereira 2" -> 320).
func leadingNumber(normalized string) (int, bool) {
	tok := normalized
	if i := strings.IndexByte(normalized, ' '); i >= 0 {
		tok = normalized[:i]
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsFightNight reports whether the raw name is a "Fight Night" style card.
func IsFightNight(name string) bool {
	return strings.Contains(strings.ToLower(name), "fight night")
}

// ExtractMainEventPair parses the "Fighter A vs Fighter B" span out of an
// event name, tolerating the common header shapes ("UFC 320:", "UFC Fight
// Night:", "UFC Fight Night 262 -"). ok is false when no plausible pair is
// present.
func ExtractMainEventPair(name string) (a, b string, ok bool) {
	s := headerPattern.ReplaceAllString(name, "")
	s = strings.TrimSpace(s)

	parts := versusPattern.Split(s, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	a = NormalizeFighter(parts[0])
	b = NormalizeFighter(parts[1])
	// Trailing rematch numbers ("pereira 2") belong to the bout, not the name.
	b = strings.TrimSpace(rematchPattern.ReplaceAllString(b, ""))
	if a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

// Similarity is the Levenshtein-normalized similarity of two strings:
// 1 - distance/max(len). 1.0 means equal, 0.0 means nothing in common.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes edit distance over runes with a two-row matrix.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// SameEvent implements the ordered matching algorithm, short-circuiting on
// the first hit:
//
//  1. equal normalized names
//  2. same numbered-event identifier on the same calendar date
//  3. substring containment of normalized names, same date
//  4. equal (or, between two fight-night cards, >=0.8 similar) main-event
//     fighter pairs, same date
//  5. whole-name similarity >=0.9, same date
//
// Two events on different calendar dates never match, whatever the names
// look like. When either side lacks a usable date only step 1 applies.
func (Default) SameEvent(persisted *models.Event, scraped *models.EventInput) bool {
	np := Normalize(persisted.Name)
	ns := Normalize(scraped.Name)

	scrapedDate := scraped.ParsedDate()
	datesKnown := !persisted.Date.IsZero() && !scrapedDate.IsZero()
	sameDay := datesKnown && models.SameDay(persisted.Date, scrapedDate)
	if datesKnown && !sameDay {
		return false
	}

	// 1. Exact normalized match.
	if np != "" && np == ns {
		return true
	}
	if !sameDay {
		return false
	}

	// 2. Numbered-event match.
	if pn, ok := leadingNumber(np); ok {
		if sn, ok := leadingNumber(ns); ok && pn == sn {
			return true
		}
	}

	// 3. Substring containment (one source abbreviating).
	if np != "" && ns != "" && (strings.Contains(np, ns) || strings.Contains(ns, np)) {
		return true
	}

	// 4. Main-event fighter-pair extraction.
	pa, pb, pok := ExtractMainEventPair(persisted.Name)
	sa, sb, sok := ExtractMainEventPair(scraped.Name)
	if pok && sok {
		if PairKey(pa, pb) == PairKey(sa, sb) {
			return true
		}
		if IsFightNight(persisted.Name) && IsFightNight(scraped.Name) {
			if Similarity(pa+" "+pb, sa+" "+sb) >= pairSimilarityFloor {
				return true
			}
		}
	}

	// 5. Whole-name similarity fallback.
	return Similarity(np, ns) >= nameSimilarityFloor
}
