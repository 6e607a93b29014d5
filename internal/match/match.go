// Package match scores how well locally-known album titles line up with a
// catalog artist's release titles. The aggregate confidence score is the
// basis for accepting or rejecting a catalog identity.
package match

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// stopWords are filler tokens stripped before comparison. Reissue and
// packaging noise ("Deluxe Edition", "Disc 2") otherwise drags down scores
// for titles that name the same release.
var stopWords = map[string]bool{
	"remastered": true,
	"deluxe":     true,
	"expanded":   true,
	"edition":    true,
	"special":    true,
	"bonus":      true,
	"disc":       true,
	"cd":         true,
	"lp":         true,
}

// punctuation matches non-alphanumeric, non-space characters.
var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// multiSpace collapses multiple whitespace chars into one.
var multiSpace = regexp.MustCompile(`\s+`)

// substringFloor is the minimum similarity for titles where one normalized
// form contains the other. Containment is a strong signal that a raw
// edit-distance ratio undervalues.
const substringFloor = 0.8

// Confidence level thresholds.
const (
	highThreshold   = 0.75
	mediumThreshold = 0.5
	lowThreshold    = 0.2
)

// Level is the categorical confidence bucket for an identity mapping.
type Level string

// Confidence levels, lowest to highest.
const (
	LevelNone   Level = "none"
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Match pairs a local album title with the catalog release title it scored
// best against.
type Match struct {
	LocalTitle   string
	CatalogTitle string
	Score        float64
}

// Normalize prepares an album title for comparison: lowercase, punctuation
// stripped to whitespace, whitespace collapsed, stop words removed. If
// stop-word removal empties the title entirely, the punctuation-stripped
// form is returned instead.
func Normalize(title string) string {
	if title == "" {
		return ""
	}

	stripped := strings.TrimSpace(multiSpace.ReplaceAllString(
		punctuation.ReplaceAllString(strings.ToLower(title), " "), " "))
	if stripped == "" {
		return ""
	}

	words := strings.Fields(stripped)
	kept := words[:0]
	for _, w := range words {
		if !stopWords[w] {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return stripped
	}
	return strings.Join(kept, " ")
}

// Similarity scores two album titles in [0,1]. Titles that normalize to the
// same string score 1; titles that normalize to nothing score 0; otherwise
// the score is an edit-distance ratio, floored at 0.8 when one normalized
// title contains the other.
func Similarity(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)

	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	score := ratio(na, nb)
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		score = max(score, substringFloor)
	}
	return score
}

// ratio converts Levenshtein distance into a [0,1] similarity.
func ratio(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 0
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// FindBestMatches pairs each local album with its single best-scoring catalog
// title, keeping pairs at or above minSimilarity. Several local albums may
// match the same catalog title. The returned confidence is the average kept
// score discounted by match coverage: avg(scores) * matched/len(local).
func FindBestMatches(localAlbums, catalogTitles []string, minSimilarity float64) ([]Match, float64) {
	if len(localAlbums) == 0 || len(catalogTitles) == 0 {
		return nil, 0
	}

	var matches []Match
	var total float64

	for _, local := range localAlbums {
		best := Match{LocalTitle: local}
		for _, title := range catalogTitles {
			if s := Similarity(local, title); s > best.Score {
				best.Score = s
				best.CatalogTitle = title
			}
		}
		if best.Score >= minSimilarity {
			matches = append(matches, best)
			total += best.Score
		}
	}

	if len(matches) == 0 {
		return nil, 0
	}

	avg := total / float64(len(matches))
	coverage := float64(len(matches)) / float64(len(localAlbums))
	return matches, avg * coverage
}

// LevelForScore buckets a confidence score into a categorical level.
func LevelForScore(score float64) Level {
	switch {
	case score >= highThreshold:
		return LevelHigh
	case score >= mediumThreshold:
		return LevelMedium
	case score >= lowThreshold:
		return LevelLow
	default:
		return LevelNone
	}
}
