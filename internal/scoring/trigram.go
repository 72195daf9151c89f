package scoring

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Set is a set of trigrams
type Set map[string]struct{}

// Fold lowercases s and strips diacritics so "Beyoncé" and "beyonce" compare equal
func Fold(s string) string {
	// Chained transformers keep state, so build one per call
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Words splits folded text into alphanumeric words
func Words(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// NewSet extracts trigrams the way pg_trgm does: every word is padded with
// two leading spaces and one trailing space before taking 3-rune windows.
func NewSet(s string) Set {
	set := make(Set)
	for _, word := range Words(s) {
		padded := []rune("  " + word + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

// FromList rebuilds a set from a stored trigram list
func FromList(list []string) Set {
	set := make(Set, len(list))
	for _, t := range list {
		set[t] = struct{}{}
	}
	return set
}

// List returns the trigrams in sorted order
func (s Set) List() []string {
	list := make([]string, 0, len(s))
	for t := range s {
		list = append(list, t)
	}
	sort.Strings(list)
	return list
}

func intersection(a, b Set) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for t := range a {
		if _, ok := b[t]; ok {
			n++
		}
	}
	return n
}

// Jaccard returns shared trigrams over the union of both sets
func Jaccard(a, b Set) float64 {
	shared := intersection(a, b)
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// Coverage returns the share of query trigrams present in text
func Coverage(query, text Set) float64 {
	if len(query) == 0 {
		return 0
	}
	return float64(intersection(query, text)) / float64(len(query))
}

// Similarity compares two strings the way pg_trgm's similarity() does
func Similarity(a, b string) float64 {
	return Jaccard(NewSet(a), NewSet(b))
}

// WordSimilarity reports how much of query appears inside text. Long
// searchable text is not penalised for containing more than the query.
func WordSimilarity(query, text string) float64 {
	return Coverage(NewSet(query), NewSet(text))
}

// Weights balances containment in the searchable text against a direct
// title match
type Weights struct {
	Word  float64
	Title float64
}

// DefaultWeights favours containment
func DefaultWeights() Weights {
	return Weights{Word: 0.7, Title: 0.3}
}

func (w Weights) normalized() Weights {
	if w.Word < 0 {
		w.Word = 0
	}
	if w.Title < 0 {
		w.Title = 0
	}
	sum := w.Word + w.Title
	if sum == 0 {
		return DefaultWeights()
	}
	return Weights{Word: w.Word / sum, Title: w.Title / sum}
}

// Scorer scores rows against a single query. The query trigrams are
// extracted once and reused for every row.
type Scorer struct {
	query   Set
	weights Weights
}

// NewScorer prepares a scorer for query
func NewScorer(query string, weights Weights) *Scorer {
	return &Scorer{
		query:   NewSet(query),
		weights: weights.normalized(),
	}
}

// QueryTrigrams exposes the query trigrams for index prefiltering
func (s *Scorer) QueryTrigrams() []string {
	return s.query.List()
}

// Score returns a similarity in [0,1] for a row with the given title and
// searchable text trigrams
func (s *Scorer) Score(title string, text Set) float64 {
	word := Coverage(s.query, text)
	titleSim := Jaccard(s.query, NewSet(title))
	return Clamp(s.weights.Word*word + s.weights.Title*titleSim)
}

// ScoreText is Score for rows without precomputed trigrams
func (s *Scorer) ScoreText(title, text string) float64 {
	return s.Score(title, NewSet(text))
}

// Clamp bounds a score to [0,1] and rounds it to four decimals
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return math.Round(v*10000) / 10000
}
