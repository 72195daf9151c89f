package search

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Query bounds
const (
	MinQueryLength = 2
	MaxQueryLength = 200

	DefaultLimit = 20
	MinLimit     = 1
	MaxLimit     = 50

	DefaultThreshold = 0.3
	MinThreshold     = 0.1
	MaxThreshold     = 1.0
)

// ValidationReason classifies a rejected query
type ValidationReason string

const (
	ReasonTooShort   ValidationReason = "TOO_SHORT"
	ReasonTooLong    ValidationReason = "TOO_LONG"
	ReasonOutOfRange ValidationReason = "OUT_OF_RANGE"
)

// ValidationError rejects a search request before any I/O happens
type ValidationError struct {
	Reason ValidationReason
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
	}
	return "invalid query: " + e.Detail
}

// SearchQuery is a normalized, validated search request. The zero value is
// not valid; build it with NewSearchQuery.
type SearchQuery struct {
	Text      string
	Limit     int
	Threshold float64
	Enrich    bool
}

// NewSearchQuery normalizes raw text and validates the bounds. A nil limit
// or threshold takes the default; explicit values outside their range are
// rejected, never clamped.
func NewSearchQuery(raw string, limit *int, threshold *float64, enrich bool) (SearchQuery, error) {
	text := NormalizeText(raw)

	n := utf8.RuneCountInString(text)
	if n < MinQueryLength {
		return SearchQuery{}, &ValidationError{
			Reason: ReasonTooShort,
			Field:  "q",
			Detail: fmt.Sprintf("must be at least %d characters", MinQueryLength),
		}
	}
	if n > MaxQueryLength {
		return SearchQuery{}, &ValidationError{
			Reason: ReasonTooLong,
			Field:  "q",
			Detail: fmt.Sprintf("must be at most %d characters", MaxQueryLength),
		}
	}

	q := SearchQuery{
		Text:      text,
		Limit:     DefaultLimit,
		Threshold: DefaultThreshold,
		Enrich:    enrich,
	}

	if limit != nil {
		if *limit < MinLimit || *limit > MaxLimit {
			return SearchQuery{}, &ValidationError{
				Reason: ReasonOutOfRange,
				Field:  "limit",
				Detail: fmt.Sprintf("must be between %d and %d", MinLimit, MaxLimit),
			}
		}
		q.Limit = *limit
	}

	if threshold != nil {
		if *threshold < MinThreshold || *threshold > MaxThreshold {
			return SearchQuery{}, &ValidationError{
				Reason: ReasonOutOfRange,
				Field:  "threshold",
				Detail: fmt.Sprintf("must be between %.1f and %.1f", MinThreshold, MaxThreshold),
			}
		}
		q.Threshold = *threshold
	}

	return q, nil
}

// NormalizeText composes, trims, lowercases and collapses whitespace
func NormalizeText(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFC.String(raw))), " ")
}
