package search

import (
	"strings"
	"unicode"

	"musicez/internal/models"
	"musicez/internal/scoring"
)

// identityKey groups results that describe the same song: folded title plus
// folded primary artist. Versions with different titles ("Live", "Remastered")
// stay distinct.
func identityKey(title, artist string) string {
	return normalizeString(title) + "\x1f" + normalizeString(models.PrimaryArtist(artist))
}

// normalizeString strips diacritics and punctuation for comparison
func normalizeString(s string) string {
	folded := strings.ReplaceAll(scoring.Fold(s), "&", " and ")

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	// Collapse multiple spaces
	return strings.Join(strings.Fields(b.String()), " ")
}
