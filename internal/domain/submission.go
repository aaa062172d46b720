package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Poem is a haiku submitted by a player during the write stage
type Poem struct {
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submittedAt"`
	Missing     bool      `json:"missing,omitempty"`
}

// NoPoem marks a player who never wrote before the write stage closed.
// It is not a valid vote target.
var NoPoem = Poem{Missing: true}

// IsReal returns true for an actual submission, false for the NoPoem marker
func (p Poem) IsReal() bool {
	return !p.Missing
}

// NormalizePoem trims surrounding whitespace and puts the text in NFC form
func NormalizePoem(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// PoemLength returns the number of characters in the normalized poem
func PoemLength(text string) int {
	return utf8.RuneCountInString(NormalizePoem(text))
}
