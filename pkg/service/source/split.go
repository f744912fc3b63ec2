package source

import (
	"fmt"
	"strings"
)

// Granularity selects how scripted text is cut into chunks. It is a policy
// of the source, not of the registry: consumers always observe the same
// concatenated text regardless of granularity.
type Granularity string

const (
	GranularityCharacter Granularity = "character"
	GranularityWord      Granularity = "word"
	GranularitySentence  Granularity = "sentence"
)

// IsValid checks if the granularity is valid
func (g Granularity) IsValid() bool {
	switch g {
	case GranularityCharacter, GranularityWord, GranularitySentence:
		return true
	default:
		return false
	}
}

// String returns the string representation of the granularity
func (g Granularity) String() string {
	return string(g)
}

// ParseGranularity parses a string into a Granularity
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(s)
	if !g.IsValid() {
		return "", fmt.Errorf("invalid granularity: %s", s)
	}
	return g, nil
}

// Split cuts text into chunks at the given granularity. The concatenation
// of the returned chunks is always exactly the input text.
func Split(text string, granularity Granularity) []string {
	if text == "" {
		return nil
	}

	switch granularity {
	case GranularityCharacter:
		runes := []rune(text)
		chunks := make([]string, 0, len(runes))
		for _, r := range runes {
			chunks = append(chunks, string(r))
		}
		return chunks

	case GranularitySentence:
		return splitAfterAny(text, ".!?\n")

	default: // word
		return splitAfterAny(text, " \t\n")
	}
}

// splitAfterAny splits text after every run of the given delimiter
// characters, keeping the delimiters attached to the preceding chunk.
func splitAfterAny(text string, delims string) []string {
	var chunks []string
	var b strings.Builder
	inDelim := false

	for _, r := range text {
		isDelim := strings.ContainsRune(delims, r)
		if inDelim && !isDelim && b.Len() > 0 {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		b.WriteRune(r)
		inDelim = isDelim
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}
