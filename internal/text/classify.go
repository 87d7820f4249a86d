package text

import "unicode"

// IsPunctuation reports whether r is neither a letter, a number nor whitespace.
// Everything else (punctuation, symbols, marks) is treated as punctuation.
func IsPunctuation(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsSpace(r)
}

// Classifier knows the configured pause-marker set.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	pauses map[rune]struct{}
}

// NewClassifier builds a classifier from pause-marker strings.
// Every rune of every entry is a marker, so "，、" and "，","、" are equivalent.
func NewClassifier(pauseMarkers []string) Classifier {
	pauses := make(map[rune]struct{})
	for _, m := range pauseMarkers {
		for _, r := range m {
			pauses[r] = struct{}{}
		}
	}
	return Classifier{pauses: pauses}
}

// IsPauseMarker reports whether r is one of the configured pause markers.
func (c Classifier) IsPauseMarker(r rune) bool {
	_, ok := c.pauses[r]
	return ok
}

// Class is the scheduling category of a single character.
type Class int

const (
	Glyph Class = iota
	Punct
	PauseMarker
)

func (c Class) String() string {
	switch c {
	case Glyph:
		return "glyph"
	case Punct:
		return "punct"
	case PauseMarker:
		return "pause_marker"
	}
	return "unknown"
}

// Classify maps r to its scheduling class. Pause markers only count when they
// are punctuation, so a letter listed as a marker still types as a glyph.
func (c Classifier) Classify(r rune) Class {
	if !IsPunctuation(r) {
		return Glyph
	}
	if c.IsPauseMarker(r) {
		return PauseMarker
	}
	return Punct
}
