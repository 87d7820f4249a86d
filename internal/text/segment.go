// Package text splits documents into sentences and classifies characters.
package text

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultSentenceEnders covers CJK and Latin sentence endings.
var DefaultSentenceEnders = []string{"。", "！", "？", ".", "!", "?"}

// Segmenter splits raw text into trimmed, non-empty sentences.
type Segmenter struct {
	pattern *regexp.Regexp
}

// NewSegmenter compiles a splitter for the given sentence-ending marks.
// With no enders every non-blank line is one sentence.
func NewSegmenter(enders []string) *Segmenter {
	class := enderClass(enders)
	if class == "" {
		return &Segmenter{pattern: regexp.MustCompile(`.+`)}
	}
	// A run of non-enders optionally closed by one ender.
	return &Segmenter{pattern: regexp.MustCompile(`[^` + class + `]+[` + class + `]?`)}
}

func enderClass(enders []string) string {
	var b strings.Builder
	seen := make(map[rune]bool)
	for _, e := range enders {
		for _, r := range e {
			if seen[r] {
				continue
			}
			seen[r] = true
			switch r {
			case '\\', ']', '[', '^', '-':
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Split returns the sentences of text in document order.
// Blank lines are skipped; a line without an ender still yields its trailing sentence.
func (s *Segmenter) Split(text string) []string {
	text = norm.NFC.String(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var sentences []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, m := range s.pattern.FindAllString(line, -1) {
			if m = strings.TrimSpace(m); m != "" {
				sentences = append(sentences, m)
			}
		}
	}
	return sentences
}
