// Package timeline turns sentences into the ordered schedule that both the
// audio and the frame renderers consume.
package timeline

import (
	"github.com/ivlev/typing2video/internal/text"
)

// Kind is the semantic kind of an audio event.
type Kind int

const (
	Character Kind = iota
	Pause
)

func (k Kind) String() string {
	if k == Pause {
		return "pause"
	}
	return "character"
}

// Event is one scheduled slot of the audio track.
type Event struct {
	Kind       Kind
	DurationMs float64 // after absorption
	AbsorbedMs float64 // part of DurationMs folded in from following pauses
	Sentence   int
	CharIndex  int // -1 for a sentence break
}

// StepClass is the per-character category seen by the frame renderer.
type StepClass int

const (
	StepGlyph StepClass = iota
	StepPunct
	StepPauseMarker
	StepSentenceBreak
)

func (c StepClass) String() string {
	switch c {
	case StepGlyph:
		return "glyph"
	case StepPunct:
		return "punct"
	case StepPauseMarker:
		return "pause_marker"
	case StepSentenceBreak:
		return "sentence_break"
	}
	return "unknown"
}

// Step is one character of a sentence (or the trailing sentence break) with
// the time it occupies on the cursor. Steps and Events describe the same
// schedule: their durations sum to the same total per sentence.
type Step struct {
	Class      StepClass
	Char       rune
	CharIndex  int
	DurationMs float64
}

// Sentence is the schedule of one sentence.
type Sentence struct {
	Index  int
	Text   []rune
	Final  bool
	Steps  []Step
	Events []Event
}

// DurationMs is the audio length of the sentence, sentence break included.
func (s Sentence) DurationMs() float64 {
	total := 0.0
	for _, e := range s.Events {
		total += e.DurationMs
	}
	return total
}

// Break returns the trailing sentence-break step, if any.
func (s Sentence) Break() (Step, bool) {
	if n := len(s.Steps); n > 0 && s.Steps[n-1].Class == StepSentenceBreak {
		return s.Steps[n-1], true
	}
	return Step{}, false
}

// Timing holds the duration rules.
type Timing struct {
	CharacterMs      float64
	CharacterPauseMs float64
	SentencePauseMs  float64
}

// Engine schedules sentences. It holds no per-document state.
type Engine struct {
	timing     Timing
	classifier text.Classifier
}

func NewEngine(timing Timing, classifier text.Classifier) *Engine {
	return &Engine{timing: timing, classifier: classifier}
}

// Schedule builds the steps and events of one sentence. When final is false a
// sentence break is appended after the last character. Zero-length pauses are
// scheduled as silent punctuation and zero-length breaks are dropped.
func (e *Engine) Schedule(index int, sentence string, final bool) Sentence {
	runes := []rune(sentence)
	s := Sentence{Index: index, Text: runes, Final: final}
	if len(runes) == 0 {
		return s
	}

	for i, r := range runes {
		switch e.classifier.Classify(r) {
		case text.Glyph:
			s.Steps = append(s.Steps, Step{Class: StepGlyph, Char: r, CharIndex: i, DurationMs: e.timing.CharacterMs})
			s.Events = append(s.Events, Event{Kind: Character, DurationMs: e.timing.CharacterMs, Sentence: index, CharIndex: i})
		case text.Punct:
			s.Steps = append(s.Steps, Step{Class: StepPunct, Char: r, CharIndex: i})
		case text.PauseMarker:
			if e.timing.CharacterPauseMs <= 0 {
				s.Steps = append(s.Steps, Step{Class: StepPunct, Char: r, CharIndex: i})
				continue
			}
			s.Steps = append(s.Steps, Step{Class: StepPauseMarker, Char: r, CharIndex: i, DurationMs: e.timing.CharacterPauseMs})
			s.Events = absorb(s.Events, e.timing.CharacterPauseMs, index, i)
		}
	}

	if !final && e.timing.SentencePauseMs > 0 {
		s.Steps = append(s.Steps, Step{Class: StepSentenceBreak, CharIndex: -1, DurationMs: e.timing.SentencePauseMs})
		s.Events = absorb(s.Events, e.timing.SentencePauseMs, index, -1)
	}
	return s
}

// absorb folds a pause into the last event when it is a Character event,
// otherwise it schedules a standalone Pause.
func absorb(events []Event, ms float64, sentence, charIndex int) []Event {
	if n := len(events); n > 0 && events[n-1].Kind == Character {
		events[n-1].DurationMs += ms
		events[n-1].AbsorbedMs += ms
		return events
	}
	return append(events, Event{Kind: Pause, DurationMs: ms, Sentence: sentence, CharIndex: charIndex})
}

// Document is the schedule of a whole text.
type Document struct {
	Sentences []Sentence
}

// Plan schedules every sentence in order; only the last one has no break.
// Empty sentences contribute nothing.
func (e *Engine) Plan(sentences []string) Document {
	doc := Document{Sentences: make([]Sentence, 0, len(sentences))}
	for i, s := range sentences {
		doc.Sentences = append(doc.Sentences, e.Schedule(i, s, i == len(sentences)-1))
	}
	return doc
}

// Events returns all audio events in document order.
func (d Document) Events() []Event {
	var out []Event
	for _, s := range d.Sentences {
		out = append(out, s.Events...)
	}
	return out
}

// DurationMs is the total audio length of the document.
func (d Document) DurationMs() float64 {
	total := 0.0
	for _, s := range d.Sentences {
		total += s.DurationMs()
	}
	return total
}

// FrameCount walks the steps with a cursor exactly like the frame renderer
// does and returns the number of frames it will emit.
func (d Document) FrameCount(fps int) int {
	cur := NewCursor(fps)
	frames := 0
	for _, s := range d.Sentences {
		var n int
		n, cur = s.frameCount(cur)
		frames += n
	}
	return frames
}

func (s Sentence) frameCount(cur Cursor) (int, Cursor) {
	frames := 0
	var delta int
	for _, st := range s.Steps {
		if st.Class == StepPunct {
			continue
		}
		cur, delta = cur.Advance(st.DurationMs)
		frames += HoldFrames(delta)
	}
	return frames, cur
}
