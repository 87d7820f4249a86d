// Package frames turns a timeline into runs of identical still images whose
// lengths follow the shared cursor, so the video never drifts more than one
// frame from the audio.
package frames

import (
	"context"
	"image"

	"github.com/ivlev/typing2video/internal/system"
	"github.com/ivlev/typing2video/internal/timeline"
)

// Run is one still image shown for Count consecutive frames.
type Run struct {
	Image *image.RGBA
	Count int
}

// Release returns the image to the frame pool. The run must not be used after.
func (r Run) Release() {
	system.PutImage(r.Image)
}

// Emitter receives finished runs in order. Ownership of the image passes to
// the emitter on success.
type Emitter func(Run) error

// Renderer produces frames for sentences with the cursor passed in and out of
// every call. It keeps at most one unemitted frame.
type Renderer struct {
	painter  Painter
	holdText bool
}

// NewRenderer creates a renderer. With holdText the sentence-break still shows
// the finished sentence, otherwise only the background.
func NewRenderer(painter Painter, holdText bool) *Renderer {
	return &Renderer{painter: painter, holdText: holdText}
}

func (r *Renderer) paint(text []rune) *image.RGBA {
	img := system.GetImage(r.painter.Bounds())
	r.painter.Paint(img, text)
	return img
}

// RenderSentence emits the frames of one sentence, its sentence break
// included, and returns the advanced cursor.
//
// A glyph gets a fresh still held for max(1, delta) frames. Silent
// punctuation is drawn into the still that is not yet emitted; before the
// first glyph that still has no hold of its own and is dropped unless a pause
// marker extends it. A pause marker is drawn the same way and then adds
// max(1, delta) frames to that still.
func (r *Renderer) RenderSentence(s timeline.Sentence, cur timeline.Cursor, emit Emitter) (timeline.Cursor, error) {
	visible := make([]rune, 0, len(s.Text))
	var pending *Run
	var delta int

	flush := func() error {
		if pending == nil {
			return nil
		}
		run := *pending
		pending = nil
		if run.Count == 0 {
			run.Release()
			return nil
		}
		if err := emit(run); err != nil {
			run.Release()
			return err
		}
		return nil
	}

	redraw := func() {
		if pending == nil {
			pending = &Run{Image: r.paint(visible)}
			return
		}
		r.painter.Paint(pending.Image, visible)
	}

	for _, st := range s.Steps {
		switch st.Class {
		case timeline.StepGlyph:
			if err := flush(); err != nil {
				return cur, err
			}
			visible = append(visible, st.Char)
			img := r.paint(visible)
			cur, delta = cur.Advance(st.DurationMs)
			pending = &Run{Image: img, Count: timeline.HoldFrames(delta)}

		case timeline.StepPunct:
			visible = append(visible, st.Char)
			redraw()

		case timeline.StepPauseMarker:
			visible = append(visible, st.Char)
			redraw()
			cur, delta = cur.Advance(st.DurationMs)
			pending.Count += timeline.HoldFrames(delta)

		case timeline.StepSentenceBreak:
			if err := flush(); err != nil {
				return cur, err
			}
			var err error
			if cur, err = r.RenderBreak(st, visible, cur, emit); err != nil {
				return cur, err
			}
		}
	}

	return cur, flush()
}

// RenderBreak emits the still of an inter-sentence pause.
func (r *Renderer) RenderBreak(step timeline.Step, visible []rune, cur timeline.Cursor, emit Emitter) (timeline.Cursor, error) {
	var text []rune
	if r.holdText {
		text = visible
	}
	img := r.paint(text)

	var delta int
	cur, delta = cur.Advance(step.DurationMs)
	run := Run{Image: img, Count: timeline.HoldFrames(delta)}
	if err := emit(run); err != nil {
		run.Release()
		return cur, err
	}
	return cur, nil
}

// Stream renders the whole document in order into out and closes it. The
// cursor starts at zero and is threaded through every sentence. It stops at
// the first error or when ctx is done; runs still in the channel belong to
// the consumer.
func (r *Renderer) Stream(ctx context.Context, doc timeline.Document, fps int, out chan<- Run) (timeline.Cursor, error) {
	defer close(out)

	emit := func(run Run) error {
		select {
		case out <- run:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	cur := timeline.NewCursor(fps)
	for _, s := range doc.Sentences {
		var err error
		if cur, err = r.RenderSentence(s, cur, emit); err != nil {
			return cur, err
		}
	}
	return cur, nil
}
