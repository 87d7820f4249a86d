package timeline

import "math"

// Cursor is the running elapsed time of the document. It is a value: every
// renderer call receives the current cursor and returns the advanced one, and
// the caller passes that result to the next call in document order.
type Cursor struct {
	ElapsedMs float64
	FPS       int
}

// NewCursor returns a cursor at zero for the given frame rate.
func NewCursor(fps int) Cursor {
	return Cursor{FPS: fps}
}

// FrameIndex is round(elapsed * fps / 1000).
func (c Cursor) FrameIndex() int {
	return int(math.Round(c.ElapsedMs * float64(c.FPS) / 1000))
}

// Advance moves the cursor by ms and returns the new cursor together with the
// difference of the rounded frame indices before and after the move.
// Differencing cumulative indices keeps total rounding error under one frame.
func (c Cursor) Advance(ms float64) (Cursor, int) {
	before := c.FrameIndex()
	next := Cursor{ElapsedMs: c.ElapsedMs + ms, FPS: c.FPS}
	return next, next.FrameIndex() - before
}

// HoldFrames is the number of frames a still is held for a frame delta:
// at least one, so every reveal is visible.
func HoldFrames(delta int) int {
	if delta < 1 {
		return 1
	}
	return delta
}

// FramePeriodMs is the duration of one frame.
func (c Cursor) FramePeriodMs() float64 {
	if c.FPS <= 0 {
		return 0
	}
	return 1000 / float64(c.FPS)
}
