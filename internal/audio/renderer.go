package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/typing2video/internal/timeline"
)

// Renderer turns timeline events into one audio track.
type Renderer struct {
	synth   Synthesizer
	source  string
	format  Format
	pitch   PitchRange
	workers int

	// TempDir is the parent of the per-render segment directory ("" = os.TempDir).
	TempDir string
}

func NewRenderer(synth Synthesizer, source string, format Format, pitch PitchRange, workers int) *Renderer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Renderer{synth: synth, source: source, format: format, pitch: pitch, workers: workers}
}

// Render synthesizes one segment per event and concatenates them in event
// order into output. Segments live in a private temporary directory that is
// removed on every path. An empty event list produces no track.
func (r *Renderer) Render(ctx context.Context, events []timeline.Event, output string) (Track, error) {
	if len(events) == 0 {
		return Track{}, nil
	}

	tmpDir, err := os.MkdirTemp(r.TempDir, "typing2video-audio-*")
	if err != nil {
		return Track{}, fmt.Errorf("audio temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	chars := 0
	for _, e := range events {
		if e.Kind == timeline.Character {
			chars++
		}
	}
	pitches := r.pitch.Pitches(chars)

	segments := make([]string, len(events))
	total := 0.0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	next := 0
	for i, e := range events {
		if gctx.Err() != nil {
			break
		}
		segments[i] = filepath.Join(tmpDir, fmt.Sprintf("seg_%05d_s%d_c%d.wav", i, e.Sentence, e.CharIndex))
		total += e.DurationMs

		if e.Kind == timeline.Character {
			pitch := pitches[next]
			next++
			g.Go(func() error {
				return r.synth.Tone(gctx, ToneSpec{
					Source:     r.source,
					Format:     r.format,
					Pitch:      pitch,
					DurationMs: e.DurationMs,
					FadeMs:     FadeOutMs,
					Output:     segments[i],
				})
			})
			continue
		}

		g.Go(func() error {
			return r.synth.Silence(gctx, SilenceSpec{
				Format:     r.format,
				DurationMs: e.DurationMs,
				Output:     segments[i],
			})
		})
	}

	if err := g.Wait(); err != nil {
		return Track{}, err
	}
	if err := ctx.Err(); err != nil {
		return Track{}, err
	}

	logrus.WithFields(logrus.Fields{
		"segments":    len(segments),
		"duration_ms": total,
	}).Debug("audio segments ready")

	if err := r.synth.Concat(ctx, segments, output); err != nil {
		os.Remove(output)
		return Track{}, err
	}

	return Track{Path: output, DurationMs: total, Segments: len(segments)}, nil
}
