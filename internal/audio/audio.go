// Package audio renders the typing sound track of a timeline: one pitched
// tone per character event, silence for standalone pauses, concatenated in
// event order into a single WAV file.
package audio

import (
	"context"
)

// Format is the sample rate and channel count of the source sound.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat is used when the source cannot be probed.
var DefaultFormat = Format{SampleRate: 44100, Channels: 2}

// ChannelLayout is the ffmpeg layout name for the channel count.
func (f Format) ChannelLayout() string {
	if f.Channels >= 2 {
		return "stereo"
	}
	return "mono"
}

// ToneSpec describes one pitched copy of the source sample.
type ToneSpec struct {
	Source     string
	Format     Format
	Pitch      float64
	DurationMs float64
	FadeMs     float64
	Output     string
}

// SilenceSpec describes one silent segment.
type SilenceSpec struct {
	Format     Format
	DurationMs float64
	Output     string
}

// Synthesizer produces segment files and joins them. Any error is fatal to
// the render that issued the call.
type Synthesizer interface {
	Tone(ctx context.Context, spec ToneSpec) error
	Silence(ctx context.Context, spec SilenceSpec) error
	Concat(ctx context.Context, segments []string, output string) error
}

// Track is a finished audio render.
type Track struct {
	Path       string
	DurationMs float64
	Segments   int
}

// FadeOutMs is the tail fade applied to every tone.
const FadeOutMs = 10.0
