package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ivlev/typing2video/internal/errs"
)

// FFmpegSynthesizer builds segments with the ffmpeg binary.
type FFmpegSynthesizer struct {
	Binary string // defaults to "ffmpeg"
}

func (s *FFmpegSynthesizer) Tone(ctx context.Context, spec ToneSpec) error {
	return s.run(ctx, "tone", toneStream(spec))
}

func (s *FFmpegSynthesizer) Silence(ctx context.Context, spec SilenceSpec) error {
	return s.run(ctx, "silence", silenceStream(spec))
}

// Concat joins the segments with the concat demuxer and stream copy. The list
// file is written next to the first segment.
func (s *FFmpegSynthesizer) Concat(ctx context.Context, segments []string, output string) error {
	if len(segments) == 0 {
		return fmt.Errorf("%w: concat: no segments", errs.ErrToolFailed)
	}

	listPath := filepath.Join(filepath.Dir(segments[0]), "concat.txt")
	if err := writeConcatList(listPath, segments); err != nil {
		return err
	}
	defer os.Remove(listPath)

	return s.run(ctx, "concat", concatStream(listPath, output))
}

func (s *FFmpegSynthesizer) run(ctx context.Context, op string, stream *ffmpeg.Stream) error {
	bin := s.Binary
	if bin == "" {
		bin = "ffmpeg"
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, stream.GetArgs()...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: ffmpeg %s: %v: %s", errs.ErrToolFailed, op, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func toneFilter(spec ToneSpec) string {
	fade := spec.FadeMs
	if fade > spec.DurationMs {
		fade = spec.DurationMs
	}
	sr := spec.Format.SampleRate
	return fmt.Sprintf(
		"asetrate=%d*%.6f,atempo=%.6f,aresample=%d,apad=whole_dur=%sms,afade=t=out:st=%.4f:d=%.4f",
		sr, spec.Pitch, 1/spec.Pitch, sr,
		formatMs(spec.DurationMs),
		(spec.DurationMs-fade)/1000, fade/1000,
	)
}

func toneStream(spec ToneSpec) *ffmpeg.Stream {
	return ffmpeg.Input(spec.Source).
		Output(spec.Output, pcmArgs(spec.Format, spec.DurationMs, ffmpeg.KwArgs{"af": toneFilter(spec)})).
		OverWriteOutput()
}

func silenceStream(spec SilenceSpec) *ffmpeg.Stream {
	src := fmt.Sprintf("anullsrc=r=%d:cl=%s", spec.Format.SampleRate, spec.Format.ChannelLayout())
	return ffmpeg.Input(src, ffmpeg.KwArgs{"f": "lavfi"}).
		Output(spec.Output, pcmArgs(spec.Format, spec.DurationMs, nil)).
		OverWriteOutput()
}

func concatStream(listPath, output string) *ffmpeg.Stream {
	return ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": "0"}).
		Output(output, ffmpeg.KwArgs{"c": "copy"}).
		OverWriteOutput()
}

// pcmArgs makes every segment share one codec, rate and layout so that the
// concat demuxer can stream-copy them.
func pcmArgs(f Format, durationMs float64, extra ffmpeg.KwArgs) ffmpeg.KwArgs {
	args := ffmpeg.KwArgs{
		"t":   fmt.Sprintf("%.3f", durationMs/1000),
		"ar":  strconv.Itoa(f.SampleRate),
		"ac":  strconv.Itoa(f.Channels),
		"c:a": "pcm_s16le",
	}
	for k, v := range extra {
		args[k] = v
	}
	return args
}

func writeConcatList(path string, segments []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	for _, p := range segments {
		absPath, err := filepath.Abs(p)
		if err != nil {
			f.Close()
			return err
		}
		fmt.Fprintf(f, "file '%s'\n", strings.ReplaceAll(absPath, "'", `'\''`))
	}
	return f.Close()
}

func formatMs(ms float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", ms), "0"), ".")
}
