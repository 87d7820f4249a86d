package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ivlev/typing2video/internal/errs"
	"github.com/ivlev/typing2video/internal/frames"
	"github.com/ivlev/typing2video/internal/system"
)

// Assembler muxes a stream of frame runs with a finished audio track.
type Assembler interface {
	Assemble(ctx context.Context, runs <-chan frames.Run, audioPath, output string) (int, error)
}

// Params describe the raw stream and the encoder.
type Params struct {
	Width, Height int
	FPS           int
	Encoder       string // "auto" picks the best available H.264 encoder
	Quality       int    // 0 = encoder default
}

// FFmpegAssembler pipes raw RGBA frames into ffmpeg's stdin.
type FFmpegAssembler struct {
	Params Params
	Binary string // defaults to "ffmpeg"
}

func NewFFmpegAssembler(p Params) *FFmpegAssembler {
	if p.Encoder == "" || p.Encoder == "auto" {
		p.Encoder = system.GetBestH264Encoder()
	}
	if p.Quality <= 0 {
		p.Quality = system.DefaultQuality(p.Encoder)
	}
	return &FFmpegAssembler{Params: p}
}

// Assemble writes every run to ffmpeg and returns the number of frames
// written. It returns as soon as ffmpeg cannot start or stops accepting
// frames; runs left in the channel then belong to the caller.
func (a *FFmpegAssembler) Assemble(ctx context.Context, runs <-chan frames.Run, audioPath, output string) (written int, err error) {
	bin := a.Binary
	if bin == "" {
		bin = "ffmpeg"
	}

	args := buildFFmpegArgs(a.Params, audioPath, output)
	logrus.WithField("args", strings.Join(args, " ")).Debug("ffmpeg encode")

	cmd := exec.CommandContext(ctx, bin, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return 0, fmt.Errorf("%w: stdin pipe: %v", errs.ErrEncodingFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("%w: ffmpeg start: %v", errs.ErrEncodingFailed, err)
	}

	// Используем rawvideo через stdin, каждый кадр run.Count раз.
	var writeErr error
	for run := range runs {
		for i := 0; i < run.Count; i++ {
			if writeErr = writeRawRGBA(stdin, run.Image); writeErr != nil {
				break
			}
			written++
		}
		run.Release()
		if writeErr != nil {
			break
		}
	}
	stdin.Close()

	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return written, ctxErr
	}
	if waitErr != nil {
		return written, fmt.Errorf("%w: ffmpeg: %v\nLog: %s", errs.ErrEncodingFailed, waitErr, tail(out.String(), 2000))
	}
	if writeErr != nil {
		return written, fmt.Errorf("%w: write raw: %v", errs.ErrEncodingFailed, writeErr)
	}
	return written, nil
}

func buildFFmpegArgs(p Params, audioPath, output string) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-framerate", fmt.Sprintf("%d", p.FPS),
		"-i", "-",
	}
	if audioPath != "" {
		args = append(args, "-i", audioPath)
	}

	args = append(args, "-c:v", p.Encoder)

	// Качество в зависимости от энкодера
	switch p.Encoder {
	case "h264_videotoolbox":
		bitrate := p.Quality * 100 // кбит/с. 75 -> 7.5Мбит/с
		args = append(args, "-b:v", fmt.Sprintf("%dk", bitrate))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", p.Quality))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", p.Quality), "-preset", "medium")
	}

	args = append(args, "-pix_fmt", "yuv420p")
	if audioPath != "" {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	}
	return append(args, output)
}

func writeRawRGBA(w io.Writer, img *image.RGBA) error {
	bounds := img.Bounds()
	if img.Stride != bounds.Dx()*4 || bounds.Min.X != 0 || bounds.Min.Y != 0 {
		packed := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(packed, packed.Bounds(), img, bounds.Min, draw.Src)
		img = packed
	}
	_, err := w.Write(img.Pix)
	return err
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
