package engine

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/typing2video/internal/audio"
	"github.com/ivlev/typing2video/internal/config"
	"github.com/ivlev/typing2video/internal/errs"
	"github.com/ivlev/typing2video/internal/frames"
	"github.com/ivlev/typing2video/internal/system"
	"github.com/ivlev/typing2video/internal/timeline"
	"github.com/ivlev/typing2video/internal/video"
)

// FrameBuffer is the number of runs in flight between renderer and encoder.
const FrameBuffer = 2

type Project struct {
	Config    *config.Config
	Synth     audio.Synthesizer
	Format    audio.Format
	Painter   frames.Painter
	Assembler video.Assembler

	InputPath    string
	OutputVideo  string
	ShowStats    bool
	BuildVersion string

	// TempDir is the parent of the working directory ("" = os.TempDir).
	TempDir string
	Out     io.Writer
}

func NewProject(cfg *config.Config, synth audio.Synthesizer, format audio.Format, painter frames.Painter, asm video.Assembler) *Project {
	return &Project{
		Config:    cfg,
		Synth:     synth,
		Format:    format,
		Painter:   painter,
		Assembler: asm,
		Out:       os.Stdout,
	}
}

// Report summarizes a finished run.
type Report struct {
	Sentences int
	Events    int
	AudioMs   float64
	Frames    int
	VideoMs   float64
	DriftMs   float64

	PlanTime  time.Duration
	AudioTime time.Duration
	VideoTime time.Duration
	TotalTime time.Duration

	// FrameLimit is one frame period, the allowed |DriftMs|.
	FrameLimit float64
}

// InSync reports whether video and audio lengths differ by at most one frame.
func (r *Report) InSync() bool {
	return math.Abs(r.DriftMs) <= r.FrameLimit+1e-6
}

// Plan segments the text and schedules it.
func (p *Project) Plan(text string) (timeline.Document, error) {
	sentences := p.Config.Segmenter().Split(text)
	if len(sentences) == 0 {
		return timeline.Document{}, fmt.Errorf("%w: нет ни одного предложения", errs.ErrInputEmpty)
	}
	doc := timeline.NewEngine(p.Config.Timing(), p.Config.Classifier()).Plan(sentences)
	if doc.DurationMs() <= 0 {
		return timeline.Document{}, fmt.Errorf("%w: в тексте нет печатаемых символов", errs.ErrInputEmpty)
	}
	return doc, nil
}

// Run renders the audio track, then streams frames into the assembler. On
// failure the output file is removed; the working directory is always removed.
func (p *Project) Run(ctx context.Context, text string) (report *Report, err error) {
	startTime := time.Now()
	out := p.Out
	if out == nil {
		out = io.Discard
	}
	fps := p.Config.Video.FPS

	doc, err := p.Plan(text)
	if err != nil {
		return nil, err
	}
	planEnd := time.Now()

	report = &Report{
		Sentences:  len(doc.Sentences),
		Events:     len(doc.Events()),
		AudioMs:    doc.DurationMs(),
		FrameLimit: timeline.NewCursor(fps).FramePeriodMs(),
	}

	fmt.Fprintln(out, "--- [PROJECT: TYPING2VIDEO] ---")
	fmt.Fprintf(out, "[*] Источник: %s | Предложений: %d | Событий: %d\n", p.InputPath, report.Sentences, report.Events)
	fmt.Fprintf(out, "[*] Разрешение: %dx%d @ %d FPS | Длительность: %.2fs\n", p.Config.Width(), p.Config.Height(), fps, report.AudioMs/1000)
	fmt.Fprintln(out, "-----------------------------")

	tempDir, err := os.MkdirTemp(p.TempDir, "typing2video_")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempDir)

	if dir := filepath.Dir(p.OutputVideo); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	defer func() {
		if err != nil {
			os.Remove(p.OutputVideo)
		}
	}()

	// 1. Аудиодорожка целиком, до кадров
	fmt.Fprintln(out, "[*] Синтез аудиодорожки...")
	pv := p.Config.Audio.PitchVariation
	renderer := audio.NewRenderer(p.Synth, p.Config.Audio.TypingSound, p.Format,
		audio.PitchRange{Min: pv.Min, Max: pv.Max, Random: pv.Random, Seed: pv.Seed},
		p.Config.Audio.Workers)
	renderer.TempDir = tempDir

	track, err := renderer.Render(ctx, doc.Events(), filepath.Join(tempDir, "audio.wav"))
	if err != nil {
		return nil, fmt.Errorf("ошибка синтеза аудио: %w", err)
	}
	audioEnd := time.Now()
	logrus.WithFields(logrus.Fields{"segments": track.Segments, "duration_ms": track.DurationMs}).Debug("audio track ready")

	// 2. Кадры -> ffmpeg через канал с ограниченным буфером
	fmt.Fprintln(out, "[*] Рендеринг и кодирование кадров...")
	runs := make(chan frames.Run, FrameBuffer)
	g, gctx := errgroup.WithContext(ctx)

	var cursor timeline.Cursor
	g.Go(func() error {
		var err error
		cursor, err = frames.NewRenderer(p.Painter, p.Config.Style.HoldTextDuringPause).Stream(gctx, doc, fps, runs)
		return err
	})
	g.Go(func() error {
		n, err := p.Assembler.Assemble(gctx, runs, track.Path, p.OutputVideo)
		report.Frames = n
		return err
	})
	err = g.Wait()
	// Stream has closed the channel; whatever the assembler did not take is released here.
	for run := range runs {
		run.Release()
	}
	if err != nil {
		return nil, err
	}
	videoEnd := time.Now()

	report.VideoMs = float64(report.Frames) * 1000 / float64(fps)
	report.DriftMs = report.VideoMs - report.AudioMs
	report.PlanTime = planEnd.Sub(startTime)
	report.AudioTime = audioEnd.Sub(planEnd)
	report.VideoTime = videoEnd.Sub(audioEnd)
	report.TotalTime = time.Since(startTime)

	log := logrus.WithFields(logrus.Fields{
		"frames":    report.Frames,
		"audio_ms":  report.AudioMs,
		"video_ms":  report.VideoMs,
		"cursor_ms": cursor.ElapsedMs,
	})
	if !report.InSync() {
		log.Warnf("[!] Расхождение видео и аудио %.1f мс больше одного кадра (%.1f мс)", report.DriftMs, report.FrameLimit)
	} else {
		log.Debug("video and audio in sync")
	}

	if p.ShowStats {
		p.printStats(out, report)
	}
	return report, nil
}

func (p *Project) printStats(out io.Writer, r *Report) {
	fps := float64(r.Frames) / r.TotalTime.Seconds()
	allocated, reused := system.PoolStats()

	report := fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.2fs\n"+
			"Planning: %.3fs\n"+
			"Audio synthesis: %.2fs\n"+
			"Rendering + Encoding: %.2fs\n"+
			"Effective FPS: %.2f\n"+
			"Drift: %+.1fms (limit %.1fms)\n"+
			"Frame buffers: %d allocated, %d reused\n",
		p.BuildVersion, r.TotalTime.Seconds(), r.PlanTime.Seconds(), r.AudioTime.Seconds(), r.VideoTime.Seconds(), fps,
		r.DriftMs, r.FrameLimit, allocated, reused,
	)
	if mem, err := system.ReadMemoryStats(); err == nil {
		report += fmt.Sprintf("Memory: RSS %.1f MiB | System %.1f%% of %.0f MiB used, %.0f MiB available\n",
			system.MiB(mem.ProcessRSS), mem.SystemUsedPct, system.MiB(mem.SystemTotal), system.MiB(mem.SystemAvailable))
	} else {
		logrus.WithError(err).Debug("memory stats unavailable")
	}
	report += "----------------------------\n"
	fmt.Fprint(out, report)

	// Логирование в файл
	logEntry := fmt.Sprintf("[%s] Build: %s | Input: %s | Sentences: %d | Frames: %d | Total: %.2fs | Audio: %.2fs | Video: %.2fs | FPS: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		p.BuildVersion,
		filepath.Base(p.InputPath),
		r.Sentences,
		r.Frames,
		r.TotalTime.Seconds(),
		r.AudioTime.Seconds(),
		r.VideoTime.Seconds(),
		fps,
	)

	f, err := os.OpenFile("benchmark.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		f.WriteString(logEntry)
		f.Close()
	} else {
		fmt.Fprintf(out, "[!] Не удалось записать benchmark.log: %v\n", err)
	}
}
