package frames

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/ivlev/typing2video/internal/text"
	"github.com/ivlev/typing2video/internal/timeline"
)

type fakePainter struct {
	texts map[*image.RGBA]string
	calls int
}

func newFakePainter() *fakePainter {
	return &fakePainter{texts: make(map[*image.RGBA]string)}
}

func (p *fakePainter) Bounds() image.Rectangle { return image.Rect(0, 0, 4, 2) }

func (p *fakePainter) Paint(dst *image.RGBA, text []rune) {
	p.calls++
	p.texts[dst] = string(text)
}

type collector struct {
	painter *fakePainter
	runs    []Run
	texts   []string
}

func (c *collector) emit(r Run) error {
	c.runs = append(c.runs, r)
	c.texts = append(c.texts, c.painter.texts[r.Image])
	return nil
}

func (c *collector) frames() int {
	n := 0
	for _, r := range c.runs {
		n += r.Count
	}
	return n
}

func plan(charMs, pauseMs, sentenceMs float64, sentences ...string) timeline.Document {
	e := timeline.NewEngine(timeline.Timing{
		CharacterMs:      charMs,
		CharacterPauseMs: pauseMs,
		SentencePauseMs:  sentenceMs,
	}, text.NewClassifier([]string{"，", ","}))
	return e.Plan(sentences)
}

func render(t *testing.T, r *Renderer, c *collector, doc timeline.Document, fps int) timeline.Cursor {
	t.Helper()
	cur := timeline.NewCursor(fps)
	for _, s := range doc.Sentences {
		var err error
		if cur, err = r.RenderSentence(s, cur, c.emit); err != nil {
			t.Fatalf("RenderSentence failed: %v", err)
		}
	}
	return cur
}

func TestFrameCountMatchesPlan(t *testing.T) {
	docs := []timeline.Document{
		plan(80, 250, 1000, "Hello", "World"),
		plan(80, 250, 500, strings.Repeat("a", 100)),
		plan(45, 200, 700, "!lead", "，comma first", "a，b，c.", "...", "end"),
		plan(45, 120, 400, "这是第一句，好。", "这是第二句！"),
	}
	for i, doc := range docs {
		for _, fps := range []int{24, 30, 60} {
			p := newFakePainter()
			c := &collector{painter: p}
			cur := render(t, NewRenderer(p, true), c, doc, fps)

			if got, want := c.frames(), doc.FrameCount(fps); got != want {
				t.Errorf("doc %d @%d: rendered %d frames, plan expects %d", i, fps, got, want)
			}
			if cur.ElapsedMs != doc.DurationMs() {
				t.Errorf("doc %d: cursor %.1f, audio %.1f", i, cur.ElapsedMs, doc.DurationMs())
			}
			video := float64(c.frames()) * 1000 / float64(fps)
			if math.Abs(video-doc.DurationMs()) > 1000/float64(fps)+1e-6 {
				t.Errorf("doc %d @%d: video %.1fms drifts from audio %.1fms", i, fps, video, doc.DurationMs())
			}
		}
	}
}

func TestHelloWorldThreading(t *testing.T) {
	p := newFakePainter()
	c := &collector{painter: p}
	doc := plan(80, 250, 1000, "Hello", "World")
	cur := render(t, NewRenderer(p, true), c, doc, 30)

	if cur.ElapsedMs != 1800 {
		t.Errorf("elapsed = %.1f, want 1800", cur.ElapsedMs)
	}
	if n := c.frames(); n < 53 || n > 55 {
		t.Errorf("frames = %d, want 54±1", n)
	}
	// 5 glyphs, the break, 5 glyphs.
	if len(c.runs) != 11 || c.texts[5] != "Hello" || c.runs[5].Count != 30 {
		t.Errorf("unexpected runs %v / %q", c.runs, c.texts)
	}
}

func TestSilentPunctuationRedrawsLastFrame(t *testing.T) {
	count := func(sentence string) (int, []string) {
		p := newFakePainter()
		c := &collector{painter: p}
		render(t, NewRenderer(p, true), c, plan(80, 250, 500, sentence), 30)
		return c.frames(), c.texts
	}

	plain, _ := count("Hello")
	bang, texts := count("Hello!")
	if plain != bang {
		t.Errorf("silent punctuation changed the frame count: %d vs %d", plain, bang)
	}
	if last := texts[len(texts)-1]; last != "Hello!" {
		t.Errorf("last frame shows %q, want %q", last, "Hello!")
	}

	// A leading quote has no duration of its own and appears with the first glyph.
	_, texts = count("\"ab")
	if texts[0] != "\"a" {
		t.Errorf("first frame shows %q, want %q", texts[0], "\"a")
	}
}

func TestPauseMarkerExtendsFrame(t *testing.T) {
	p := newFakePainter()
	c := &collector{painter: p}
	render(t, NewRenderer(p, true), c, plan(80, 250, 500, "a，b"), 30)

	// a: 0->80ms (2 frames), ，: 80->330ms (idx 2 -> 10), b: 330->410ms (idx 10 -> 12)
	if len(c.runs) != 2 {
		t.Fatalf("expected 2 runs, got %d (%q)", len(c.runs), c.texts)
	}
	if c.texts[0] != "a，" || c.runs[0].Count != 2+8 {
		t.Errorf("first run %q x%d, want \"a，\" x10", c.texts[0], c.runs[0].Count)
	}
	if c.texts[1] != "a，b" || c.runs[1].Count != 2 {
		t.Errorf("second run %q x%d", c.texts[1], c.runs[1].Count)
	}
}

func TestLeadingPauseMarkerGetsOwnFrame(t *testing.T) {
	p := newFakePainter()
	c := &collector{painter: p}
	doc := plan(80, 250, 500, "，a")
	render(t, NewRenderer(p, true), c, doc, 30)

	if c.texts[0] != "，" || c.runs[0].Count != 8 {
		t.Errorf("first run %q x%d, want \"，\" x8", c.texts[0], c.runs[0].Count)
	}
	if c.frames() != doc.FrameCount(30) {
		t.Errorf("frames %d, plan %d", c.frames(), doc.FrameCount(30))
	}
}

func TestBreakFrameText(t *testing.T) {
	for _, hold := range []bool{true, false} {
		p := newFakePainter()
		c := &collector{painter: p}
		render(t, NewRenderer(p, hold), c, plan(80, 250, 500, "ab.", "c"), 30)

		want := ""
		if hold {
			want = "ab."
		}
		if c.texts[2] != want {
			t.Errorf("hold=%v: break frame shows %q, want %q", hold, c.texts[2], want)
		}
	}
}

func TestEmptySentenceRendersNothing(t *testing.T) {
	p := newFakePainter()
	c := &collector{painter: p}
	e := timeline.NewEngine(timeline.Timing{CharacterMs: 80}, text.NewClassifier(nil))
	cur, err := NewRenderer(p, true).RenderSentence(e.Schedule(0, "", false), timeline.NewCursor(30), c.emit)
	if err != nil || cur.ElapsedMs != 0 || len(c.runs) != 0 || p.calls != 0 {
		t.Errorf("empty sentence: cur=%v runs=%d paints=%d err=%v", cur, len(c.runs), p.calls, err)
	}
}

func TestStream(t *testing.T) {
	doc := plan(80, 250, 500, "Hi，there.", "Bye!")
	p := newFakePainter()

	out := make(chan Run, 2)
	done := make(chan error, 1)
	go func() {
		_, err := NewRenderer(p, true).Stream(context.Background(), doc, 30, out)
		done <- err
	}()

	frames := 0
	for run := range out {
		frames += run.Count
		run.Release()
	}
	if err := <-done; err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if frames != doc.FrameCount(30) {
		t.Errorf("streamed %d frames, want %d", frames, doc.FrameCount(30))
	}
}

func TestStreamCancel(t *testing.T) {
	doc := plan(80, 250, 500, strings.Repeat("x", 50))
	ctx, cancel := context.WithCancel(context.Background())

	out := make(chan Run)
	done := make(chan error, 1)
	go func() {
		_, err := NewRenderer(newFakePainter(), true).Stream(ctx, doc, 30, out)
		done <- err
	}()

	(<-out).Release()
	cancel()
	for run := range out {
		run.Release()
	}
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCanvasFallbackAndPaint(t *testing.T) {
	c, err := NewCanvas(CanvasOptions{
		Width: 200, Height: 60,
		Background: "#102030", TextColor: "#FFFFFF",
		FontPath: "/nonexistent/font.ttf", FontSize: 48,
		X: 10, Y: 10,
	})
	if err != nil {
		t.Fatalf("NewCanvas failed: %v", err)
	}
	if !c.BuiltinFont() {
		t.Error("missing font should fall back to the built-in face")
	}

	img := image.NewRGBA(c.Bounds())
	c.Paint(img, []rune("Hello"))

	if got := img.RGBAAt(0, 0); got != (color.RGBA{0x10, 0x20, 0x30, 0xff}) {
		t.Errorf("background = %v", got)
	}
	white := 0
	for y := 10; y < 30; y++ {
		for x := 10; x < 50; x++ {
			if img.RGBAAt(x, y).R > 0x80 {
				white++
			}
		}
	}
	if white == 0 {
		t.Error("no text pixels drawn")
	}

	c.Paint(img, nil)
	if got := img.RGBAAt(12, 15); got != (color.RGBA{0x10, 0x20, 0x30, 0xff}) {
		t.Errorf("empty text should leave only background, got %v", got)
	}
}

func TestCanvasWrap(t *testing.T) {
	// basicfont is 7px per glyph: 100 - 2*10 = 80px fits 11 glyphs.
	c, err := NewCanvas(CanvasOptions{Width: 100, Height: 100, Background: "#000000", TextColor: "#FFFFFF", X: 10, Y: 0})
	if err != nil {
		t.Fatal(err)
	}

	lines := c.wrap([]rune("hello world again"))
	if len(lines) != 2 || string(lines[0]) != "hello world" || string(lines[1]) != "again" {
		t.Errorf("wrap by words = %q", lines)
	}

	lines = c.wrap([]rune(strings.Repeat("字", 25)))
	if len(lines) != 3 || len(lines[0]) != 11 {
		t.Errorf("wrap by characters = %d lines, first %d runes", len(lines), len(lines[0]))
	}
}

func TestCanvasRejectsBadColour(t *testing.T) {
	if _, err := NewCanvas(CanvasOptions{Width: 10, Height: 10, Background: "black", TextColor: "#FFFFFF"}); err == nil {
		t.Error("expected an error for a named colour")
	}
}
