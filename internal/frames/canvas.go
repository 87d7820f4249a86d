package frames

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"unicode"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Painter draws the visible text of a sentence into a frame buffer.
type Painter interface {
	Bounds() image.Rectangle
	Paint(dst *image.RGBA, text []rune)
}

// CanvasOptions describes the look of every frame.
type CanvasOptions struct {
	Width, Height int
	// Colours are #RRGGBB.
	Background string
	TextColor  string
	// An empty or unreadable font path selects the built-in face.
	FontPath string
	FontSize float64
	X, Y     int
	// Multiple of the face height; <= 0 means 1.
	LineSpacing float64
}

// Canvas renders text with a TrueType/OpenType face.
type Canvas struct {
	bounds  image.Rectangle
	bg      *image.Uniform
	fg      *image.Uniform
	face    font.Face
	x, y    int
	maxW    int
	lineH   int
	ascent  int
	builtin bool
}

// NewCanvas parses colours and loads the font. A font that cannot be loaded
// is replaced by the built-in face with a warning; bad colours are errors.
func NewCanvas(opts CanvasOptions) (*Canvas, error) {
	bg, err := parseHex(opts.Background)
	if err != nil {
		return nil, fmt.Errorf("background colour: %w", err)
	}
	fg, err := parseHex(opts.TextColor)
	if err != nil {
		return nil, fmt.Errorf("text colour: %w", err)
	}

	c := &Canvas{
		bounds: image.Rect(0, 0, opts.Width, opts.Height),
		bg:     image.NewUniform(bg),
		fg:     image.NewUniform(fg),
		x:      opts.X,
		y:      opts.Y,
	}

	face, err := loadFace(opts.FontPath, opts.FontSize)
	if err != nil {
		logrus.WithError(err).WithField("font", opts.FontPath).Warn("font unavailable, using built-in face")
		face = basicfont.Face7x13
		c.builtin = true
	}
	c.face = face

	m := face.Metrics()
	spacing := opts.LineSpacing
	if spacing <= 0 {
		spacing = 1
	}
	c.ascent = m.Ascent.Ceil()
	c.lineH = int(float64(m.Height.Ceil()) * spacing)
	if c.lineH < 1 {
		c.lineH = 1
	}

	// Symmetric margins; with the text starting past the middle use the rest
	// of the width.
	c.maxW = opts.Width - 2*opts.X
	if c.maxW <= 0 {
		c.maxW = opts.Width - opts.X
	}
	return c, nil
}

func parseHex(s string) (color.RGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

func loadFace(path string, size float64) (font.Face, error) {
	if path == "" {
		return nil, fmt.Errorf("no font configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	f, err := opentype.Parse(data)
	if err != nil {
		// .ttc collections: take the first face.
		coll, cerr := opentype.ParseCollection(data)
		if cerr != nil {
			return nil, err
		}
		if f, err = coll.Font(0); err != nil {
			return nil, err
		}
	}

	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// BuiltinFont reports whether the fallback face is in use.
func (c *Canvas) BuiltinFont() bool { return c.builtin }

func (c *Canvas) Bounds() image.Rectangle { return c.bounds }

// Paint clears dst to the background and draws text from the configured
// position, wrapping lines that would leave the margin.
func (c *Canvas) Paint(dst *image.RGBA, text []rune) {
	draw.Draw(dst, dst.Bounds(), c.bg, image.Point{}, draw.Src)
	if len(text) == 0 {
		return
	}

	d := &font.Drawer{Dst: dst, Src: c.fg, Face: c.face}
	for i, line := range c.wrap(text) {
		d.Dot = fixed.P(c.x, c.y+c.ascent+i*c.lineH)
		d.DrawString(string(line))
	}
}

// wrap splits text into lines no wider than maxW, breaking after the last
// space when there is one and between any two characters otherwise.
func (c *Canvas) wrap(text []rune) [][]rune {
	limit := fixed.I(c.maxW)
	var lines [][]rune
	start, lastSpace := 0, -1
	width := fixed.Int26_6(0)

	for i := 0; i < len(text); i++ {
		adv, ok := c.face.GlyphAdvance(text[i])
		if !ok {
			adv, _ = c.face.GlyphAdvance('?')
		}
		if width+adv > limit && i > start {
			cut := i
			switch {
			case unicode.IsSpace(text[i]):
				cut = i + 1
			case lastSpace > start:
				cut = lastSpace + 1
			}
			lines = append(lines, trimRight(text[start:cut]))
			start, lastSpace = cut, -1
			width = 0
			i = cut - 1
			continue
		}
		if unicode.IsSpace(text[i]) {
			lastSpace = i
		}
		width += adv
	}
	return append(lines, text[start:])
}

func trimRight(line []rune) []rune {
	for len(line) > 0 && unicode.IsSpace(line[len(line)-1]) {
		line = line[:len(line)-1]
	}
	return line
}
