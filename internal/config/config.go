package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/typing2video/internal/errs"
	"github.com/ivlev/typing2video/internal/text"
	"github.com/ivlev/typing2video/internal/timeline"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// TYPING2VIDEO_VIDEO_FPS=60.
const EnvPrefix = "TYPING2VIDEO"

type Config struct {
	Video   Video   `mapstructure:"video" yaml:"video"`
	Style   Style   `mapstructure:"style" yaml:"style"`
	Audio   Audio   `mapstructure:"audio" yaml:"audio"`
	Parsing Parsing `mapstructure:"parsing" yaml:"parsing"`
}

type Video struct {
	Resolution []int  `mapstructure:"resolution" yaml:"resolution"` // [width, height]
	FPS        int    `mapstructure:"fps" yaml:"fps"`
	Format     string `mapstructure:"format" yaml:"format"`
	Encoder    string `mapstructure:"encoder" yaml:"encoder"` // auto | libx264 | h264_nvenc | h264_videotoolbox
	Quality    int    `mapstructure:"quality" yaml:"quality"` // 0 = encoder default
}

type Style struct {
	FontPath            string  `mapstructure:"font_path" yaml:"font_path"`
	FontSize            int     `mapstructure:"font_size" yaml:"font_size"`
	TextColor           string  `mapstructure:"text_color" yaml:"text_color"`
	BackgroundColor     string  `mapstructure:"background_color" yaml:"background_color"`
	TextPosition        []int   `mapstructure:"text_position" yaml:"text_position"` // [x, y] of the first line's top-left
	LineSpacing         float64 `mapstructure:"line_spacing" yaml:"line_spacing"`
	HoldTextDuringPause bool    `mapstructure:"hold_text_during_pause" yaml:"hold_text_during_pause"`
}

type PitchVariation struct {
	Min    float64 `mapstructure:"min" yaml:"min"`
	Max    float64 `mapstructure:"max" yaml:"max"`
	Random bool    `mapstructure:"random" yaml:"random"`
	Seed   int64   `mapstructure:"seed" yaml:"seed"`
}

type Audio struct {
	TypingSound         string         `mapstructure:"typing_sound" yaml:"typing_sound"`
	PitchVariation      PitchVariation `mapstructure:"pitch_variation" yaml:"pitch_variation"`
	CharacterDurationMs float64        `mapstructure:"character_duration_ms" yaml:"character_duration_ms"`
	CharacterPauseMs    float64        `mapstructure:"character_pause_ms" yaml:"character_pause_ms"`
	SentencePauseMs     float64        `mapstructure:"sentence_pause_ms" yaml:"sentence_pause_ms"`
	Workers             int            `mapstructure:"workers" yaml:"workers"` // 0 = number of CPUs
}

type Parsing struct {
	SentenceEnders []string `mapstructure:"sentence_enders" yaml:"sentence_enders"`
	SentencePauses []string `mapstructure:"sentence_pauses" yaml:"sentence_pauses"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Video: Video{
			Resolution: []int{1920, 1080},
			FPS:        30,
			Format:     "mp4",
			Encoder:    "auto",
		},
		Style: Style{
			FontPath:            "./fonts/default.ttf",
			FontSize:            48,
			TextColor:           "#FFFFFF",
			BackgroundColor:     "#000000",
			TextPosition:        []int{100, 500},
			LineSpacing:         1.2,
			HoldTextDuringPause: true,
		},
		Audio: Audio{
			TypingSound: "./sounds/sans_typing.wav",
			PitchVariation: PitchVariation{
				Min:    0.9,
				Max:    1.1,
				Random: true,
			},
			CharacterDurationMs: 50,
			CharacterPauseMs:    200,
			SentencePauseMs:     500,
		},
		Parsing: Parsing{
			SentenceEnders: append([]string(nil), text.DefaultSentenceEnders...),
			SentencePauses: []string{"，", "、", ","},
		},
	}
}

// SetDefaults registers every default on v so that partial config files and
// environment variables merge over them.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("video.resolution", d.Video.Resolution)
	v.SetDefault("video.fps", d.Video.FPS)
	v.SetDefault("video.format", d.Video.Format)
	v.SetDefault("video.encoder", d.Video.Encoder)
	v.SetDefault("video.quality", d.Video.Quality)

	v.SetDefault("style.font_path", d.Style.FontPath)
	v.SetDefault("style.font_size", d.Style.FontSize)
	v.SetDefault("style.text_color", d.Style.TextColor)
	v.SetDefault("style.background_color", d.Style.BackgroundColor)
	v.SetDefault("style.text_position", d.Style.TextPosition)
	v.SetDefault("style.line_spacing", d.Style.LineSpacing)
	v.SetDefault("style.hold_text_during_pause", d.Style.HoldTextDuringPause)

	v.SetDefault("audio.typing_sound", d.Audio.TypingSound)
	v.SetDefault("audio.pitch_variation.min", d.Audio.PitchVariation.Min)
	v.SetDefault("audio.pitch_variation.max", d.Audio.PitchVariation.Max)
	v.SetDefault("audio.pitch_variation.random", d.Audio.PitchVariation.Random)
	v.SetDefault("audio.pitch_variation.seed", d.Audio.PitchVariation.Seed)
	v.SetDefault("audio.character_duration_ms", d.Audio.CharacterDurationMs)
	v.SetDefault("audio.character_pause_ms", d.Audio.CharacterPauseMs)
	v.SetDefault("audio.sentence_pause_ms", d.Audio.SentencePauseMs)
	v.SetDefault("audio.workers", d.Audio.Workers)

	v.SetDefault("parsing.sentence_enders", d.Parsing.SentenceEnders)
	v.SetDefault("parsing.sentence_pauses", d.Parsing.SentencePauses)
}

// Load reads the configuration. An empty path means defaults plus
// environment overrides; a path that does not exist is ErrConfigNotFound.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", errs.ErrConfigNotFound, path)
		}
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
		}
		logrus.WithField("path", v.ConfigFileUsed()).Debug("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}
	return &cfg, nil
}

// WriteDefault writes the default configuration as YAML. An existing file is
// never overwritten.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("файл %s уже существует", path)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects values the pipeline cannot work with and returns warnings
// for values that work but degrade sync.
func (c *Config) Validate() (warnings []string, err error) {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Video.Resolution) != 2 || c.Video.Resolution[0] <= 0 || c.Video.Resolution[1] <= 0 {
		fail("video.resolution must be two positive integers, got %v", c.Video.Resolution)
	} else if c.Video.Resolution[0]%2 != 0 || c.Video.Resolution[1]%2 != 0 {
		fail("video.resolution must be even for yuv420p, got %v", c.Video.Resolution)
	}
	if c.Video.FPS <= 0 {
		fail("video.fps must be positive, got %d", c.Video.FPS)
	}
	if c.Video.Quality < 0 {
		fail("video.quality must not be negative, got %d", c.Video.Quality)
	}
	if c.Style.FontSize <= 0 {
		fail("style.font_size must be positive, got %d", c.Style.FontSize)
	}
	if len(c.Style.TextPosition) != 2 {
		fail("style.text_position must be [x, y], got %v", c.Style.TextPosition)
	}
	if _, err := colorful.Hex(c.Style.TextColor); err != nil {
		fail("style.text_color %q is not a #RRGGBB colour", c.Style.TextColor)
	}
	if _, err := colorful.Hex(c.Style.BackgroundColor); err != nil {
		fail("style.background_color %q is not a #RRGGBB colour", c.Style.BackgroundColor)
	}
	if c.Audio.TypingSound == "" {
		fail("audio.typing_sound is required")
	}
	if c.Audio.CharacterDurationMs <= 0 {
		fail("audio.character_duration_ms must be positive, got %v", c.Audio.CharacterDurationMs)
	}
	if c.Audio.CharacterPauseMs < 0 || c.Audio.SentencePauseMs < 0 {
		fail("audio pauses must not be negative")
	}
	pv := c.Audio.PitchVariation
	if pv.Min <= 0 || pv.Max < pv.Min {
		fail("audio.pitch_variation needs 0 < min <= max, got [%v, %v]", pv.Min, pv.Max)
	}

	if len(problems) > 0 {
		return nil, errors.New("invalid config: " + strings.Join(problems, "; "))
	}

	period := timeline.NewCursor(c.Video.FPS).FramePeriodMs()
	durations := []struct {
		key string
		ms  float64
	}{
		{"audio.character_duration_ms", c.Audio.CharacterDurationMs},
		{"audio.character_pause_ms", c.Audio.CharacterPauseMs},
		{"audio.sentence_pause_ms", c.Audio.SentencePauseMs},
	}
	// Нулевая пауза не даёт шагов, а любой ненулевой шаг держится минимум кадр.
	for _, d := range durations {
		if d.ms > 0 && d.ms < period {
			warnings = append(warnings, fmt.Sprintf(
				"%s (%.0f) is shorter than one frame (%.1f ms): it is still held for a full frame and the video may run longer than the audio",
				d.key, d.ms, period))
		}
	}
	return warnings, nil
}

func (c *Config) Width() int  { return c.Video.Resolution[0] }
func (c *Config) Height() int { return c.Video.Resolution[1] }

// Timing is the timeline view of the audio section.
func (c *Config) Timing() timeline.Timing {
	return timeline.Timing{
		CharacterMs:      c.Audio.CharacterDurationMs,
		CharacterPauseMs: c.Audio.CharacterPauseMs,
		SentencePauseMs:  c.Audio.SentencePauseMs,
	}
}

func (c *Config) Classifier() text.Classifier {
	return text.NewClassifier(c.Parsing.SentencePauses)
}

func (c *Config) Segmenter() *text.Segmenter {
	return text.NewSegmenter(c.Parsing.SentenceEnders)
}
