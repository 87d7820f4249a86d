package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ivlev/typing2video/internal/errs"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Width() != 1920 || cfg.Height() != 1080 || cfg.Video.FPS != 30 {
		t.Errorf("unexpected video defaults: %+v", cfg.Video)
	}
	if cfg.Style.FontSize != 48 || cfg.Style.TextColor != "#FFFFFF" || !reflect.DeepEqual(cfg.Style.TextPosition, []int{100, 500}) {
		t.Errorf("unexpected style defaults: %+v", cfg.Style)
	}
	if cfg.Audio.CharacterDurationMs != 50 || cfg.Audio.CharacterPauseMs != 200 || cfg.Audio.SentencePauseMs != 500 {
		t.Errorf("unexpected audio defaults: %+v", cfg.Audio)
	}
	if !cfg.Audio.PitchVariation.Random || cfg.Audio.PitchVariation.Min != 0.9 {
		t.Errorf("unexpected pitch defaults: %+v", cfg.Audio.PitchVariation)
	}
	if !reflect.DeepEqual(cfg.Parsing.SentencePauses, []string{"，", "、", ","}) {
		t.Errorf("unexpected pause markers: %q", cfg.Parsing.SentencePauses)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
video:
  fps: 24
audio:
  character_duration_ms: 80
  pitch_variation:
    random: false
parsing:
  sentence_pauses: ["，", ";"]
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Video.FPS != 24 || cfg.Audio.CharacterDurationMs != 80 || cfg.Audio.PitchVariation.Random {
		t.Errorf("overrides not applied: %+v %+v", cfg.Video, cfg.Audio)
	}
	// Untouched keys keep their defaults.
	if cfg.Audio.SentencePauseMs != 500 || cfg.Width() != 1920 || cfg.Audio.PitchVariation.Max != 1.1 {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if !cfg.Classifier().IsPauseMarker(';') || cfg.Classifier().IsPauseMarker('、') {
		t.Error("classifier should use the configured pause markers")
	}
	if tm := cfg.Timing(); tm.CharacterMs != 80 || tm.CharacterPauseMs != 200 {
		t.Errorf("unexpected timing %+v", tm)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, errs.ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TYPING2VIDEO_VIDEO_FPS", "60")
	t.Setenv("TYPING2VIDEO_AUDIO_TYPING_SOUND", "/tmp/click.wav")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Video.FPS != 60 || cfg.Audio.TypingSound != "/tmp/click.wav" {
		t.Errorf("env overrides not applied: fps=%d sound=%s", cfg.Video.FPS, cfg.Audio.TypingSound)
	}
}

func TestValidate(t *testing.T) {
	def := Default()
	if warnings, err := def.Validate(); err != nil || len(warnings) != 0 {
		t.Errorf("defaults should be valid without warnings: %v %v", warnings, err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero fps", func(c *Config) { c.Video.FPS = 0 }},
		{"odd width", func(c *Config) { c.Video.Resolution = []int{1921, 1080} }},
		{"bad resolution", func(c *Config) { c.Video.Resolution = []int{1920} }},
		{"bad colour", func(c *Config) { c.Style.TextColor = "white" }},
		{"zero char duration", func(c *Config) { c.Audio.CharacterDurationMs = 0 }},
		{"negative pause", func(c *Config) { c.Audio.SentencePauseMs = -1 }},
		{"inverted pitch", func(c *Config) { c.Audio.PitchVariation.Min, c.Audio.PitchVariation.Max = 1.2, 0.8 }},
		{"no sound", func(c *Config) { c.Audio.TypingSound = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			if _, err := c.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}

	short := Default()
	short.Audio.CharacterDurationMs = 20
	warnings, err := short.Validate()
	if err != nil || len(warnings) != 1 || !strings.Contains(warnings[0], "shorter than one frame") {
		t.Errorf("expected a frame period warning, got %v %v", warnings, err)
	}
}

func TestValidateWarnsOnShortPauses(t *testing.T) {
	c := Default()
	c.Audio.CharacterPauseMs = 10
	c.Audio.SentencePauseMs = 20
	warnings, err := c.Validate()
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 2 ||
		!strings.Contains(warnings[0], "audio.character_pause_ms") ||
		!strings.Contains(warnings[1], "audio.sentence_pause_ms") {
		t.Errorf("expected warnings for both pauses, got %q", warnings)
	}

	// Zero pauses add no frames at all.
	c.Audio.CharacterPauseMs = 0
	c.Audio.SentencePauseMs = 0
	if warnings, _ := c.Validate(); len(warnings) != 0 {
		t.Errorf("zero pauses should not warn: %q", warnings)
	}

	// 40 ms is longer than a frame at 30 fps but not at 24.
	c.Audio.CharacterPauseMs = 40
	c.Video.FPS = 24
	if warnings, _ := c.Validate(); len(warnings) != 1 {
		t.Errorf("expected one warning at 24 fps, got %q", warnings)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "typing2video.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	if err := WriteDefault(path); err == nil {
		t.Error("existing file must not be overwritten")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Style.BackgroundColor != "#000000" || !cfg.Style.HoldTextDuringPause || cfg.Video.Encoder != "auto" {
		t.Errorf("written defaults do not load back: %+v", cfg)
	}
}
