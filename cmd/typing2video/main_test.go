package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ivlev/typing2video/internal/engine"
)

func TestContainerCheck(t *testing.T) {
	r := &engine.Report{AudioMs: 8000, FrameLimit: 1000.0 / 30}

	tests := []struct {
		container float64
		ok        bool
	}{
		{8.0, true},
		{8.023, true},
		{7.95, true},
		{8.5, false},
		{6.0, false},
	}
	for _, tt := range tests {
		line, ok := containerCheck(tt.container, r)
		if ok != tt.ok {
			t.Errorf("containerCheck(%.3f) = %q, ok=%v, want %v", tt.container, line, ok, tt.ok)
		}
	}
}

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	blank := filepath.Join(dir, "blank.txt")
	if err := os.WriteFile(blank, []byte(" \n\t\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := readInput(blank); err == nil {
		t.Error("whitespace-only input must be rejected")
	}
	if _, err := readInput(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("missing input must be rejected")
	}
}

func TestDefaultOutput(t *testing.T) {
	out := defaultOutput("input/text/my story.txt", "")
	if filepath.Dir(out) != outputDir || !strings.HasPrefix(filepath.Base(out), "my_story_") || filepath.Ext(out) != ".mp4" {
		t.Errorf("defaultOutput = %q", out)
	}
}
