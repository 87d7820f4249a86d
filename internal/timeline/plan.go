package timeline

import (
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan is the exported form of a document schedule.
type Plan struct {
	Version    string         `yaml:"version"`
	FPS        int            `yaml:"fps"`
	DurationMs float64        `yaml:"duration_ms"`
	Frames     int            `yaml:"frames"`
	Sentences  []PlanSentence `yaml:"sentences"`
}

// PlanSentence is one sentence of an exported plan
type PlanSentence struct {
	Index      int         `yaml:"index"`
	Text       string      `yaml:"text"`
	StartMs    float64     `yaml:"start_ms"`
	DurationMs float64     `yaml:"duration_ms"`
	Frames     int         `yaml:"frames"`
	Events     []PlanEvent `yaml:"events"`
}

// PlanEvent is one audio event of an exported plan
type PlanEvent struct {
	Kind       string  `yaml:"kind"`
	Char       string  `yaml:"char,omitempty"`
	DurationMs float64 `yaml:"duration_ms"`
	AbsorbedMs float64 `yaml:"absorbed_ms,omitempty"`
}

// Export builds the plan of a document for the given frame rate. Frame counts
// per sentence come from the same cursor walk as the frame renderer.
func (d Document) Export(fps int) *Plan {
	p := &Plan{Version: "1.0", FPS: fps}
	cur := NewCursor(fps)

	for _, s := range d.Sentences {
		ps := PlanSentence{
			Index:      s.Index,
			Text:       string(s.Text),
			StartMs:    cur.ElapsedMs,
			DurationMs: s.DurationMs(),
		}
		ps.Frames, cur = s.frameCount(cur)

		for _, e := range s.Events {
			pe := PlanEvent{Kind: e.Kind.String(), DurationMs: e.DurationMs, AbsorbedMs: e.AbsorbedMs}
			if e.CharIndex >= 0 && e.CharIndex < len(s.Text) {
				pe.Char = string(s.Text[e.CharIndex])
			}
			ps.Events = append(ps.Events, pe)
		}

		p.Frames += ps.Frames
		p.Sentences = append(p.Sentences, ps)
	}
	p.DurationMs = cur.ElapsedMs
	return p
}

// WritePlan writes a plan to a YAML file
func WritePlan(plan *Plan, path string) error {
	data, err := yaml.Marshal(plan)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// EncodePlan writes a plan as YAML to w.
func EncodePlan(w io.Writer, plan *Plan) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(plan); err != nil {
		return err
	}
	return enc.Close()
}
