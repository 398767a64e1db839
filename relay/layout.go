package relay

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"jamsesh/sequencer"
)

// Layout is the shape and starting pattern of a room.
type Layout struct {
	Beats     int           `yaml:"beats"`
	SynthRows int           `yaml:"synth_rows"`
	Synths    []SynthLayout `yaml:"synths"`
	Sampler   SamplerLayout `yaml:"sampler"`
}

type SynthLayout struct {
	Voices int                  `yaml:"voices"`
	Policy sequencer.PolicyKind `yaml:"policy,omitempty"`
	Cutoff *float64             `yaml:"cutoff,omitempty"`
	Preset []Step               `yaml:"preset,omitempty"`
}

type SamplerLayout struct {
	Rows   int    `yaml:"rows"`
	Voices int    `yaml:"voices"`
	Preset []Step `yaml:"preset,omitempty"`
}

// Step is one preset cell.
type Step struct {
	Beat int `yaml:"beat"`
	Row  int `yaml:"row"`
}

// DefaultLayout is two synths (two voices and one voice) over fourteen rows,
// a two-row sampler, and a kick-style pulse on the lowest row of synth 0.
func DefaultLayout() Layout {
	half := sequencer.DefaultCutoff
	return Layout{
		Beats:     sequencer.NumBeats,
		SynthRows: 14,
		Synths: []SynthLayout{
			{Voices: 2, Cutoff: &half, Preset: []Step{{0, 13}, {4, 13}, {8, 13}, {12, 13}}},
			{Voices: 1, Cutoff: &half},
		},
		Sampler: SamplerLayout{Rows: 2, Voices: 2},
	}
}

// ParseLayout decodes YAML. Missing sections take the default values.
func ParseLayout(data []byte) (Layout, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Layout{}, fmt.Errorf("layout: payload is empty")
	}
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("layout: decode: %w", err)
	}
	def := DefaultLayout()
	if l.Beats == 0 {
		l.Beats = def.Beats
	}
	if l.SynthRows == 0 {
		l.SynthRows = def.SynthRows
	}
	if l.Synths == nil {
		l.Synths = def.Synths
		for i := range l.Synths {
			l.Synths[i].Preset = fitSteps(l.Synths[i].Preset, l.Beats, l.SynthRows)
		}
	}
	if l.Sampler.Rows == 0 && l.Sampler.Voices == 0 {
		l.Sampler = def.Sampler
	}
	if _, err := l.Store(); err != nil {
		return Layout{}, fmt.Errorf("layout: %w", err)
	}
	return l, nil
}

// LoadLayoutFile reads a layout from disk. An empty path means DefaultLayout.
func LoadLayoutFile(path string) (Layout, error) {
	if path == "" {
		return DefaultLayout(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("layout: read %s: %w", path, err)
	}
	l, err := ParseLayout(data)
	if err != nil {
		return Layout{}, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Store builds a store holding the layout's starting pattern.
func (l Layout) Store() (*sequencer.Store, error) {
	var specs []sequencer.TrackSpec
	for _, s := range l.Synths {
		specs = append(specs, sequencer.TrackSpec{Kind: sequencer.KindSynth, Rows: l.SynthRows, Voices: s.Voices, Policy: s.Policy})
	}
	if l.Sampler.Voices <= 0 || l.Sampler.Rows <= 0 {
		return nil, fmt.Errorf("sampler: needs rows and voices, got %d and %d", l.Sampler.Rows, l.Sampler.Voices)
	}
	specs = append(specs, sequencer.TrackSpec{Kind: sequencer.KindSampler, Rows: l.Sampler.Rows, Voices: l.Sampler.Voices})
	store, err := sequencer.NewStore(l.Beats, specs...)
	if err != nil {
		return nil, err
	}
	for i, s := range l.Synths {
		id := sequencer.TrackID(i)
		if s.Cutoff != nil {
			store.SetCutoff(id, *s.Cutoff)
		}
		if err := preset(store, id, s.Preset); err != nil {
			return nil, fmt.Errorf("synth %d: %w", i, err)
		}
	}
	if id, ok := store.Sampler(); ok {
		if err := preset(store, id, l.Sampler.Preset); err != nil {
			return nil, fmt.Errorf("sampler: %w", err)
		}
	}
	return store, nil
}

// fitSteps drops default steps that fall outside a smaller grid.
func fitSteps(steps []Step, beats, rows int) []Step {
	var kept []Step
	for _, st := range steps {
		if st.Beat < beats && st.Row < rows {
			kept = append(kept, st)
		}
	}
	return kept
}

// preset fills the lowest free slot of each step.
func preset(store *sequencer.Store, id sequencer.TrackID, steps []Step) error {
	for _, st := range steps {
		col := store.Column(id, st.Beat)
		if col == nil {
			return fmt.Errorf("%w: beat %d", sequencer.ErrBeatOutOfRange, st.Beat)
		}
		if col.Has(st.Row) {
			continue
		}
		placed := false
		for i, v := range col {
			if v == sequencer.Empty {
				col[i] = st.Row
				placed = true
				break
			}
		}
		if !placed {
			return fmt.Errorf("%w: beat %d is full", sequencer.ErrInvalidSlotCount, st.Beat)
		}
		if err := store.SetColumn(id, st.Beat, col); err != nil {
			return err
		}
	}
	return nil
}
