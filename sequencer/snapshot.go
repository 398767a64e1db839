package sequencer

import (
	"fmt"
	"sort"
)

// Snapshot is the whole store in slot-list form, matching the Sync broadcast.
type Snapshot struct {
	SynthRows   int
	SamplerRows int
	Synths      []Grid
	Sampler     Grid
	Cutoffs     []float64
}

// Snapshot copies every track.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{}
	for _, t := range s.tracks {
		switch t.Spec.Kind {
		case KindSynth:
			snap.SynthRows = t.Spec.Rows
			snap.Synths = append(snap.Synths, t.columns.Clone())
			snap.Cutoffs = append(snap.Cutoffs, t.cutoff)
		case KindSampler:
			snap.SamplerRows = t.Spec.Rows
			snap.Sampler = t.columns.Clone()
		}
	}
	return snap
}

// Restore replaces every track with the snapshot contents. Nothing changes
// unless the whole snapshot is valid. Track shapes follow the snapshot; voice
// policies carry over by position.
func (s *Store) Restore(snap Snapshot) error {
	beats := -1
	checkBeats := func(name string, g Grid) error {
		if len(g) == 0 {
			return fmt.Errorf("%s: %w: no beats", name, ErrBeatOutOfRange)
		}
		if beats == -1 {
			beats = len(g)
		} else if len(g) != beats {
			return fmt.Errorf("%s: %w: %d beats, want %d", name, ErrBeatOutOfRange, len(g), beats)
		}
		return nil
	}

	var tracks []*Track
	synthPolicies, samplerPolicy := s.policies()
	for i, g := range snap.Synths {
		name := fmt.Sprintf("synth %d", i)
		if err := checkBeats(name, g); err != nil {
			return err
		}
		policy := PolicyLIFO
		if len(synthPolicies) > 0 {
			policy = synthPolicies[min(i, len(synthPolicies)-1)]
		}
		t, err := trackFromGrid(name, TrackSpec{Kind: KindSynth, Rows: snap.SynthRows, Policy: policy}, g)
		if err != nil {
			return err
		}
		if i < len(snap.Cutoffs) {
			t.cutoff = clamp01(snap.Cutoffs[i])
		}
		tracks = append(tracks, t)
	}
	if snap.Sampler != nil {
		if err := checkBeats("sampler", snap.Sampler); err != nil {
			return err
		}
		t, err := trackFromGrid("sampler", TrackSpec{Kind: KindSampler, Rows: snap.SamplerRows, Policy: samplerPolicy}, snap.Sampler)
		if err != nil {
			return err
		}
		tracks = append(tracks, t)
	}
	if beats <= 0 {
		return fmt.Errorf("%w: empty snapshot", ErrBeatOutOfRange)
	}

	s.tracks = tracks
	s.beats = beats
	return nil
}

// SetPolicy changes the allocation policy of a track.
func (s *Store) SetPolicy(id TrackID, kind PolicyKind) error {
	t, err := s.track(id)
	if err != nil {
		return err
	}
	t.Spec.Policy = kind
	return nil
}

func (s *Store) policies() (synths []PolicyKind, sampler PolicyKind) {
	sampler = PolicyLIFO
	for _, t := range s.tracks {
		if t.Spec.Kind == KindSampler {
			sampler = t.Spec.Policy
		} else {
			synths = append(synths, t.Spec.Policy)
		}
	}
	return synths, sampler
}

func trackFromGrid(name string, spec TrackSpec, g Grid) (*Track, error) {
	if spec.Rows <= 0 {
		return nil, fmt.Errorf("%s: %w: %d rows", name, ErrRowOutOfRange, spec.Rows)
	}
	spec.Voices = len(g[0])
	if spec.Voices == 0 {
		return nil, fmt.Errorf("%s: %w: zero voices", name, ErrInvalidSlotCount)
	}
	t := &Track{Spec: spec, columns: make(Grid, len(g)), cutoff: DefaultCutoff}
	for b, c := range g {
		if err := t.validate(c); err != nil {
			return nil, fmt.Errorf("%s beat %d: %w", name, b, err)
		}
		t.columns[b] = c.Clone()
	}
	return t, nil
}

// Bitmap is the row-activation encoding: Bitmap[row][beat].
type Bitmap [][]bool

// ToBitmap converts slot lists to per-row activation.
func ToBitmap(g Grid, rows int) Bitmap {
	bm := make(Bitmap, rows)
	for r := range bm {
		bm[r] = make([]bool, len(g))
	}
	for beat, c := range g {
		for _, row := range c {
			if row >= 0 && row < rows {
				bm[row][beat] = true
			}
		}
	}
	return bm
}

// FromBitmap converts per-row activation back to slot lists with the given
// voice count. Active rows fill slots in ascending row order.
func FromBitmap(bm Bitmap, voices int) (Grid, error) {
	if len(bm) == 0 {
		return nil, fmt.Errorf("%w: bitmap has no rows", ErrRowOutOfRange)
	}
	beats := len(bm[0])
	g := make(Grid, beats)
	for beat := 0; beat < beats; beat++ {
		c := EmptyColumn(voices)
		n := 0
		for row := range bm {
			if len(bm[row]) != beats {
				return nil, fmt.Errorf("%w: row %d has %d beats, want %d", ErrBeatOutOfRange, row, len(bm[row]), beats)
			}
			if !bm[row][beat] {
				continue
			}
			if n == voices {
				return nil, fmt.Errorf("%w: beat %d has more than %d active rows", ErrInvalidSlotCount, beat, voices)
			}
			c[n] = row
			n++
		}
		g[beat] = c
	}
	return g, nil
}

// Normalize sorts each column's active rows ascending, empties last. Two grids
// with the same activation normalize to the same value.
func Normalize(g Grid) Grid {
	out := make(Grid, len(g))
	for beat, c := range g {
		active := c.Active()
		sort.Ints(active)
		n := EmptyColumn(len(c))
		copy(n, active)
		out[beat] = n
	}
	return out
}
