package sequencer

import (
	"errors"
	"fmt"
)

// Empty marks an unused voice slot.
const Empty = -1

// NumBeats is the conventional column count shared by every track.
const NumBeats = 16

var (
	ErrInvalidSlotCount = errors.New("invalid slot count")
	ErrDuplicateRow     = errors.New("duplicate row in column")
	ErrRowOutOfRange    = errors.New("row out of range")
	ErrBeatOutOfRange   = errors.New("beat out of range")
	ErrUnknownTrack     = errors.New("unknown track")
)

// TrackKind says whether rows address pitches or samples.
type TrackKind int

const (
	KindSynth TrackKind = iota
	KindSampler
)

func (k TrackKind) String() string {
	if k == KindSampler {
		return "sampler"
	}
	return "synth"
}

// TrackID addresses a track in a Store. Synths come first, the sampler is last.
type TrackID int

// Column is the slot list of one beat: V entries holding a row index or Empty.
type Column []int

// Clone returns an independent copy.
func (c Column) Clone() Column {
	out := make(Column, len(c))
	copy(out, c)
	return out
}

// Has reports whether row occupies a slot.
func (c Column) Has(row int) bool {
	for _, v := range c {
		if v == row {
			return true
		}
	}
	return false
}

// Active returns the occupied slots in slot order.
func (c Column) Active() []int {
	var rows []int
	for _, v := range c {
		if v != Empty {
			rows = append(rows, v)
		}
	}
	return rows
}

// Equal compares slot by slot.
func (c Column) Equal(o Column) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

// EmptyColumn returns a column of n empty slots.
func EmptyColumn(n int) Column {
	c := make(Column, n)
	for i := range c {
		c[i] = Empty
	}
	return c
}

// Grid is one track's columns, indexed by beat.
type Grid []Column

// Clone deep-copies the grid.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for i, c := range g {
		out[i] = c.Clone()
	}
	return out
}

// TrackSpec fixes the shape of a track.
type TrackSpec struct {
	Kind   TrackKind
	Rows   int
	Voices int
	Policy PolicyKind
}

// Track is a fixed-capacity step grid.
type Track struct {
	Spec    TrackSpec
	columns Grid
	cutoff  float64
}

func newTrack(spec TrackSpec, beats int) *Track {
	t := &Track{Spec: spec, columns: make(Grid, beats), cutoff: DefaultCutoff}
	for b := range t.columns {
		t.columns[b] = EmptyColumn(spec.Voices)
	}
	return t
}

// DefaultCutoff is the neutral filter position.
const DefaultCutoff = 0.5

// validate checks a slot list against the track shape.
func (t *Track) validate(slots Column) error {
	if len(slots) != t.Spec.Voices {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidSlotCount, len(slots), t.Spec.Voices)
	}
	seen := make(map[int]bool, len(slots))
	for _, row := range slots {
		if row == Empty {
			continue
		}
		if row < 0 || row >= t.Spec.Rows {
			return fmt.Errorf("%w: %d (rows=%d)", ErrRowOutOfRange, row, t.Spec.Rows)
		}
		if seen[row] {
			return fmt.Errorf("%w: %d", ErrDuplicateRow, row)
		}
		seen[row] = true
	}
	return nil
}

// Store owns every track of a jam. It is not safe for concurrent use; the
// session loop is its only mutator.
type Store struct {
	tracks []*Track
	beats  int
}

// NewStore builds empty tracks. The sampler spec, if any, must be last.
func NewStore(beats int, specs ...TrackSpec) (*Store, error) {
	if beats <= 0 {
		return nil, fmt.Errorf("%w: %d beats", ErrBeatOutOfRange, beats)
	}
	s := &Store{beats: beats}
	for i, spec := range specs {
		if spec.Voices <= 0 || spec.Rows <= 0 {
			return nil, fmt.Errorf("track %d: rows and voices must be positive", i)
		}
		if spec.Kind == KindSampler && i != len(specs)-1 {
			return nil, fmt.Errorf("track %d: sampler must be the last track", i)
		}
		s.tracks = append(s.tracks, newTrack(spec, beats))
	}
	return s, nil
}

// Beats returns the shared column count.
func (s *Store) Beats() int { return s.beats }

// NumTracks returns the number of tracks including the sampler.
func (s *Store) NumTracks() int { return len(s.tracks) }

// Spec returns the shape of a track.
func (s *Store) Spec(id TrackID) (TrackSpec, error) {
	t, err := s.track(id)
	if err != nil {
		return TrackSpec{}, err
	}
	return t.Spec, nil
}

// Synths returns the ids of all synth tracks in order.
func (s *Store) Synths() []TrackID {
	var ids []TrackID
	for i, t := range s.tracks {
		if t.Spec.Kind == KindSynth {
			ids = append(ids, TrackID(i))
		}
	}
	return ids
}

// Sampler returns the sampler track id, or false if the store has none.
func (s *Store) Sampler() (TrackID, bool) {
	n := len(s.tracks)
	if n == 0 || s.tracks[n-1].Spec.Kind != KindSampler {
		return 0, false
	}
	return TrackID(n - 1), true
}

// SynthTrack maps a wire synth index to a track id.
func (s *Store) SynthTrack(synthIx int) (TrackID, error) {
	synths := s.Synths()
	if synthIx < 0 || synthIx >= len(synths) {
		return 0, fmt.Errorf("%w: synth %d", ErrUnknownTrack, synthIx)
	}
	return synths[synthIx], nil
}

func (s *Store) track(id TrackID) (*Track, error) {
	if id < 0 || int(id) >= len(s.tracks) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTrack, id)
	}
	return s.tracks[id], nil
}

// Column returns a copy of the slot list at beat. Invalid addresses yield nil.
func (s *Store) Column(id TrackID, beat int) Column {
	t, err := s.track(id)
	if err != nil || beat < 0 || beat >= s.beats {
		return nil
	}
	return t.columns[beat].Clone()
}

// SetColumn replaces a slot list after checking the track invariants.
func (s *Store) SetColumn(id TrackID, beat int, slots Column) error {
	t, err := s.track(id)
	if err != nil {
		return err
	}
	if beat < 0 || beat >= s.beats {
		return fmt.Errorf("%w: %d", ErrBeatOutOfRange, beat)
	}
	if err := t.validate(slots); err != nil {
		return err
	}
	t.columns[beat] = slots.Clone()
	return nil
}

// Cutoff returns the filter parameter of a track.
func (s *Store) Cutoff(id TrackID) float64 {
	t, err := s.track(id)
	if err != nil {
		return 0
	}
	return t.cutoff
}

// SetCutoff stores a filter parameter clamped to [0,1].
func (s *Store) SetCutoff(id TrackID, v float64) error {
	t, err := s.track(id)
	if err != nil {
		return err
	}
	t.cutoff = clamp01(v)
	return nil
}

// Grid returns a deep copy of a track's columns.
func (s *Store) Grid(id TrackID) Grid {
	t, err := s.track(id)
	if err != nil {
		return nil
	}
	return t.columns.Clone()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
