package relay

import (
	"errors"
	"testing"

	"jamsesh/protocol"
	"jamsesh/sequencer"
)

func newTestRoom(t *testing.T) *Room {
	t.Helper()
	r, err := NewRoom(DefaultLayout(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRoomRoster(t *testing.T) {
	r := newTestRoom(t)
	for i, name := range []string{"a", "b", "c"} {
		if err := r.Apply(i, protocol.Connect{Username: name}); err != nil {
			t.Fatal(err)
		}
	}
	r.Apply(0, protocol.Disconnect{})
	got := r.Roster()
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 1 {
		t.Fatalf("roster after swap remove = %+v", got)
	}
	if err := r.Apply(9, protocol.Disconnect{}); err != nil {
		t.Fatalf("disconnect of unknown client: %v", err)
	}
	r.Apply(1, protocol.Connect{Username: "bee"})
	if got := r.Roster(); len(got) != 2 || got[1].Name != "bee" {
		t.Fatalf("rename = %+v", got)
	}
}

func TestRoomApplyValidates(t *testing.T) {
	r := newTestRoom(t)
	tests := []struct {
		name string
		u    protocol.Update
		want error
	}{
		{"ok synth", protocol.SynthSeq{SynthIx: 1, BeatIx: 3, ActiveCellIxs: []int{4}}, nil},
		{"ok sampler", protocol.SamplerSeq{BeatIx: 3, ActiveCellIxs: []int{1, 0}}, nil},
		{"ok cutoff", protocol.SynthFilterCutoff{SynthIx: 0, Value: 0.9}, nil},
		{"unknown synth", protocol.SynthSeq{SynthIx: 2, BeatIx: 0, ActiveCellIxs: []int{1}}, sequencer.ErrUnknownTrack},
		{"slot count", protocol.SynthSeq{SynthIx: 0, BeatIx: 0, ActiveCellIxs: []int{1}}, sequencer.ErrInvalidSlotCount},
		{"duplicate", protocol.SamplerSeq{BeatIx: 0, ActiveCellIxs: []int{1, 1}}, sequencer.ErrDuplicateRow},
		{"beat", protocol.SamplerSeq{BeatIx: -1, ActiveCellIxs: []int{1, -1}}, sequencer.ErrBeatOutOfRange},
		{"cutoff range", protocol.SynthFilterCutoff{SynthIx: 0, Value: 4}, protocol.ErrMalformedMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Apply(5, tt.u)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	s := r.Sync(5)
	if s.SynthSequences[1][3][0] != 4 || s.SamplerSequence[3][1] != 0 || s.SynthCutoffs[0] != 0.9 {
		t.Fatalf("sync = %+v", s)
	}
	if s.YourClientID == nil || *s.YourClientID != 5 {
		t.Fatal("sync should name the receiver")
	}
	if s.ConnectedClients == nil {
		t.Fatal("empty roster must encode as []")
	}
}
