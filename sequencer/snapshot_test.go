package sequencer

import (
	"errors"
	"testing"
)

func TestSnapshotRestore(t *testing.T) {
	s := testStore(t)
	if err := s.SetColumn(0, 4, Column{13, 2}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetColumn(2, 1, Column{1, Empty}); err != nil {
		t.Fatal(err)
	}
	s.SetCutoff(1, 0.9)
	snap := s.Snapshot()

	other := testStore(t)
	if err := other.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := other.Column(0, 4); !got.Equal(Column{13, 2}) {
		t.Errorf("synth column = %v", got)
	}
	if got := other.Column(2, 1); !got.Equal(Column{1, Empty}) {
		t.Errorf("sampler column = %v", got)
	}
	if other.Cutoff(1) != 0.9 {
		t.Errorf("cutoff = %v", other.Cutoff(1))
	}

	snap.Synths[0][4][0] = 0
	if other.Column(0, 4)[0] != 13 {
		t.Error("restore aliased snapshot memory")
	}
}

func TestRestoreRejectsInvalidAtomically(t *testing.T) {
	s := testStore(t)
	s.SetColumn(0, 0, Column{1, Empty})
	snap := s.Snapshot()
	snap.Synths[1][3] = Column{99}

	if err := s.Restore(snap); !errors.Is(err, ErrRowOutOfRange) {
		t.Fatalf("err = %v", err)
	}
	if !s.Column(0, 0).Equal(Column{1, Empty}) {
		t.Fatal("store changed after failed restore")
	}

	snap = s.Snapshot()
	snap.Sampler = snap.Sampler[:8]
	if err := s.Restore(snap); !errors.Is(err, ErrBeatOutOfRange) {
		t.Fatalf("mismatched beats err = %v", err)
	}
}

func TestRestoreKeepsPolicies(t *testing.T) {
	s := testStore(t)
	s.SetPolicy(0, PolicyFIFO)
	if err := s.Restore(s.Snapshot()); err != nil {
		t.Fatal(err)
	}
	spec, _ := s.Spec(0)
	if spec.Policy != PolicyFIFO {
		t.Fatalf("policy = %q", spec.Policy)
	}
}

func TestBitmapRoundTrip(t *testing.T) {
	g := Grid{
		{3, Empty},
		{Empty, Empty},
		{5, 1},
		{Empty, 0},
	}
	bm := ToBitmap(g, 6)
	if !bm[3][0] || !bm[1][2] || !bm[5][2] || !bm[0][3] || bm[2][1] {
		t.Fatalf("bitmap = %v", bm)
	}
	back, err := FromBitmap(bm, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := Normalize(g)
	for b := range want {
		if !back[b].Equal(want[b]) {
			t.Fatalf("beat %d: %v, want %v", b, back[b], want[b])
		}
	}
}

func TestFromBitmapOverflow(t *testing.T) {
	bm := Bitmap{{true}, {true}, {true}}
	if _, err := FromBitmap(bm, 2); !errors.Is(err, ErrInvalidSlotCount) {
		t.Fatalf("err = %v", err)
	}
}
