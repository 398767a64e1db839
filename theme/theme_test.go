package theme

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadGPL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.gpl")
	data := "GIMP Palette\nName: test\nColumns: 2\n# comment\n0 0 0\tblack\n255 255 255 white\n300 0 0 bogus\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadGPL(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "test" || len(p.Colors) != 2 {
		t.Fatalf("palette = %+v", p)
	}
	if got := p.Lookup(0); got != (RGB{0, 0, 0}) {
		t.Fatalf("Lookup(0) = %v", got)
	}
	if got := p.Lookup(1); got != (RGB{255, 255, 255}) {
		t.Fatalf("Lookup(1) = %v", got)
	}
	mid := p.Lookup(0.5)
	if mid[0] == 0 || mid[0] == 255 || absDiff(mid[0], mid[1]) > 1 {
		t.Fatalf("Lookup(0.5) = %v, want a grey", mid)
	}

	empty := filepath.Join(t.TempDir(), "empty.gpl")
	os.WriteFile(empty, []byte("GIMP Palette\n"), 0o644)
	if _, err := LoadGPL(empty); err == nil {
		t.Fatal("palette without colours should fail")
	}
}

func TestLoadDefaultsToPlasma(t *testing.T) {
	p, err := Load("")
	if err != nil || p.Name != "plasma" {
		t.Fatalf("Load(\"\") = %v, %v", p, err)
	}
}

func TestParticipantColours(t *testing.T) {
	th := New(nil)
	if th.ParticipantRGB(3) != th.ParticipantRGB(3) {
		t.Fatal("participant colour should be stable")
	}
	seen := map[RGB]int{}
	for id := 0; id < 8; id++ {
		c := th.ParticipantRGB(id)
		if prev, ok := seen[c]; ok {
			t.Fatalf("ids %d and %d share colour %v", prev, id, c)
		}
		seen[c] = id
	}
	if c := th.Participant(0); len(c) != 7 || c[0] != '#' {
		t.Fatalf("Participant(0) = %q", c)
	}
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
