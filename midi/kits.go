package midi

import (
	"slices"
	"strings"
)

// Kit maps sampler rows to drum machine keys. Slots run kick, snare, closed
// hat, open hat, low/mid/high tom, crash, ride, clap, rimshot, cowbell,
// clave, maracas, low conga, high conga.
type Kit struct {
	Name  string
	Notes [16]uint8
}

// DefaultKit is General MIDI.
const DefaultKit = "gm"

var kits = map[string]Kit{
	"gm": {
		Name:  "General MIDI",
		Notes: [16]uint8{36, 38, 42, 46, 41, 43, 45, 49, 51, 39, 37, 56, 75, 70, 64, 63},
	},
	"rd8": {
		// RD-8 puts its snare on 40.
		Name:  "Behringer RD-8",
		Notes: [16]uint8{36, 40, 42, 46, 45, 48, 50, 49, 51, 39, 37, 56, 75, 70, 64, 63},
	},
	"tr8s": {
		Name:  "Roland TR-8S",
		Notes: [16]uint8{36, 38, 42, 46, 41, 43, 45, 49, 51, 39, 37, 56, 75, 70, 62, 63},
	},
	"er1": {
		// Slots past the clap are unused on the ER-1.
		Name:  "Korg ER-1",
		Notes: [16]uint8{36, 38, 42, 46, 40, 41, 43, 49, 45, 39, 37, 56, 75, 70, 64, 63},
	},
}

// KitNames returns the known kits, sorted.
func KitNames() []string {
	names := make([]string, 0, len(kits))
	for name := range kits {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LookupKit finds a kit by name, ignoring case.
func LookupKit(name string) (Kit, bool) {
	k, ok := kits[strings.ToLower(name)]
	return k, ok
}

// SampleNotes returns the kit as OutputConfig.SampleNotes.
func (k Kit) SampleNotes() []int {
	notes := make([]int, len(k.Notes))
	for i, n := range k.Notes {
		notes[i] = int(n)
	}
	return notes
}
