package sequencer

import "fmt"

// baseFreqs holds one octave of equal-tempered pitches starting at A1.
var baseFreqs = [12]float64{
	55.0000, // A
	58.2705, // A#
	61.7354, // B
	65.4064, // C
	69.2957, // C#
	73.4162, // D
	77.7817, // D#
	82.4069, // E
	87.3071, // F
	92.4986, // F#
	97.9989, // G
	103.826, // G#
}

// MaxNoteIndex bounds NoteFrequency.
const MaxNoteIndex = 70

// DefaultNoteOffset puts the bottom synth row two octaves above A1.
const DefaultNoteOffset = 24

// NoteFrequency returns the frequency of a linear note index.
func NoteFrequency(noteIx int) (float64, error) {
	if noteIx < 0 || noteIx > MaxNoteIndex {
		return 0, fmt.Errorf("invalid note index (%d)", noteIx)
	}
	return baseFreqs[noteIx%12] * float64(int(1)<<(noteIx/12)), nil
}

// RowNote maps a grid row to a note index; row 0 is the highest pitch.
func RowNote(row, rows, offset int) int {
	return (rows - 1 - row) + offset
}

// RowFrequency maps a synth row to its frequency.
func RowFrequency(row, rows, offset int) (float64, error) {
	return NoteFrequency(RowNote(row, rows, offset))
}

// RowSample maps a sampler row to a sample index; row 0 is the last sample.
func RowSample(row, rows int) int {
	return (rows - 1) - row
}
