package midi

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"

	"jamsesh/debug"
	"jamsesh/sequencer"
)

func TestNoteForFrequency(t *testing.T) {
	tests := []struct {
		freq float64
		want uint8
	}{
		{440, 69},
		{220, 57},
		{55, 33},
		{261.63, 60},
		{0, 0},
		{1e6, 127},
	}
	for _, tt := range tests {
		if got := NoteForFrequency(tt.freq); got != tt.want {
			t.Errorf("NoteForFrequency(%v) = %d, want %d", tt.freq, got, tt.want)
		}
	}
}

func TestOutputVoices(t *testing.T) {
	rec := &Recorder{}
	out := NewOutput(rec.Send, OutputConfig{SynthChannels: []int{3, 4}}, nil)

	out.TriggerVoices(1, []float64{440, 220})
	out.TriggerVoices(1, []float64{110})
	out.TriggerVoices(5, []float64{440})
	want := []Event{
		{Type: NoteOn, Channel: 4, Note: 69, Velocity: 100},
		{Type: NoteOn, Channel: 4, Note: 57, Velocity: 100},
		{Type: NoteOff, Channel: 4, Note: 69},
		{Type: NoteOff, Channel: 4, Note: 57},
		{Type: NoteOn, Channel: 4, Note: 45, Velocity: 100},
		{Type: NoteOn, Channel: 5, Note: 69, Velocity: 100},
	}
	if got := rec.Events(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events:\n got %v\nwant %v", got, want)
	}

	out.Silence()
	got := rec.Events()
	if len(got) != 2 {
		t.Fatalf("silence sent %v", got)
	}
	for _, e := range got {
		if e.Type != NoteOff {
			t.Fatalf("silence sent %v", e)
		}
	}
	out.Silence()
	if got := rec.Events(); len(got) != 0 {
		t.Fatalf("second silence sent %v", got)
	}
}

func TestOutputSamplesAndCutoff(t *testing.T) {
	rec := &Recorder{}
	out := NewOutput(rec.Send, OutputConfig{SamplerChannel: DefaultSamplerChannel}, nil)
	out.TriggerSample(1)
	out.TriggerSample(4)
	out.SetCutoff(0, 0.5)
	out.SetCutoff(1, 2)
	want := []Event{
		{Type: NoteOn, Channel: 9, Note: 38, Velocity: 100},
		{Type: NoteOff, Channel: 9, Note: 38},
		{Type: NoteOn, Channel: 9, Note: 40, Velocity: 100},
		{Type: NoteOff, Channel: 9, Note: 40},
		{Type: CC, Channel: 0, Note: CutoffCC, Velocity: 64},
		{Type: CC, Channel: 1, Note: CutoffCC, Velocity: 127},
	}
	if got := rec.Events(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events:\n got %v\nwant %v", got, want)
	}
}

func TestSchedulerStopSilencesOutput(t *testing.T) {
	store, err := sequencer.NewStore(4, sequencer.TrackSpec{Kind: sequencer.KindSynth, Rows: 4, Voices: 1})
	if err != nil {
		t.Fatal(err)
	}
	store.SetColumn(0, 0, sequencer.Column{3})
	rec := &Recorder{}
	out := NewOutput(rec.Send, OutputConfig{}, nil)
	s := sequencer.NewScheduler(store, out, sequencer.NewManualClock(), 120, nil)
	s.Start()
	s.Stop()
	got := rec.Events()
	if len(got) != 2 || got[0].Type != NoteOn || got[1].Type != NoteOff || got[0].Note != got[1].Note {
		t.Fatalf("events = %v", got)
	}
}

func TestMatchPort(t *testing.T) {
	ports := []fakePort{"IAC Driver Bus 1", "FluidSynth virtual port"}
	if p, err := match(ports, "fluid"); err != nil || p != ports[1] {
		t.Fatalf("match = %v, %v", p, err)
	}
	if p, err := match(ports, ""); err != nil || p != ports[0] {
		t.Fatalf("empty name should pick the first port: %v, %v", p, err)
	}
	if _, err := match(ports, "launchpad"); !errors.Is(err, ErrNoPort) {
		t.Fatalf("err = %v", err)
	}
	if _, err := match([]fakePort{}, ""); !errors.Is(err, ErrNoPort) {
		t.Fatalf("err = %v", err)
	}
}

type fakePort string

func (p fakePort) String() string { return string(p) }

func TestRecorderRejectsUnknown(t *testing.T) {
	rec := &Recorder{}
	if err := rec.Send(gomidi.Pitchbend(0, 100)); err == nil {
		t.Fatal("pitch bend should not decode")
	}
}

func TestKits(t *testing.T) {
	if got := KitNames(); len(got) != 4 || got[0] != "er1" {
		t.Fatalf("KitNames() = %v", got)
	}
	rd8, ok := LookupKit("RD8")
	if !ok {
		t.Fatal("lookup should ignore case")
	}
	if notes := rd8.SampleNotes(); notes[0] != 36 || notes[1] != 40 {
		t.Fatalf("rd8 kick/snare = %v", notes[:2])
	}
	if _, ok := LookupKit("808"); ok {
		t.Fatal("unknown kit found")
	}
}

func TestFirstSendFailureLogged(t *testing.T) {
	var buf bytes.Buffer
	dead := func(gomidi.Message) error { return errors.New("port gone") }
	out := NewOutput(dead, OutputConfig{}, debug.New(&buf, debug.LevelInfo))

	out.TriggerSample(0)
	if n := strings.Count(buf.String(), "send failed"); n != 1 {
		t.Fatalf("warnings = %d, log = %s", n, buf.String())
	}
	out.TriggerSample(1)
	if n := strings.Count(buf.String(), "send failed"); n != 1 {
		t.Fatalf("repeat failures should not warn again: %s", buf.String())
	}
}
