package sequencer

import (
	"testing"
	"time"
)

type trigger struct {
	track TrackID
	freqs []float64
	index int
}

type recordingAudio struct {
	voices  []trigger
	samples []int
}

func (a *recordingAudio) TriggerVoices(track TrackID, freqs []float64) {
	a.voices = append(a.voices, trigger{track: track, freqs: append([]float64(nil), freqs...)})
}

func (a *recordingAudio) TriggerSample(index int) { a.samples = append(a.samples, index) }

func newTestScheduler(t *testing.T) (*Scheduler, *Store, *recordingAudio, *ManualClock) {
	t.Helper()
	store := testStore(t)
	audio := &recordingAudio{}
	clock := NewManualClock()
	return NewScheduler(store, audio, clock, DefaultBPM, nil), store, audio, clock
}

func TestSchedulerBeatTiming(t *testing.T) {
	s, _, _, clock := newTestScheduler(t)
	var beats []int
	var at []time.Duration
	s.OnBeat(func(b int) {
		beats = append(beats, b)
		at = append(at, clock.Now())
	})

	if s.Beat() != NoBeat {
		t.Fatalf("initial beat = %d", s.Beat())
	}
	s.Start()
	clock.Advance(500 * time.Millisecond)

	wantAt := []time.Duration{0, 250 * time.Millisecond, 500 * time.Millisecond}
	if len(beats) != 3 {
		t.Fatalf("beats = %v", beats)
	}
	for i := range wantAt {
		if beats[i] != i || at[i] != wantAt[i] {
			t.Fatalf("beat %d at %v, want %d at %v", beats[i], at[i], i, wantAt[i])
		}
	}
}

func TestSchedulerWraps(t *testing.T) {
	s, _, _, clock := newTestScheduler(t)
	s.Start()
	clock.Advance(16 * 250 * time.Millisecond)
	if s.Beat() != 0 {
		t.Fatalf("beat after 16 ticks = %d", s.Beat())
	}
}

func TestSchedulerTriggers(t *testing.T) {
	s, store, audio, clock := newTestScheduler(t)
	store.SetColumn(0, 0, Column{13, Empty})
	store.SetColumn(0, 1, Column{0, 13})
	store.SetColumn(2, 1, Column{0, Empty})

	s.Start()
	if len(audio.voices) != 1 || audio.voices[0].track != 0 || len(audio.voices[0].freqs) != 1 {
		t.Fatalf("beat 0 voices = %+v", audio.voices)
	}
	if audio.voices[0].freqs[0] < 219.9 || audio.voices[0].freqs[0] > 220.1 {
		t.Errorf("freq = %v", audio.voices[0].freqs[0])
	}
	clock.Advance(250 * time.Millisecond)
	if len(audio.voices) != 2 || len(audio.voices[1].freqs) != 2 {
		t.Fatalf("beat 1 voices = %+v", audio.voices)
	}
	if len(audio.samples) != 1 || audio.samples[0] != 1 {
		t.Fatalf("samples = %v", audio.samples)
	}
}

func TestSchedulerStop(t *testing.T) {
	s, _, _, clock := newTestScheduler(t)
	s.Start()
	clock.Advance(250 * time.Millisecond)
	s.Stop()
	if s.Beat() != NoBeat || s.Playing() || clock.Active() != 0 {
		t.Fatalf("beat=%d playing=%v active=%d", s.Beat(), s.Playing(), clock.Active())
	}
	clock.Advance(time.Second)
	if s.Beat() != NoBeat {
		t.Fatal("ticked after stop")
	}
	s.Toggle()
	if !s.Playing() || s.Beat() != 0 {
		t.Fatal("toggle should restart at beat 0")
	}
}

func TestSchedulerSetBPMKeepsBeat(t *testing.T) {
	s, _, _, clock := newTestScheduler(t)
	s.Start()
	clock.Advance(500 * time.Millisecond)
	s.SetBPM(120)
	if s.Beat() != 2 || clock.Active() != 1 {
		t.Fatalf("beat=%d active=%d", s.Beat(), clock.Active())
	}
	clock.Advance(499 * time.Millisecond)
	if s.Beat() != 2 {
		t.Fatalf("ticked early: %d", s.Beat())
	}
	clock.Advance(time.Millisecond)
	if s.Beat() != 3 {
		t.Fatalf("beat = %d", s.Beat())
	}

	s.SetBPM(1000)
	if s.BPM() != MaxBPM {
		t.Errorf("bpm = %d", s.BPM())
	}
	s.SetBPM(1)
	if s.BPM() != MinBPM {
		t.Errorf("bpm = %d", s.BPM())
	}
}
