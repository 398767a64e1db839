package sequencer

import (
	"log/slog"
	"time"

	"jamsesh/debug"
)

// NoBeat is the beat index while stopped.
const NoBeat = -1

// Tempo limits, same range the hardware sequencer accepts.
const (
	MinBPM     = 20
	MaxBPM     = 300
	DefaultBPM = 240
)

// AudioBackend receives fire-and-forget trigger calls.
type AudioBackend interface {
	TriggerVoices(track TrackID, freqs []float64)
	TriggerSample(index int)
}

// Silencer is implemented by backends that hold notes and must release them
// when playback stops.
type Silencer interface {
	Silence()
}

// GridReader is the read-only view of a Store the scheduler needs.
type GridReader interface {
	Beats() int
	NumTracks() int
	Spec(id TrackID) (TrackSpec, error)
	Column(id TrackID, beat int) Column
}

// Scheduler walks the grid at a fixed tempo. Like the Store it belongs to the
// session loop; none of its methods block.
type Scheduler struct {
	grid  GridReader
	audio AudioBackend
	clock Clock
	log   *slog.Logger

	bpm        int
	beat       int
	playing    bool
	handle     Handle
	noteOffset int
	onBeat     func(beat int)
}

// NewScheduler returns a stopped scheduler.
func NewScheduler(grid GridReader, audio AudioBackend, clock Clock, bpm int, log *slog.Logger) *Scheduler {
	if log == nil {
		log = debug.Discard()
	}
	return &Scheduler{
		grid:       grid,
		audio:      audio,
		clock:      clock,
		log:        debug.Category(log, "playback"),
		bpm:        clampBPM(bpm),
		beat:       NoBeat,
		noteOffset: DefaultNoteOffset,
	}
}

// OnBeat registers a listener called after each beat is triggered.
func (s *Scheduler) OnBeat(fn func(beat int)) { s.onBeat = fn }

// SetNoteOffset changes the row→note offset used for synth tracks.
func (s *Scheduler) SetNoteOffset(offset int) { s.noteOffset = offset }

func (s *Scheduler) BPM() int      { return s.bpm }
func (s *Scheduler) Beat() int     { return s.beat }
func (s *Scheduler) Playing() bool { return s.playing }

// Interval is the tick period for the current tempo.
func (s *Scheduler) Interval() time.Duration {
	return BeatInterval(s.bpm)
}

// BeatInterval returns 60000/bpm milliseconds.
func BeatInterval(bpm int) time.Duration {
	return time.Duration(float64(time.Minute) / float64(clampBPM(bpm)))
}

// Start fires beat 0 immediately and then ticks every Interval.
func (s *Scheduler) Start() {
	if s.playing {
		return
	}
	s.playing = true
	s.beat = 0
	s.fire(s.beat)
	s.handle = s.clock.SetInterval(s.tick, s.Interval())
	s.log.Debug("start", "bpm", s.bpm)
}

// Stop cancels the timer and resets the beat to NoBeat.
func (s *Scheduler) Stop() {
	if !s.playing {
		return
	}
	s.clock.ClearInterval(s.handle)
	s.playing = false
	s.beat = NoBeat
	if sl, ok := s.audio.(Silencer); ok {
		sl.Silence()
	}
	s.notify()
	s.log.Debug("stop")
}

// Toggle starts or stops playback.
func (s *Scheduler) Toggle() {
	if s.playing {
		s.Stop()
	} else {
		s.Start()
	}
}

// SetBPM changes tempo. While playing the timer restarts at the new interval
// and the beat position is kept.
func (s *Scheduler) SetBPM(bpm int) {
	bpm = clampBPM(bpm)
	if bpm == s.bpm {
		return
	}
	s.bpm = bpm
	if s.playing {
		s.clock.ClearInterval(s.handle)
		s.handle = s.clock.SetInterval(s.tick, s.Interval())
	}
	s.log.Debug("tempo", "bpm", bpm, "beat", s.beat)
}

func (s *Scheduler) tick() {
	if !s.playing {
		return
	}
	beats := s.grid.Beats()
	if beats <= 0 {
		return
	}
	s.beat = (s.beat + 1) % beats
	s.fire(s.beat)
}

func (s *Scheduler) fire(beat int) {
	debug.Log("sched", "beat %d", beat)
	for i := 0; i < s.grid.NumTracks(); i++ {
		id := TrackID(i)
		spec, err := s.grid.Spec(id)
		if err != nil {
			continue
		}
		active := s.grid.Column(id, beat).Active()
		if len(active) == 0 {
			continue
		}
		switch spec.Kind {
		case KindSynth:
			freqs := make([]float64, 0, len(active))
			for _, row := range active {
				f, err := RowFrequency(row, spec.Rows, s.noteOffset)
				if err != nil {
					s.log.Warn("skip voice", "track", i, "row", row, "err", err)
					continue
				}
				freqs = append(freqs, f)
			}
			if len(freqs) > 0 {
				s.audio.TriggerVoices(id, freqs)
			}
		case KindSampler:
			for _, row := range active {
				s.audio.TriggerSample(RowSample(row, spec.Rows))
			}
		}
	}
	s.notify()
}

func (s *Scheduler) notify() {
	if s.onBeat != nil {
		s.onBeat(s.beat)
	}
}

func clampBPM(bpm int) int {
	if bpm < MinBPM {
		return MinBPM
	}
	if bpm > MaxBPM {
		return MaxBPM
	}
	return bpm
}
