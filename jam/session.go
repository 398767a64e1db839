package jam

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"jamsesh/debug"
	"jamsesh/protocol"
	"jamsesh/sequencer"
)

// Transport is the relay connection a Session drives.
type Transport interface {
	Sender
	OnMessage(fn func(protocol.Message))
	OnClose(fn func(error))
	Close() error
}

// CutoffSetter is implemented by audio backends that follow filter edits.
type CutoffSetter interface {
	SetCutoff(track sequencer.TrackID, value float64)
}

// SessionConfig holds the per-run knobs of a Session.
type SessionConfig struct {
	Username   string
	BPM        int
	PendingTTL time.Duration
	NoteOffset int
}

// TrackView is a copy of one track for rendering.
type TrackView struct {
	ID     sequencer.TrackID
	Spec   sequencer.TrackSpec
	Grid   sequencer.Grid
	Cutoff float64
}

// View is an immutable snapshot of the whole session for the UI.
type View struct {
	Tracks       []TrackView
	Beats        int
	Beat         int
	BPM          int
	Playing      bool
	Online       bool
	LocalID      int
	Pending      int
	Participants []Participant
}

// Session ties the engine, the scheduler and the transport to one event loop.
type Session struct {
	loop   *Loop
	engine *Engine
	sched  *sequencer.Scheduler
	tr     Transport
	audio  sequencer.AudioBackend
	log    *slog.Logger

	username string
	views    chan View
}

type SessionOption func(*sessionOptions)

type sessionOptions struct {
	clock sequencer.Clock
	now   func() time.Time
}

// WithClock replaces the real-time playback clock.
func WithClock(c sequencer.Clock) SessionOption {
	return func(o *sessionOptions) { o.clock = c }
}

// WithSessionNow replaces the wall clock used for pending-edit expiry.
func WithSessionNow(now func() time.Time) SessionOption {
	return func(o *sessionOptions) { o.now = now }
}

// NewSession builds a session over store. A nil tr means local-only.
func NewSession(store *sequencer.Store, audio sequencer.AudioBackend, tr Transport, cfg SessionConfig, log *slog.Logger, opts ...SessionOption) *Session {
	if log == nil {
		log = debug.Discard()
	}
	o := sessionOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		loop:     NewLoop(256),
		tr:       tr,
		audio:    audio,
		log:      debug.Category(log, "session"),
		username: cfg.Username,
		views:    make(chan View, 1),
	}
	if o.clock == nil {
		o.clock = sequencer.NewTickerClock(s.loop.Post)
	}

	var out Sender
	if tr != nil {
		out = tr
	}
	s.engine = NewEngine(store, out,
		WithLogger(log),
		WithPendingTTL(cfg.PendingTTL),
		WithNow(o.now),
	)
	s.engine.OnApply(s.applied)

	bpm := cfg.BPM
	if bpm == 0 {
		bpm = sequencer.DefaultBPM
	}
	s.sched = sequencer.NewScheduler(store, audio, o.clock, bpm, log)
	if cfg.NoteOffset != 0 {
		s.sched.SetNoteOffset(cfg.NoteOffset)
	}
	s.sched.OnBeat(func(int) { s.publish() })

	// Connect is the first thing the loop runs, ahead of any edit posted
	// before Run.
	s.loop.Post(s.connect)
	return s
}

func (s *Session) connect() {
	if err := s.engine.Connect(s.username); err != nil {
		s.log.Warn("connect failed", "err", err)
		s.engine.GoOffline()
		s.engine.Connect(s.username)
	}
	s.pushCutoffs()
	s.publish()
}

// Views delivers the latest View after every change. Intermediate views are
// dropped when the reader is slow. The channel is closed when Run returns.
func (s *Session) Views() <-chan View { return s.views }

// Run processes events, starting with the connect step, until ctx is
// cancelled.
func (s *Session) Run(ctx context.Context) error {
	if s.tr != nil {
		s.tr.OnClose(func(err error) {
			s.loop.Post(func() {
				if err != nil {
					s.log.Warn("transport closed", "err", err)
				}
				s.engine.GoOffline()
				s.publish()
			})
		})
		s.tr.OnMessage(func(m protocol.Message) {
			s.loop.Post(func() {
				s.engine.Handle(m)
				s.publish()
			})
		})
	}
	err := s.loop.Run(ctx)
	s.sched.Stop()
	if s.tr != nil {
		s.tr.Close()
	}
	close(s.views)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ToggleCell flips a cell on any track.
func (s *Session) ToggleCell(track sequencer.TrackID, row, beat int) {
	s.loop.Post(func() {
		spec, err := s.engine.Store().Spec(track)
		if err != nil {
			s.log.Debug("toggle on unknown track", "track", track)
			return
		}
		if spec.Kind == sequencer.KindSampler {
			_, err = s.engine.ToggleSampler(row, beat)
		} else {
			_, err = s.engine.ToggleSynth(s.synthIndex(track), row, beat)
		}
		if err != nil {
			s.log.Debug("toggle rejected", "track", track, "row", row, "beat", beat, "err", err)
		}
		s.publish()
	})
}

// NudgeCutoff moves a synth cutoff by delta.
func (s *Session) NudgeCutoff(track sequencer.TrackID, delta float64) {
	s.loop.Post(func() {
		spec, err := s.engine.Store().Spec(track)
		if err != nil || spec.Kind != sequencer.KindSynth {
			return
		}
		v := s.engine.Store().Cutoff(track) + delta
		if _, err := s.engine.SetCutoff(s.synthIndex(track), v); err != nil {
			s.log.Debug("cutoff rejected", "track", track, "err", err)
		}
		s.publish()
	})
}

func (s *Session) TogglePlay() {
	s.loop.Post(func() {
		s.sched.Toggle()
		s.publish()
	})
}

// NudgeBPM changes tempo by delta, clamped to the scheduler's range.
func (s *Session) NudgeBPM(delta int) {
	s.loop.Post(func() {
		s.sched.SetBPM(s.sched.BPM() + delta)
		s.publish()
	})
}

// View returns the current state synchronously. Never call it from inside
// the loop.
func (s *Session) View() (View, bool) {
	var v View
	ok := s.loop.Do(func() { v = s.view() })
	return v, ok
}

func (s *Session) synthIndex(track sequencer.TrackID) int {
	for i, id := range s.engine.Store().Synths() {
		if id == track {
			return i
		}
	}
	return -1
}

func (s *Session) applied(a Applied) {
	if a.Update == nil {
		s.pushCutoffs()
		return
	}
	if c, ok := a.Update.(protocol.SynthFilterCutoff); ok {
		if setter, ok := s.audio.(CutoffSetter); ok {
			setter.SetCutoff(a.Track, c.Value)
		}
	}
}

func (s *Session) pushCutoffs() {
	setter, ok := s.audio.(CutoffSetter)
	if !ok {
		return
	}
	store := s.engine.Store()
	for _, id := range store.Synths() {
		setter.SetCutoff(id, store.Cutoff(id))
	}
}

func (s *Session) view() View {
	store := s.engine.Store()
	id, _ := s.engine.LocalID()
	v := View{
		Beats:        store.Beats(),
		Beat:         s.sched.Beat(),
		BPM:          s.sched.BPM(),
		Playing:      s.sched.Playing(),
		Online:       s.engine.Online(),
		LocalID:      id,
		Pending:      s.engine.Pending(),
		Participants: s.engine.Presence().List(),
	}
	for i := 0; i < store.NumTracks(); i++ {
		tid := sequencer.TrackID(i)
		spec, _ := store.Spec(tid)
		v.Tracks = append(v.Tracks, TrackView{ID: tid, Spec: spec, Grid: store.Grid(tid), Cutoff: store.Cutoff(tid)})
	}
	return v
}

func (s *Session) publish() {
	v := s.view()
	select {
	case <-s.views:
	default:
	}
	select {
	case s.views <- v:
	default:
	}
}
