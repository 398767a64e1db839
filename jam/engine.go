package jam

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"jamsesh/debug"
	"jamsesh/protocol"
	"jamsesh/sequencer"
)

// Sender delivers outbound updates to the relay.
type Sender interface {
	Send(u protocol.Update) error
}

// Applied describes a mutation that reached the Store.
type Applied struct {
	Update protocol.Update
	Track  sequencer.TrackID
	From   int
	Remote bool
}

type pendingEdit struct {
	wire   []byte
	update protocol.Update
	key    conflictKey
	sent   time.Time
}

type conflictKey struct {
	kind  protocol.Kind
	track int
	beat  int
}

// Engine applies local edits optimistically and reconciles relayed ones. It
// owns the Store and the Presence tracker and must only be used from the
// session loop.
type Engine struct {
	store    *sequencer.Store
	presence *Presence
	out      Sender
	log      *slog.Logger

	pending []pendingEdit
	localID int
	haveID  bool

	ttl time.Duration
	now func() time.Time

	onApply func(Applied)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPendingTTL expires pending edits that the relay has not echoed within
// ttl. Zero keeps them until the next Sync.
func WithPendingTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) { e.ttl = ttl }
}

// WithNow replaces the wall clock used for pending-edit expiry.
func WithNow(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// NewEngine returns an engine over store. A nil out runs it local-only: edits
// are applied and never queued.
func NewEngine(store *sequencer.Store, out Sender, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		presence: NewPresence(),
		out:      out,
		log:      debug.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = debug.Category(e.log, "sync")
	return e
}

// OnApply registers a listener for every mutation of the Store.
func (e *Engine) OnApply(fn func(Applied)) { e.onApply = fn }

func (e *Engine) Store() *sequencer.Store { return e.store }
func (e *Engine) Presence() *Presence     { return e.presence }

// Online reports whether edits are sent to a relay.
func (e *Engine) Online() bool { return e.out != nil }

// LocalID returns the id the relay assigned to this client.
func (e *Engine) LocalID() (int, bool) { return e.localID, e.haveID }

// Pending returns the number of unacknowledged edits.
func (e *Engine) Pending() int { return len(e.pending) }

// Connect announces the user. Offline, the user becomes participant 0.
func (e *Engine) Connect(username string) error {
	if e.out == nil {
		e.localID, e.haveID = 0, true
		e.presence.Add(0, username)
		return nil
	}
	if err := e.out.Send(protocol.Connect{Username: username}); err != nil {
		return fmt.Errorf("send connect: %w", err)
	}
	return nil
}

// GoOffline drops the sender after the transport is lost. Pending edits stay
// applied locally and are forgotten.
func (e *Engine) GoOffline() {
	if e.out == nil {
		return
	}
	e.out = nil
	e.pending = nil
	if !e.haveID {
		e.localID, e.haveID = 0, true
	}
	e.log.Warn("relay lost, continuing offline", "local_id", e.localID)
}

// ToggleSynth flips row at beat on a synth track. It reports false when the
// track's policy refused the toggle.
func (e *Engine) ToggleSynth(synthIx, row, beat int) (bool, error) {
	id, err := e.store.SynthTrack(synthIx)
	if err != nil {
		return false, err
	}
	next, changed, err := e.toggle(id, row, beat)
	if err != nil || !changed {
		return false, err
	}
	e.submit(id, protocol.SynthSeq{SynthIx: synthIx, BeatIx: beat, ActiveCellIxs: next, ClickedCellIx: row})
	return true, nil
}

// ToggleSampler flips row at beat on the sampler track.
func (e *Engine) ToggleSampler(row, beat int) (bool, error) {
	id, ok := e.store.Sampler()
	if !ok {
		return false, fmt.Errorf("%w: no sampler", sequencer.ErrUnknownTrack)
	}
	next, changed, err := e.toggle(id, row, beat)
	if err != nil || !changed {
		return false, err
	}
	e.submit(id, protocol.SamplerSeq{BeatIx: beat, ActiveCellIxs: next, ClickedCellIx: row})
	return true, nil
}

// SetCutoff moves a synth's filter cutoff. Unchanged values send nothing.
func (e *Engine) SetCutoff(synthIx int, value float64) (bool, error) {
	id, err := e.store.SynthTrack(synthIx)
	if err != nil {
		return false, err
	}
	old := e.store.Cutoff(id)
	if err := e.store.SetCutoff(id, value); err != nil {
		return false, err
	}
	value = e.store.Cutoff(id)
	if value == old {
		return false, nil
	}
	e.submit(id, protocol.SynthFilterCutoff{SynthIx: synthIx, Value: value})
	return true, nil
}

func (e *Engine) toggle(id sequencer.TrackID, row, beat int) ([]int, bool, error) {
	spec, err := e.store.Spec(id)
	if err != nil {
		return nil, false, err
	}
	if row < 0 || row >= spec.Rows {
		return nil, false, fmt.Errorf("%w: %d", sequencer.ErrRowOutOfRange, row)
	}
	col := e.store.Column(id, beat)
	if col == nil {
		return nil, false, fmt.Errorf("%w: %d", sequencer.ErrBeatOutOfRange, beat)
	}
	next, changed := sequencer.PolicyFor(spec.Policy).Toggle(col, row)
	if !changed {
		return nil, false, nil
	}
	if err := e.store.SetColumn(id, beat, next); err != nil {
		return nil, false, err
	}
	return []int(next), true, nil
}

// submit runs after the Store already holds the new value.
func (e *Engine) submit(id sequencer.TrackID, u protocol.Update) {
	e.emit(Applied{Update: u, Track: id, From: e.localID})
	if e.out == nil {
		return
	}
	wire, err := protocol.EncodeUpdate(u)
	if err != nil {
		e.log.Error("encode local edit", "err", err)
		return
	}
	key, _ := keyOf(u)
	e.pending = append(e.pending, pendingEdit{wire: wire, update: u, key: key, sent: e.now()})
	if err := e.out.Send(u); err != nil {
		e.pending = e.pending[:len(e.pending)-1]
		e.log.Warn("send failed, edit kept locally", "kind", u.Kind(), "err", err)
	}
}

// Handle reconciles one inbound message.
func (e *Engine) Handle(m protocol.Message) {
	switch msg := m.(type) {
	case *protocol.Sync:
		e.handleSync(msg)
	case protocol.Relayed:
		e.handleRelayed(msg.ClientID, msg.Update)
	default:
		e.log.Warn("dropping unknown message", "type", fmt.Sprintf("%T", m))
	}
}

func (e *Engine) handleSync(s *protocol.Sync) {
	snap := sequencer.Snapshot{
		SynthRows:   s.NumSynthNoteRows,
		SamplerRows: s.NumSamplerNoteRows,
		Cutoffs:     s.SynthCutoffs,
	}
	for _, seq := range s.SynthSequences {
		snap.Synths = append(snap.Synths, toGrid(seq))
	}
	if len(s.SamplerSequence) == 0 {
		e.log.Warn("dropping malformed sync", "err", "no sampler sequence")
		return
	}
	snap.Sampler = toGrid(s.SamplerSequence)
	if err := e.store.Restore(snap); err != nil {
		e.log.Warn("dropping malformed sync", "err", err)
		return
	}
	if n := len(e.pending); n > 0 {
		e.log.Debug("sync cleared pending edits", "count", n)
	}
	e.pending = nil
	e.presence.Reset(s.ConnectedClients)

	switch {
	case s.YourClientID != nil:
		e.localID, e.haveID = *s.YourClientID, true
	case !e.haveID && len(s.ConnectedClients) > 0:
		e.localID, e.haveID = s.ConnectedClients[len(s.ConnectedClients)-1].ID, true
		e.log.Debug("inferred local id from roster", "local_id", e.localID)
	}
	e.log.Info("synced", "local_id", e.localID, "participants", e.presence.Len(), "beats", e.store.Beats())
	e.emit(Applied{Track: -1, From: -1, Remote: true})
}

func (e *Engine) handleRelayed(from int, u protocol.Update) {
	self := e.haveID && from == e.localID
	switch v := u.(type) {
	case protocol.Connect:
		if !self {
			e.presence.Add(from, v.Username)
			e.log.Info("participant joined", "id", from, "name", v.Username)
		}
		return
	case protocol.Disconnect:
		if err := e.presence.Remove(from); err != nil {
			e.log.Debug("disconnect ignored", "err", err)
			return
		}
		e.log.Info("participant left", "id", from)
		return
	}

	key, ok := keyOf(u)
	if !ok {
		e.log.Warn("dropping unsupported update", "kind", u.Kind())
		return
	}
	e.prune()

	if self {
		wire, err := protocol.EncodeUpdate(u)
		if err != nil {
			e.log.Warn("dropping unencodable echo", "err", err)
			return
		}
		for i, p := range e.pending {
			if bytes.Equal(p.wire, wire) {
				e.pending = append(e.pending[:i], e.pending[i+1:]...)
				return
			}
		}
		// Already applied when it was sent.
		e.log.Debug("unmatched echo ignored", "kind", u.Kind())
		return
	}

	for _, p := range e.pending {
		if p.key == key {
			e.log.Debug("remote edit suppressed by pending edit", "from", from, "kind", u.Kind(), "beat", key.beat)
			return
		}
	}

	id, touch, err := e.apply(u)
	if err != nil {
		e.log.Warn("dropping malformed update", "from", from, "kind", u.Kind(), "err", err)
		return
	}
	if err := e.presence.Touch(from, touch); err != nil && !errors.Is(err, ErrUnknownParticipant) {
		e.log.Warn("presence", "err", err)
	}
	e.emit(Applied{Update: u, Track: id, From: from, Remote: true})
}

func (e *Engine) apply(u protocol.Update) (sequencer.TrackID, Touch, error) {
	switch v := u.(type) {
	case protocol.SynthSeq:
		id, err := e.store.SynthTrack(v.SynthIx)
		if err != nil {
			return 0, Touch{}, err
		}
		if err := e.store.SetColumn(id, v.BeatIx, v.ActiveCellIxs); err != nil {
			return 0, Touch{}, err
		}
		return id, Touch{Track: id, Beat: v.BeatIx, Row: v.ClickedCellIx}, nil
	case protocol.SamplerSeq:
		id, ok := e.store.Sampler()
		if !ok {
			return 0, Touch{}, fmt.Errorf("%w: no sampler", sequencer.ErrUnknownTrack)
		}
		if err := e.store.SetColumn(id, v.BeatIx, v.ActiveCellIxs); err != nil {
			return 0, Touch{}, err
		}
		return id, Touch{Track: id, Beat: v.BeatIx, Row: v.ClickedCellIx}, nil
	case protocol.SynthFilterCutoff:
		id, err := e.store.SynthTrack(v.SynthIx)
		if err != nil {
			return 0, Touch{}, err
		}
		if err := e.store.SetCutoff(id, v.Value); err != nil {
			return 0, Touch{}, err
		}
		return id, Touch{Track: id, Beat: -1, Row: -1}, nil
	}
	return 0, Touch{}, fmt.Errorf("%w: %s", protocol.ErrMalformedMessage, u.Kind())
}

// prune drops pending edits older than the TTL.
func (e *Engine) prune() {
	if e.ttl <= 0 || len(e.pending) == 0 {
		return
	}
	cutoff := e.now().Add(-e.ttl)
	kept := e.pending[:0]
	for _, p := range e.pending {
		if p.sent.Before(cutoff) {
			e.log.Debug("pending edit expired", "kind", p.update.Kind(), "beat", p.key.beat)
			continue
		}
		kept = append(kept, p)
	}
	e.pending = kept
}

func (e *Engine) emit(a Applied) {
	if e.onApply != nil {
		e.onApply(a)
	}
}

func keyOf(u protocol.Update) (conflictKey, bool) {
	switch v := u.(type) {
	case protocol.SynthSeq:
		return conflictKey{kind: protocol.KindSynthSeq, track: v.SynthIx, beat: v.BeatIx}, true
	case protocol.SamplerSeq:
		return conflictKey{kind: protocol.KindSamplerSeq, beat: v.BeatIx}, true
	case protocol.SynthFilterCutoff:
		return conflictKey{kind: protocol.KindSynthFilterCutoff, track: v.SynthIx, beat: -1}, true
	}
	return conflictKey{}, false
}

func toGrid(seq [][]int) sequencer.Grid {
	g := make(sequencer.Grid, len(seq))
	for i, c := range seq {
		g[i] = sequencer.Column(c)
	}
	return g
}
