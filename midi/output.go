package midi

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"

	"jamsesh/debug"
	"jamsesh/sequencer"
)

// DefaultSamplerChannel is the General MIDI percussion channel (10, zero based).
const DefaultSamplerChannel = 9

// DefaultSampleNotes are GM kick and snare.
var DefaultSampleNotes = []int{36, 38}

// OutputConfig maps tracks onto MIDI channels.
type OutputConfig struct {
	// SynthChannels[i] is the channel of the i-th track. Tracks past the end
	// reuse their index modulo 16.
	SynthChannels  []int
	SamplerChannel int
	// SampleNotes[i] is the key triggered for sample i.
	SampleNotes []int
	Velocity    int
}

func (c OutputConfig) withDefaults() OutputConfig {
	if c.SynthChannels == nil {
		c.SynthChannels = []int{0, 1}
	}
	if c.SampleNotes == nil {
		c.SampleNotes = DefaultSampleNotes
	}
	if c.Velocity <= 0 || c.Velocity > 127 {
		c.Velocity = 100
	}
	return c
}

// Output plays the sequencer on a MIDI port. Synth voices are held until the
// next trigger on the same track, samples are one-shot notes and cutoff edits
// are sent as CC 74.
type Output struct {
	mu    sync.Mutex
	send  func(gomidi.Message) error
	close func() error
	cfg   OutputConfig
	log   *slog.Logger

	held     map[sequencer.TrackID][]uint8
	failures int
}

// NewOutput sends through send; tests pass Recorder.Send.
func NewOutput(send func(gomidi.Message) error, cfg OutputConfig, log *slog.Logger) *Output {
	if log == nil {
		log = debug.Discard()
	}
	return &Output{
		send: send,
		cfg:  cfg.withDefaults(),
		log:  debug.Category(log, "midi"),
		held: make(map[sequencer.TrackID][]uint8),
	}
}

// Open connects to the output port whose name contains name, or the first
// port when name is empty.
func Open(name string, cfg OutputConfig, log *slog.Logger) (*Output, error) {
	port, err := FindOut(name)
	if err != nil {
		return nil, err
	}
	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("midi: open %s: %w", port, err)
	}
	o := NewOutput(send, cfg, log)
	o.close = port.Close
	o.log.Info("output opened", "port", port.String())
	return o, nil
}

// NoteForFrequency returns the nearest MIDI key, clamped to 0..127.
func NoteForFrequency(freq float64) uint8 {
	if freq <= 0 {
		return 0
	}
	n := math.Round(69 + 12*math.Log2(freq/440))
	return uint8(max(0, min(127, n)))
}

func (o *Output) TriggerVoices(track sequencer.TrackID, freqs []float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch := o.channel(track)
	o.release(track, ch)
	notes := make([]uint8, 0, len(freqs))
	for _, f := range freqs {
		n := NoteForFrequency(f)
		o.emit(Event{Type: NoteOn, Channel: ch, Note: n, Velocity: uint8(o.cfg.Velocity)})
		notes = append(notes, n)
	}
	o.held[track] = notes
}

func (o *Output) TriggerSample(index int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	note := 36 + index
	if index >= 0 && index < len(o.cfg.SampleNotes) {
		note = o.cfg.SampleNotes[index]
	}
	if note < 0 || note > 127 {
		o.log.Warn("sample has no key", "index", index)
		return
	}
	ch := uint8(o.cfg.SamplerChannel & 0x0f)
	o.emit(Event{Type: NoteOn, Channel: ch, Note: uint8(note), Velocity: uint8(o.cfg.Velocity)})
	o.emit(Event{Type: NoteOff, Channel: ch, Note: uint8(note)})
}

// SetCutoff sends value (0..1) as CC 74 on the track's channel.
func (o *Output) SetCutoff(track sequencer.TrackID, value float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v := uint8(math.Round(max(0, min(1, value)) * 127))
	o.emit(Event{Type: CC, Channel: o.channel(track), Note: CutoffCC, Velocity: v})
}

// Silence releases every held voice.
func (o *Output) Silence() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for track := range o.held {
		o.release(track, o.channel(track))
	}
}

// Close silences the output and closes the port.
func (o *Output) Close() error {
	o.Silence()
	if o.close == nil {
		return nil
	}
	return o.close()
}

func (o *Output) channel(track sequencer.TrackID) uint8 {
	if int(track) >= 0 && int(track) < len(o.cfg.SynthChannels) {
		return uint8(o.cfg.SynthChannels[track] & 0x0f)
	}
	return uint8(int(track) & 0x0f)
}

func (o *Output) release(track sequencer.TrackID, ch uint8) {
	for _, n := range o.held[track] {
		o.emit(Event{Type: NoteOff, Channel: ch, Note: n})
	}
	delete(o.held, track)
}

func (o *Output) emit(e Event) {
	err := o.send(e.Message())
	if err == nil {
		debug.Log("midi", "sent %s", e)
		return
	}
	o.failures++
	if o.failures == 1 {
		o.log.Warn("send failed", "event", e.String(), "err", err)
		return
	}
	debug.LogEvery(64, "midi", "send %s: %v", e, err)
}

// Null discards everything; it backs headless and offline-silent runs.
type Null struct{}

func (Null) TriggerVoices(sequencer.TrackID, []float64) {}
func (Null) TriggerSample(int)                          {}
func (Null) SetCutoff(sequencer.TrackID, float64)       {}

// Recorder keeps every message sent through it.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Send(msg gomidi.Message) error {
	e, ok := decode(msg)
	if !ok {
		return fmt.Errorf("midi: unexpected message %v", msg)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of what was recorded and clears the log.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}
