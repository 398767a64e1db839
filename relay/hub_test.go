package relay

import (
	"context"
	"testing"
	"time"

	"jamsesh/jam"
	"jamsesh/protocol"
	"jamsesh/sequencer"
)

func startHub(t *testing.T, opts ...HubOption) *Hub {
	t.Helper()
	h := NewHub(newTestRoom(t), nil, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func next(t *testing.T, c *Client) protocol.Message {
	t.Helper()
	select {
	case frame, ok := <-c.Frames():
		if !ok {
			t.Fatalf("client %d closed", c.ID)
		}
		m, err := protocol.DecodeMessage(frame)
		if err != nil {
			t.Fatalf("bad frame %s: %v", frame, err)
		}
		return m
	case <-time.After(5 * time.Second):
		t.Fatalf("client %d got nothing", c.ID)
	}
	return nil
}

func quiet(t *testing.T, c *Client) {
	t.Helper()
	select {
	case frame := <-c.Frames():
		t.Fatalf("client %d unexpectedly got %s", c.ID, frame)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubConnectFlow(t *testing.T) {
	h := startHub(t)
	a, err := h.Join()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := h.Join()
	if a.ID != 0 || b.ID != 1 {
		t.Fatalf("ids = %d, %d", a.ID, b.ID)
	}

	// edits before Connect are ignored
	a.Submit(protocol.SynthSeq{SynthIx: 0, BeatIx: 1, ActiveCellIxs: []int{2, -1}, ClickedCellIx: 2})
	a.Submit(protocol.Connect{Username: "ada"})

	sync, ok := next(t, a).(*protocol.Sync)
	if !ok {
		t.Fatal("first frame should be a sync")
	}
	if *sync.YourClientID != 0 || len(sync.ConnectedClients) != 1 || sync.SynthSequences[0][1][0] != sequencer.Empty {
		t.Fatalf("sync = %+v", sync)
	}
	if r := next(t, a).(protocol.Relayed); r.ClientID != 0 || r.Update.Kind() != protocol.KindConnect {
		t.Fatalf("echo = %+v", r)
	}
	quiet(t, b)

	b.Submit(protocol.Connect{Username: "bob"})
	if s := next(t, b).(*protocol.Sync); len(s.ConnectedClients) != 2 || *s.YourClientID != 1 {
		t.Fatalf("bob sync = %+v", s)
	}
	next(t, b)
	if r := next(t, a).(protocol.Relayed); r.ClientID != 1 {
		t.Fatalf("ada saw %+v", r)
	}

	// invalid edits are not relayed
	b.Submit(protocol.SynthSeq{SynthIx: 0, BeatIx: 1, ActiveCellIxs: []int{99, -1}})
	quiet(t, a)

	b.Leave()
	if r := next(t, a).(protocol.Relayed); r.ClientID != 1 || r.Update.Kind() != protocol.KindDisconnect {
		t.Fatalf("ada saw %+v", r)
	}
	b.Leave()
	if _, open := <-b.Frames(); open {
		t.Fatal("frames should be closed after leaving")
	}
	if n := h.Clients(); n != 1 {
		t.Fatalf("clients = %d", n)
	}
}

func TestHubSlowClientDropped(t *testing.T) {
	h := startHub(t, WithSendBuffer(2))
	slow, _ := h.Join()
	fast, _ := h.Join()

	// fast drains from the start and reports its cutoff echoes.
	echoes := make(chan float64, 16)
	go func() {
		for frame := range fast.Frames() {
			m, err := protocol.DecodeMessage(frame)
			if err != nil {
				continue
			}
			if r, ok := m.(protocol.Relayed); ok && r.ClientID == fast.ID {
				if c, ok := r.Update.(protocol.SynthFilterCutoff); ok {
					echoes <- c.Value
				}
			}
		}
	}()

	slow.Submit(protocol.Connect{Username: "slow"})
	fast.Submit(protocol.Connect{Username: "fast"})
	for i := 0; i < 10; i++ {
		v := float64(i) / 10
		fast.Submit(protocol.SynthFilterCutoff{SynthIx: 0, Value: v})
		select {
		case got := <-echoes:
			if got != v {
				t.Fatalf("echo %v, want %v", got, v)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("fast client lost its echo %d, clients = %d", i, h.Clients())
		}
	}

	deadline := time.After(5 * time.Second)
	for h.Clients() != 1 {
		select {
		case <-deadline:
			t.Fatalf("slow client not dropped, clients = %d", h.Clients())
		case <-time.After(10 * time.Millisecond):
		}
	}
	// slow keeps its sync and own echo, then its queue is closed.
	n := 0
	for range slow.Frames() {
		n++
	}
	if n != 2 {
		t.Fatalf("slow got %d frames before the drop", n)
	}
}

// peer is a client engine fed by hand from a hub connection.
type peer struct {
	engine *jam.Engine
	conn   *Client
}

type hubSender struct{ c *Client }

func (s hubSender) Send(u protocol.Update) error {
	s.c.Submit(u)
	return nil
}

func newPeer(t *testing.T, h *Hub, name string) *peer {
	t.Helper()
	c, err := h.Join()
	if err != nil {
		t.Fatal(err)
	}
	store, err := sequencer.NewStore(1, sequencer.TrackSpec{Kind: sequencer.KindSynth, Rows: 1, Voices: 1})
	if err != nil {
		t.Fatal(err)
	}
	p := &peer{engine: jam.NewEngine(store, hubSender{c}), conn: c}
	if err := p.engine.Connect(name); err != nil {
		t.Fatal(err)
	}
	p.pump(t, 2)
	return p
}

// pump feeds n frames to the engine.
func (p *peer) pump(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		p.engine.Handle(next(t, p.conn))
	}
}

func TestConcurrentEditsConverge(t *testing.T) {
	for _, first := range []string{"a", "b"} {
		t.Run(first+" delivered first", func(t *testing.T) {
			h := startHub(t)
			a := newPeer(t, h, "a")
			b := newPeer(t, h, "b")
			a.pump(t, 1) // b's connect

			// Both edit synth 1 beat 0 (one voice) before seeing each other.
			// Submit enqueues synchronously, so call order is relay order.
			if first == "a" {
				a.engine.ToggleSynth(1, 5, 0)
				b.engine.ToggleSynth(1, 7, 0)
			} else {
				b.engine.ToggleSynth(1, 7, 0)
				a.engine.ToggleSynth(1, 5, 0)
			}
			a.pump(t, 2)
			b.pump(t, 2)

			if a.engine.Pending() != 0 || b.engine.Pending() != 0 {
				t.Fatalf("pending a=%d b=%d", a.engine.Pending(), b.engine.Pending())
			}
			want := 7
			if first == "b" {
				want = 5
			}
			snap, _ := h.Snapshot()
			if got := snap.Synths[1][0][0]; got != want {
				t.Fatalf("relay = %d, want %d", got, want)
			}
			for name, p := range map[string]*peer{"a": a, "b": b} {
				if got := p.engine.Store().Column(1, 0); !got.Equal(sequencer.Column{want}) {
					t.Errorf("%s converged to %v, want [%d]", name, got, want)
				}
			}
		})
	}
}
