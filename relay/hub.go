// Package relay is the jam server: one authoritative room, a single event
// loop that orders every client update, and a WebSocket front end.
package relay

import (
	"context"
	"errors"
	"log/slog"

	"jamsesh/debug"
	"jamsesh/jam"
	"jamsesh/protocol"
	"jamsesh/sequencer"
)

// ErrHubStopped is returned by Join once the hub loop has exited.
var ErrHubStopped = errors.New("hub stopped")

const defaultSendBuffer = 256

// Client is one connection attached to a Hub.
type Client struct {
	ID int

	hub    *Hub
	out    chan []byte
	synced bool
	gone   bool
}

// Frames yields encoded frames for the client. It is closed when the client
// leaves or the hub stops.
func (c *Client) Frames() <-chan []byte { return c.out }

// Submit queues an update from this client.
func (c *Client) Submit(u protocol.Update) bool {
	return c.hub.loop.Post(func() { c.hub.handle(c, u) })
}

// Leave is Submit(Disconnect); calling it twice is harmless.
func (c *Client) Leave() bool {
	return c.Submit(protocol.Disconnect{})
}

// Hub serialises client updates against a Room.
type Hub struct {
	room *Room
	log  *slog.Logger
	loop *jam.Loop

	clients    []*Client
	nextID     int
	sendBuffer int
}

type HubOption func(*Hub)

// WithSendBuffer sets how many frames may queue for a client before it is
// dropped as too slow.
func WithSendBuffer(n int) HubOption {
	return func(h *Hub) { h.sendBuffer = n }
}

func NewHub(room *Room, log *slog.Logger, opts ...HubOption) *Hub {
	if log == nil {
		log = debug.Discard()
	}
	h := &Hub{
		room:       room,
		log:        debug.Category(log, "hub"),
		loop:       jam.NewLoop(1024),
		sendBuffer: defaultSendBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes updates until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	err := h.loop.Run(ctx)
	for _, c := range h.clients {
		h.detach(c)
	}
	h.clients = nil
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Join registers a new connection and assigns it the next id. Until it sends
// Connect the client receives nothing, and anything but Connect or Disconnect
// from it is ignored.
func (h *Hub) Join() (*Client, error) {
	var c *Client
	ok := h.loop.Do(func() {
		c = &Client{ID: h.nextID, hub: h, out: make(chan []byte, h.sendBuffer)}
		h.nextID++
		h.clients = append(h.clients, c)
		h.log.Info("client attached", "client_id", c.ID)
	})
	if !ok {
		return nil, ErrHubStopped
	}
	return c, nil
}

// Clients returns the number of attached connections.
func (h *Hub) Clients() int {
	n := 0
	h.loop.Do(func() { n = len(h.clients) })
	return n
}

func (h *Hub) handle(c *Client, u protocol.Update) {
	if c.gone {
		return
	}
	kind := u.Kind()
	if !c.synced && kind != protocol.KindConnect && kind != protocol.KindDisconnect {
		h.log.Debug("ignoring update from unsynced client", "client_id", c.ID, "kind", kind)
		return
	}
	if err := h.room.Apply(c.ID, u); err != nil {
		h.log.Warn("dropping invalid update", "client_id", c.ID, "kind", kind, "err", err)
		return
	}

	switch kind {
	case protocol.KindDisconnect:
		h.remove(c)
		h.log.Info("client left", "client_id", c.ID)
	case protocol.KindConnect:
		frame, err := protocol.EncodeMessage(h.room.Sync(c.ID))
		if err != nil {
			h.log.Error("encode sync", "err", err)
			return
		}
		c.synced = true
		h.deliver(c, frame)
		h.log.Info("client synced", "client_id", c.ID, "roster", len(h.room.roster))
	}

	frame, err := protocol.EncodeMessage(protocol.Relayed{ClientID: c.ID, Update: u})
	if err != nil {
		h.log.Error("encode relayed", "err", err)
		return
	}
	h.broadcast(frame)
}

// broadcast iterates a copy since deliver may remove clients.
func (h *Hub) broadcast(frame []byte) {
	for _, other := range append([]*Client(nil), h.clients...) {
		if other.synced {
			h.deliver(other, frame)
		}
	}
}

// deliver never blocks the loop; a client whose buffer is full is dropped.
func (h *Hub) deliver(c *Client, frame []byte) {
	if c.gone {
		return
	}
	select {
	case c.out <- frame:
	default:
		h.log.Warn("client too slow, dropping", "client_id", c.ID)
		h.remove(c)
		if err := h.room.Apply(c.ID, protocol.Disconnect{}); err == nil {
			go h.loop.Post(func() { h.relayDisconnect(c.ID) })
		}
	}
}

func (h *Hub) relayDisconnect(id int) {
	frame, err := protocol.EncodeMessage(protocol.Relayed{ClientID: id, Update: protocol.Disconnect{}})
	if err != nil {
		return
	}
	h.broadcast(frame)
}

func (h *Hub) remove(c *Client) {
	for i, other := range h.clients {
		if other == c {
			last := len(h.clients) - 1
			h.clients[i] = h.clients[last]
			h.clients = h.clients[:last]
			break
		}
	}
	h.detach(c)
}

func (h *Hub) detach(c *Client) {
	if c.gone {
		return
	}
	c.gone = true
	close(c.out)
}

// Snapshot copies the room state.
func (h *Hub) Snapshot() (sequencer.Snapshot, bool) {
	var snap sequencer.Snapshot
	ok := h.loop.Do(func() { snap = h.room.store.Snapshot() })
	return snap, ok
}
