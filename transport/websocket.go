package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/net/websocket"

	"jamsesh/debug"
	"jamsesh/protocol"
)

// WebSocket is the client side of a relay connection.
type WebSocket struct {
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	onMessage func(protocol.Message)
	onClose   func(error)
	closed    bool
	start     sync.Once
	done      chan struct{}
}

// Dial connects to a relay at url ("ws://host:2795"). Failures wrap
// ErrTransportUnavailable.
func Dial(ctx context.Context, url, origin string, log *slog.Logger) (*WebSocket, error) {
	if log == nil {
		log = debug.Discard()
	}
	cfg, err := websocket.NewConfig(url, origin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	cfg.Protocol = []string{Protocol}
	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	return &WebSocket{
		conn: conn,
		log:  debug.Category(log, "transport"),
		done: make(chan struct{}),
	}, nil
}

// Send writes one update as a text frame.
func (w *WebSocket) Send(u protocol.Update) error {
	data, err := protocol.EncodeUpdate(u)
	if err != nil {
		return err
	}
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrClosed
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := websocket.Message.Send(w.conn, string(data)); err != nil {
		return fmt.Errorf("send %s: %w", u.Kind(), err)
	}
	return nil
}

// OnMessage sets the frame handler and starts reading. Frames that fail to
// decode are logged and dropped.
func (w *WebSocket) OnMessage(fn func(protocol.Message)) {
	w.mu.Lock()
	w.onMessage = fn
	w.mu.Unlock()
	w.start.Do(func() { go w.readLoop() })
}

// OnClose sets a handler called once when the connection ends.
func (w *WebSocket) OnClose(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onClose = fn
}

func (w *WebSocket) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	return w.conn.Close()
}

// Done is closed when the read loop exits.
func (w *WebSocket) Done() <-chan struct{} { return w.done }

func (w *WebSocket) readLoop() {
	defer close(w.done)
	for {
		var frame string
		if err := websocket.Message.Receive(w.conn, &frame); err != nil {
			w.finish(err)
			return
		}
		debug.Log("net", "recv %d bytes", len(frame))
		m, err := protocol.DecodeMessage([]byte(frame))
		if err != nil {
			w.log.Warn("dropping frame", "err", err, "len", len(frame))
			continue
		}
		w.mu.Lock()
		fn := w.onMessage
		w.mu.Unlock()
		if fn != nil {
			fn(m)
		}
	}
}

func (w *WebSocket) finish(err error) {
	w.mu.Lock()
	deliberate := w.closed
	w.closed = true
	fn := w.onClose
	w.mu.Unlock()

	if errors.Is(err, io.EOF) || deliberate {
		err = nil
	}
	if err != nil {
		w.log.Warn("connection lost", "err", err)
	} else {
		w.log.Info("connection closed")
	}
	w.conn.Close()
	if fn != nil {
		fn(err)
	}
}
