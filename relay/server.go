package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/websocket"
	"golang.org/x/sync/errgroup"

	"jamsesh/debug"
	"jamsesh/protocol"
	"jamsesh/transport"
)

// Handler upgrades requests offering the giogadi subprotocol and attaches
// them to the hub. Other requests are rejected during the handshake.
func (h *Hub) Handler() http.Handler {
	return websocket.Server{
		Handshake: func(cfg *websocket.Config, _ *http.Request) error {
			for _, p := range cfg.Protocol {
				if p == transport.Protocol {
					cfg.Protocol = []string{transport.Protocol}
					return nil
				}
			}
			return websocket.ErrBadWebSocketProtocol
		},
		Handler: h.serve,
	}
}

func (h *Hub) serve(ws *websocket.Conn) {
	defer ws.Close()
	c, err := h.Join()
	if err != nil {
		return
	}
	log := h.log.With("client_id", c.ID, "remote", ws.Request().RemoteAddr)

	written := make(chan struct{})
	go func() {
		defer close(written)
		for frame := range c.Frames() {
			if err := websocket.Message.Send(ws, string(frame)); err != nil {
				log.Warn("write failed", "err", err)
				ws.Close()
				for range c.Frames() {
				}
				return
			}
		}
		ws.Close()
	}()

	for {
		var frame string
		if err := websocket.Message.Receive(ws, &frame); err != nil {
			log.Debug("read ended", "err", err)
			break
		}
		u, err := protocol.DecodeUpdate([]byte(frame))
		if err != nil {
			log.Warn("dropping frame", "err", err)
			continue
		}
		if !c.Submit(u) {
			break
		}
	}
	c.Leave()
	<-written
}

// Server runs a Hub behind an HTTP listener.
type Server struct {
	Addr string
	Hub  *Hub
	Log  *slog.Logger

	// ready receives the bound address; tests use it with Addr ":0".
	ready chan<- net.Addr
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	log := s.Log
	if log == nil {
		log = debug.Discard()
	}
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("relay: listen %s: %w", s.Addr, err)
	}
	if s.ready != nil {
		s.ready <- ln.Addr()
	}
	srv := &http.Server{Handler: s.Hub.Handler(), ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Hub.Run(gctx) })
	g.Go(func() error {
		log.Info("relay listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("relay: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
