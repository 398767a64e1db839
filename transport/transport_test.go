package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"jamsesh/protocol"
)

func testServer(t *testing.T, handler func(*websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(websocket.Server{
		Handshake: func(cfg *websocket.Config, _ *http.Request) error {
			for _, p := range cfg.Protocol {
				if p == Protocol {
					cfg.Protocol = []string{Protocol}
					return nil
				}
			}
			return websocket.ErrBadWebSocketProtocol
		},
		Handler: handler,
	})
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialSendReceive(t *testing.T) {
	received := make(chan string, 1)
	url := testServer(t, func(ws *websocket.Conn) {
		var frame string
		if err := websocket.Message.Receive(ws, &frame); err != nil {
			return
		}
		received <- frame
		websocket.Message.Send(ws, `{"nonsense":true}`)
		websocket.Message.Send(ws, `{"client_id":2,"update":{"Connect":{"username":"bob"}}}`)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr, err := Dial(ctx, url, "http://localhost/", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer tr.Close()

	msgs := make(chan protocol.Message, 4)
	closed := make(chan error, 1)
	tr.OnClose(func(err error) { closed <- err })
	tr.OnMessage(func(m protocol.Message) { msgs <- m })

	if err := tr.Send(protocol.Connect{Username: "ada"}); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-received:
		if got != `{"Connect":{"username":"ada"}}` {
			t.Fatalf("server got %s", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server received nothing")
	}

	select {
	case m := <-msgs:
		r, ok := m.(protocol.Relayed)
		if !ok || r.ClientID != 2 {
			t.Fatalf("got %#v", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message delivered")
	}

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("close not reported")
	}
	if err := tr.Send(protocol.Disconnect{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("send after close err = %v", err)
	}
}

func TestDialUnavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := Dial(ctx, "ws://127.0.0.1:1/", "http://localhost/", nil)
	if !errors.Is(err, ErrTransportUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestPipe(t *testing.T) {
	var sent []protocol.Update
	p := NewPipe(func(u protocol.Update) error {
		sent = append(sent, u)
		return nil
	})
	var got []protocol.Message
	p.OnMessage(func(m protocol.Message) { got = append(got, m) })
	var closeErr error
	closedCalls := 0
	p.OnClose(func(err error) { closeErr, closedCalls = err, closedCalls+1 })

	p.Send(protocol.Connect{Username: "x"})
	if err := p.DeliverFrame([]byte(`{"client_id":1,"update":"Disconnect"}`)); err != nil {
		t.Fatal(err)
	}
	if err := p.DeliverFrame([]byte(`junk`)); !errors.Is(err, protocol.ErrMalformedMessage) {
		t.Fatalf("err = %v", err)
	}
	if len(sent) != 1 || len(got) != 1 {
		t.Fatalf("sent=%v got=%v", sent, got)
	}

	boom := errors.New("boom")
	p.CloseWithError(boom)
	p.Close()
	if closedCalls != 1 || closeErr != boom {
		t.Fatalf("close handler calls=%d err=%v", closedCalls, closeErr)
	}
	if p.Deliver(protocol.Relayed{}) {
		t.Fatal("deliver after close")
	}
	if err := p.Send(protocol.Disconnect{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v", err)
	}
}
