package transport

import (
	"sync"

	"jamsesh/protocol"
)

// Pipe is an in-memory Transport. Sent updates go to the peer function and
// inbound frames are injected with Deliver.
type Pipe struct {
	peer func(protocol.Update) error

	mu        sync.Mutex
	onMessage func(protocol.Message)
	onClose   func(error)
	closed    bool
}

func NewPipe(peer func(protocol.Update) error) *Pipe {
	return &Pipe{peer: peer}
}

func (p *Pipe) Send(u protocol.Update) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if p.peer == nil {
		return nil
	}
	return p.peer(u)
}

func (p *Pipe) OnMessage(fn func(protocol.Message)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onMessage = fn
}

func (p *Pipe) OnClose(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClose = fn
}

// Deliver hands m to the message handler. It reports false once closed.
func (p *Pipe) Deliver(m protocol.Message) bool {
	p.mu.Lock()
	fn, closed := p.onMessage, p.closed
	p.mu.Unlock()
	if closed {
		return false
	}
	if fn != nil {
		fn(m)
	}
	return true
}

// DeliverFrame decodes and delivers a raw frame.
func (p *Pipe) DeliverFrame(frame []byte) error {
	m, err := protocol.DecodeMessage(frame)
	if err != nil {
		return err
	}
	p.Deliver(m)
	return nil
}

// Close marks the pipe closed and fires the close handler with err.
func (p *Pipe) Close() error { return p.CloseWithError(nil) }

func (p *Pipe) CloseWithError(err error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	fn := p.onClose
	p.mu.Unlock()
	if fn != nil {
		fn(err)
	}
	return nil
}
