package sequencer

import (
	"sync"
	"time"
)

const minInterval = time.Millisecond

// Handle identifies a repeating timer.
type Handle int

// Clock schedules repeating callbacks.
type Clock interface {
	SetInterval(fn func(), every time.Duration) Handle
	ClearInterval(h Handle)
}

// TickerClock drives intervals from time.Ticker and hands every tick to post,
// normally the session loop's Post. A tick queued before ClearInterval is
// dropped when it reaches the loop.
type TickerClock struct {
	post func(func()) bool

	mu     sync.Mutex
	next   Handle
	active map[Handle]chan struct{}
}

// NewTickerClock returns a real-time clock that delivers ticks through post.
func NewTickerClock(post func(func()) bool) *TickerClock {
	return &TickerClock{
		post:   post,
		active: make(map[Handle]chan struct{}),
	}
}

func (c *TickerClock) SetInterval(fn func(), every time.Duration) Handle {
	every = max(every, minInterval)
	c.mu.Lock()
	c.next++
	h := c.next
	stop := make(chan struct{})
	c.active[h] = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.post(func() {
					if c.live(h) {
						fn()
					}
				})
			}
		}
	}()
	return h
}

func (c *TickerClock) ClearInterval(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stop, ok := c.active[h]; ok {
		close(stop)
		delete(c.active, h)
	}
}

func (c *TickerClock) live(h Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[h]
	return ok
}

// ManualClock is a deterministic Clock advanced by hand.
type ManualClock struct {
	now    time.Duration
	next   Handle
	timers map[Handle]*manualTimer
}

type manualTimer struct {
	every time.Duration
	due   time.Duration
	fn    func()
}

func NewManualClock() *ManualClock {
	return &ManualClock{timers: make(map[Handle]*manualTimer)}
}

// Now returns the time elapsed since the clock was created.
func (c *ManualClock) Now() time.Duration { return c.now }

// Active returns the number of live intervals.
func (c *ManualClock) Active() int { return len(c.timers) }

func (c *ManualClock) SetInterval(fn func(), every time.Duration) Handle {
	every = max(every, minInterval)
	c.next++
	c.timers[c.next] = &manualTimer{every: every, due: c.now + every, fn: fn}
	return c.next
}

func (c *ManualClock) ClearInterval(h Handle) {
	delete(c.timers, h)
}

// Advance moves time forward, firing due callbacks in time order.
func (c *ManualClock) Advance(d time.Duration) {
	target := c.now + d
	for {
		var (
			h   Handle
			tmr *manualTimer
		)
		for id, t := range c.timers {
			if t.due > target {
				continue
			}
			if tmr == nil || t.due < tmr.due || (t.due == tmr.due && id < h) {
				h, tmr = id, t
			}
		}
		if tmr == nil {
			break
		}
		c.now = tmr.due
		tmr.due += tmr.every
		tmr.fn()
	}
	c.now = target
}
