package poller

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Poller calls tick every period. Changing the period replaces the running timer; a timer that
// fired before it was replaced is recognised by its generation and ignored.
type Poller struct {
	clock clockwork.Clock
	tick  func()

	mu     sync.Mutex
	period time.Duration
	gen    uint64
	timer  clockwork.Timer
}

// New returns a disabled poller.
func New(clock clockwork.Clock, tick func()) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{clock: clock, tick: tick}
}

// SetPeriod arms the poller with d, or disables it when d <= 0. Setting the active period again
// keeps the running timer.
func (p *Poller) SetPeriod(d time.Duration) {
	if d < 0 {
		d = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if d == p.period {
		return
	}
	p.stopLocked()
	p.period = d
	if d > 0 {
		p.armLocked(p.gen)
	}
}

// Stop disables the poller.
func (p *Poller) Stop() {
	p.SetPeriod(0)
}

func (p *Poller) stopLocked() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Poller) armLocked(gen uint64) {
	p.timer = p.clock.AfterFunc(p.period, func() { p.fire(gen) })
}

func (p *Poller) fire(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.period <= 0 {
		p.mu.Unlock()
		return
	}
	p.armLocked(gen)
	p.mu.Unlock()

	p.tick()
}
