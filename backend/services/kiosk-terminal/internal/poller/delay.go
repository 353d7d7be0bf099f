package poller

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Delay is a single-slot one-shot timer. Scheduling replaces whatever was pending.
type Delay struct {
	clock clockwork.Clock

	mu    sync.Mutex
	gen   uint64
	timer clockwork.Timer
}

// NewDelay returns an idle delay.
func NewDelay(clock clockwork.Clock) *Delay {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Delay{clock: clock}
}

// Schedule runs fn once after d unless cancelled or replaced first.
func (d *Delay) Schedule(after time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	gen := d.gen
	d.timer = d.clock.AfterFunc(after, func() {
		d.mu.Lock()
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending callback, if any.
func (d *Delay) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

func (d *Delay) cancelLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
