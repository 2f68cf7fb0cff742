package pairing

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/atomic"
)

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing again. It reports
	// whether the timer was still armed.
	Stop() bool
}

// Scheduler arms the timers a session runs on.
type Scheduler interface {
	// AfterFunc calls f once, after d.
	AfterFunc(d time.Duration, f func()) Timer

	// Every calls f repeatedly, every d, until the timer is stopped.
	// The n-th call is due n*d after the timer was armed.
	Every(d time.Duration, f func()) Timer
}

// clockScheduler schedules callbacks on a clock.
type clockScheduler struct {
	clock clockwork.Clock
}

// SystemScheduler returns a scheduler backed by the real clock.
func SystemScheduler() Scheduler {
	return NewClockScheduler(clockwork.NewRealClock())
}

// NewClockScheduler returns a scheduler backed by clock.
func NewClockScheduler(clock clockwork.Clock) Scheduler {
	return clockScheduler{clock: clock}
}

// AfterFunc calls f once, after d.
func (s clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return s.clock.AfterFunc(d, f)
}

// Every calls f every d. Each call runs on its own goroutine, so a slow
// call does not delay the following ones.
func (s clockScheduler) Every(d time.Duration, f func()) Timer {
	t := &tickerTimer{
		ticker: s.clock.NewTicker(d),
		done:   make(chan struct{}),
	}

	go t.run(f)

	return t
}

// tickerTimer calls a function on every tick of a ticker.
type tickerTimer struct {
	ticker  clockwork.Ticker
	done    chan struct{}
	stopped atomic.Bool
}

func (t *tickerTimer) run(f func()) {
	for {
		select {
		case <-t.done:
			return

		case <-t.ticker.Chan():
			if t.stopped.Load() {
				return
			}

			go f()
		}
	}
}

// Stop disarms the timer.
func (t *tickerTimer) Stop() bool {
	if !t.stopped.CompareAndSwap(false, true) {
		return false
	}

	t.ticker.Stop()
	close(t.done)

	return true
}
