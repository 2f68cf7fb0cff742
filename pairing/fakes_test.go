package pairing

import (
	"context"
	"sync"
	"time"

	"github.com/ps2ble/bondmgr/api/companion"
)

// fakeScheduler runs timers on a virtual clock. Due timers fire
// synchronously from Advance, earliest first, then in creation order,
// or in reverse creation order if lastFirst is set.
type fakeScheduler struct {
	lastFirst bool

	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	s       *fakeScheduler
	seq     int
	due     time.Duration
	every   time.Duration
	f       func()
	stopped bool
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return s.add(d, 0, f)
}

func (s *fakeScheduler) Every(d time.Duration, f func()) Timer {
	return s.add(d, d, f)
}

func (s *fakeScheduler) add(d, every time.Duration, f func()) *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &fakeTimer{s: s, seq: s.seq, due: s.now + d, every: every, f: f}
	s.timers = append(s.timers, t)

	return t
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if t.stopped {
		return false
	}
	t.stopped = true

	return true
}

// Advance moves the clock forward by d, firing every timer that becomes due.
func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()

		var next *fakeTimer
		for _, t := range s.timers {
			if t.stopped || t.due > target {
				continue
			}
			if next == nil || t.due < next.due || (t.due == next.due && (t.seq < next.seq) != s.lastFirst) {
				next = t
			}
		}

		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}

		s.now = next.due
		if next.every > 0 {
			next.due += next.every
		} else {
			next.stopped = true
		}
		f := next.f
		s.mu.Unlock()

		f()
	}
}

func (s *fakeScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.now
}

// armed returns the number of timers which can still fire.
func (s *fakeScheduler) armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}

	return n
}

type fakePoller struct {
	mu    sync.Mutex
	calls int

	pollFn func(ctx context.Context, call int) (companion.Device, bool)
}

func (p *fakePoller) PollOnce(ctx context.Context) (companion.Device, bool) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()

	if p.pollFn == nil {
		return companion.Device{}, false
	}

	return p.pollFn(ctx, call)
}

func (p *fakePoller) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls
}

type fakeAdapter struct {
	mu    sync.Mutex
	modes []companion.ScanMode

	setFn func(ctx context.Context, mode companion.ScanMode) error
}

func (a *fakeAdapter) SetScanMode(ctx context.Context, mode companion.ScanMode) error {
	a.mu.Lock()
	a.modes = append(a.modes, mode)
	a.mu.Unlock()

	if a.setFn == nil {
		return nil
	}

	return a.setFn(ctx, mode)
}

func (a *fakeAdapter) Modes() []companion.ScanMode {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]companion.ScanMode(nil), a.modes...)
}

// outcomes records the outcomes delivered to a session.
type outcomes struct {
	mu   sync.Mutex
	list []Outcome
}

func (o *outcomes) record(out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.list = append(o.list, out)
}

func (o *outcomes) All() []Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]Outcome(nil), o.list...)
}
