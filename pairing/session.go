package pairing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/ps2ble/bondmgr/api/companion"
)

// session holds one discovery attempt. Apart from elapsed, its fields
// are guarded by the coordinator's lock.
type session struct {
	id        SessionID
	state     State
	device    companion.Device
	ticks     int
	polling   bool
	onOutcome OutcomeFunc

	// timeoutFired is set once the timeout timer has fired.
	timeoutFired bool

	elapsed atomic.Duration

	ctx    context.Context
	cancel context.CancelFunc

	poll    Timer
	timeout Timer

	once sync.Once
}

func newSession(onOutcome OutcomeFunc) *session {
	ctx, cancel := context.WithCancel(context.Background())

	return &session{
		id:        SessionID(uuid.NewString()),
		state:     Scanning,
		onOutcome: onOutcome,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// advance adds step to the elapsed time, up to limit.
func (s *session) advance(step, limit time.Duration) {
	elapsed := s.elapsed.Load() + step
	if elapsed > limit {
		elapsed = limit
	}

	s.elapsed.Store(elapsed)
}

// dispose releases the timers and the context of the session.
// Only the first call has any effect.
func (s *session) dispose() {
	s.once.Do(func() {
		if s.poll != nil {
			s.poll.Stop()
		}
		if s.timeout != nil {
			s.timeout.Stop()
		}

		s.cancel()
	})
}

func (s *session) outcome() Outcome {
	o := Outcome{Session: s.id, State: s.state}
	if s.state == Found {
		o.Device = s.device
	}

	return o
}

func (s *session) notify(o Outcome) {
	if s.onOutcome != nil {
		s.onOutcome(o)
	}
}
