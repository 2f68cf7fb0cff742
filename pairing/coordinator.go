// Package pairing drives a remote adapter through a pairing attempt:
// it switches the adapter to discovery, polls for a newly bonded device
// until a timeout, and always restores the paired-devices-only scan mode.
package pairing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ps2ble/bondmgr/api/companion"
)

// The default session timings.
const (
	DefaultInterval       = 3 * time.Second
	DefaultTimeout        = 30 * time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// ErrClosed is returned by Begin after the coordinator is closed.
var ErrClosed = errors.New("pairing coordinator is closed")

// Options describes the coordinator options.
type Options struct {
	// Interval is the poll cadence.
	Interval time.Duration

	// Timeout bounds the duration of a session.
	Timeout time.Duration

	// RequestTimeout bounds each poll and scan mode request.
	RequestTimeout time.Duration

	// Scheduler arms the session timers. Defaults to SystemScheduler.
	Scheduler Scheduler

	// OnProgress is called after every tick which did not find a device.
	OnProgress func(Snapshot)

	Logger zerolog.Logger
}

// Coordinator owns at most one pairing session at a time.
type Coordinator struct {
	interval       time.Duration
	timeout        time.Duration
	requestTimeout time.Duration
	scheduler      Scheduler
	onProgress     func(Snapshot)
	log            zerolog.Logger

	poller Poller
	writer *modeWriter

	mu      sync.Mutex
	current *session
	closed  bool
}

// New returns a new coordinator. Close must be called to release it.
func New(adapter AdapterControl, poller Poller, opts Options) *Coordinator {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Scheduler == nil {
		opts.Scheduler = SystemScheduler()
	}

	log := opts.Logger.With().Str("component", "pairing").Logger()

	return &Coordinator{
		interval:       opts.Interval,
		timeout:        opts.Timeout,
		requestTimeout: opts.RequestTimeout,
		scheduler:      opts.Scheduler,
		onProgress:     opts.OnProgress,
		log:            log,
		poller:         poller,
		writer:         newModeWriter(adapter, opts.RequestTimeout, log),
	}
}

// Begin starts a new session and returns immediately. A session which is
// still scanning is retired first, without delivering its outcome.
// onOutcome is called once, when the new session ends.
func (c *Coordinator) Begin(onOutcome OutcomeFunc) (SessionID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}

	if prev := c.current; prev != nil && prev.state == Scanning {
		c.end(prev, Cancelled)
		prev.elapsed.Store(0)

		c.log.Info().Str("session", string(prev.id)).Msg("session superseded")
	}

	s := newSession(onOutcome)
	c.current = s

	c.writer.enqueue(s.id, companion.ScanNewDevicesOnly)
	s.poll = c.scheduler.Every(c.interval, func() { c.tick(s) })
	s.timeout = c.scheduler.AfterFunc(c.timeout, func() { c.expire(s) })

	c.log.Info().
		Str("session", string(s.id)).
		Dur("interval", c.interval).
		Dur("timeout", c.timeout).
		Msg("session started")

	return s.id, nil
}

// Cancel ends a scanning session and delivers a Cancelled outcome.
// It reports whether a session was cancelled.
func (c *Coordinator) Cancel() bool {
	return c.cancel("")
}

// CancelSession is like Cancel, but only ends the session with the given ID.
func (c *Coordinator) CancelSession(id SessionID) bool {
	if id == "" {
		return false
	}

	return c.cancel(id)
}

// cancel ends the current session if it is scanning and, when id is set, matches id.
func (c *Coordinator) cancel(id SessionID) bool {
	c.mu.Lock()

	s := c.current
	if s == nil || s.state != Scanning || (id != "" && s.id != id) {
		c.mu.Unlock()
		return false
	}

	c.end(s, Cancelled)
	s.elapsed.Store(0)
	outcome := s.outcome()
	c.mu.Unlock()

	c.log.Info().Str("session", string(s.id)).Msg("session cancelled")
	s.notify(outcome)

	return true
}

// Snapshot returns the state of the current or last session.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return Snapshot{State: Idle}
	}

	return c.snapshot(c.current)
}

// Flush waits until every scan mode change queued so far has been attempted.
func (c *Coordinator) Flush(ctx context.Context) error {
	return c.writer.flush(ctx)
}

// Close cancels any scanning session, waits for the pending scan mode
// changes to be attempted and rejects further sessions.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.writer.wait(ctx)
	}
	c.closed = true
	c.mu.Unlock()

	c.Cancel()

	return c.writer.close(ctx)
}

// tick is the poll timer callback of s.
func (c *Coordinator) tick(s *session) {
	c.mu.Lock()
	if !c.active(s) || s.ticks >= c.dueTicks() {
		c.mu.Unlock()
		return
	}

	s.ticks++

	// The previous poll is still running, only move the progress along.
	if s.polling {
		s.advance(c.interval, c.timeout)
		snap := c.snapshot(s)
		c.mu.Unlock()

		c.log.Debug().Str("session", string(s.id)).Int("tick", snap.Ticks).Msg("poll still in flight")
		c.progress(snap)

		return
	}

	s.polling = true
	sctx := s.ctx
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(sctx, c.requestTimeout)
	device, found := c.poller.PollOnce(ctx)
	cancel()

	c.mu.Lock()
	s.polling = false

	if !c.active(s) {
		c.mu.Unlock()
		return
	}

	if !found {
		s.advance(c.interval, c.timeout)
		if c.expired(s) {
			c.timedOut(s)
			return
		}

		snap := c.snapshot(s)
		c.mu.Unlock()

		c.progress(snap)
		return
	}

	s.device = device
	c.end(s, Found)
	outcome := s.outcome()
	ticks := s.ticks
	c.mu.Unlock()

	c.log.Info().
		Str("session", string(s.id)).
		Str("address", device.Address).
		Int("ticks", ticks).
		Msg("device bonded")
	s.notify(outcome)
}

// expire is the timeout timer callback of s. While ticks due within the
// timeout are outstanding, the last of them delivers the timeout instead.
func (c *Coordinator) expire(s *session) {
	c.mu.Lock()
	if !c.active(s) {
		c.mu.Unlock()
		return
	}

	s.timeoutFired = true
	if !c.expired(s) {
		ticks := s.ticks
		c.mu.Unlock()

		c.log.Debug().Str("session", string(s.id)).Int("ticks", ticks).Msg("timeout waiting for due tick")
		return
	}

	c.timedOut(s)
}

// expired reports whether the timeout of s fired and every tick due
// within the timeout has completed. It must be called with the lock held.
func (c *Coordinator) expired(s *session) bool {
	return s.timeoutFired && !s.polling && s.ticks >= c.dueTicks()
}

// timedOut ends s as TimedOut and delivers the outcome.
// It must be called with the lock held, and releases it.
func (c *Coordinator) timedOut(s *session) {
	c.end(s, TimedOut)
	outcome := s.outcome()
	ticks := s.ticks
	c.mu.Unlock()

	c.log.Info().Str("session", string(s.id)).Int("ticks", ticks).Msg("session timed out")
	s.notify(outcome)
}

// dueTicks returns the number of ticks which fall within the timeout.
func (c *Coordinator) dueTicks() int {
	return int(c.timeout / c.interval)
}

// end moves s to a terminal state, releases its timers and
// queues the paired-devices-only scan mode. It must be called
// with the lock held.
func (c *Coordinator) end(s *session, state State) {
	s.state = state
	s.dispose()

	c.writer.enqueue(s.id, companion.ScanPairedDevicesOnly)
}

// active reports whether s is the current session and is scanning.
// It must be called with the lock held.
func (c *Coordinator) active(s *session) bool {
	return c.current == s && s.state == Scanning
}

func (c *Coordinator) snapshot(s *session) Snapshot {
	elapsed := s.elapsed.Load()

	snap := Snapshot{
		ID:       s.id,
		State:    s.state,
		Elapsed:  elapsed,
		Progress: float64(elapsed) / float64(c.timeout),
		Ticks:    s.ticks,
	}
	if snap.Progress > 1 {
		snap.Progress = 1
	}
	if s.state == Found {
		snap.Device = s.device
	}

	return snap
}

func (c *Coordinator) progress(snap Snapshot) {
	if c.onProgress != nil {
		c.onProgress(snap)
	}
}
