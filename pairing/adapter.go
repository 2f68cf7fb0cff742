package pairing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ps2ble/bondmgr/api/companion"
)

// AdapterControl changes the scan mode of the remote adapter.
type AdapterControl interface {
	SetScanMode(ctx context.Context, mode companion.ScanMode) error
}

// modeRequest is a queued scan mode change, or a barrier if done is set.
type modeRequest struct {
	mode    companion.ScanMode
	session SessionID
	done    chan struct{}
}

// modeWriter applies scan mode changes one at a time, in the order they
// were queued. Enqueueing never blocks.
type modeWriter struct {
	adapter AdapterControl
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.Mutex
	queue  []modeRequest
	closed bool

	wake    chan struct{}
	stopped chan struct{}
}

func newModeWriter(adapter AdapterControl, timeout time.Duration, log zerolog.Logger) *modeWriter {
	w := &modeWriter{
		adapter: adapter,
		timeout: timeout,
		log:     log,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}

	go w.run()

	return w
}

// enqueue queues a scan mode change for the session.
func (w *modeWriter) enqueue(session SessionID, mode companion.ScanMode) bool {
	return w.push(modeRequest{mode: mode, session: session})
}

// flush waits until every request queued before it has been attempted.
func (w *modeWriter) flush(ctx context.Context) error {
	done := make(chan struct{})
	if !w.push(modeRequest{done: done}) {
		return w.wait(ctx)
	}

	select {
	case <-done:
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting requests and waits for the queue to drain.
func (w *modeWriter) close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.signal()

	return w.wait(ctx)
}

func (w *modeWriter) wait(ctx context.Context) error {
	select {
	case <-w.stopped:
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *modeWriter) push(req modeRequest) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.queue = append(w.queue, req)
	w.mu.Unlock()

	w.signal()

	return true
}

func (w *modeWriter) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *modeWriter) run() {
	defer close(w.stopped)

	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			closed := w.closed
			w.mu.Unlock()

			if closed {
				return
			}

			<-w.wake
			continue
		}

		req := w.queue[0]
		w.queue[0] = modeRequest{}
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.apply(req)
	}
}

func (w *modeWriter) apply(req modeRequest) {
	if req.done != nil {
		close(req.done)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	err := w.adapter.SetScanMode(ctx, req.mode)
	if err != nil {
		w.log.Warn().
			Err(err).
			Str("session", string(req.session)).
			Stringer("mode", req.mode).
			Msg("scan mode change failed")

		return
	}

	w.log.Debug().
		Str("session", string(req.session)).
		Stringer("mode", req.mode).
		Msg("scan mode changed")
}
