package views

import (
	"context"
	"sync"
)

// viewOperation runs at most one background operation at a time,
// which the user can cancel.
type viewOperation struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	seq    uint64

	root *Views
}

// newViewOperation returns a new operations manager.
func newViewOperation(root *Views) *viewOperation {
	return &viewOperation{root: root}
}

// start runs op in the background. Errors returned by op are shown
// in the status bar. It reports false if an operation is already running.
func (v *viewOperation) start(op func(ctx context.Context) error) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancel != nil {
		v.root.status.InfoMessage("Operation still in progress", false)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())

	v.seq++
	v.cancel = cancel
	seq := v.seq

	go func() {
		err := op(ctx)
		v.finish(seq)

		if err != nil {
			v.root.status.ErrorMessage(err)
		}
	}()

	return true
}

// stop cancels the running operation, if any.
func (v *viewOperation) stop() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancel == nil {
		return false
	}

	v.cancel()
	v.cancel = nil
	v.root.status.InfoMessage("Operation cancelled", false)

	return true
}

// finish releases operation seq if it was not stopped already.
func (v *viewOperation) finish(seq uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.seq != seq || v.cancel == nil {
		return
	}

	v.cancel()
	v.cancel = nil
}
