// dispatcher.go - main-thread dispatcher (C3)

package sniffer

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// maxPendingDispatch bounds the number of queued requests so a runaway
// producer (a script spinning in a loop) cannot grow the dispatcher queue
// without limit.
const maxPendingDispatch = 4096

// fence is a monotonically increasing counter. RequestAsync hands back the
// fence value its callback was sequenced at; Wait blocks until Tick has
// processed at least that many items. RequestSync returns no fence: it
// blocks on its own until its callback has run.
type fence uint64

// Dispatcher runs arbitrary callbacks on the host's main thread, in the
// order they were submitted, regardless of which CPU-core thread submitted
// them. CPU-core threads call RequestAsync/RequestSync; the host's main
// loop calls Tick once per iteration.
//
// Only cooperative suspension is supported: a core thread blocks in
// Wait(fence) until Tick processes its item, it never preempts the main
// thread.
type Dispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []dispatchItem
	done    fence
	sem     *semaphore.Weighted
}

type dispatchItem struct {
	fn       func()
	mine     fence
	wg       *sync.WaitGroup // non-nil for a sync request
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{sem: semaphore.NewWeighted(maxPendingDispatch)}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// RequestAsync enqueues fn to run on the main thread and returns the fence
// value it will be processed at, without waiting for it to run. Pass the
// returned fence to Wait to block for completion later.
func (d *Dispatcher) RequestAsync(ctx context.Context, fn func()) (fence, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	d.mu.Lock()
	d.pending = append(d.pending, dispatchItem{fn: fn})
	target := d.done + fence(len(d.pending))
	d.mu.Unlock()
	d.cond.Broadcast()
	return target, nil
}

// RequestSync enqueues fn and blocks the calling goroutine until the main
// thread has run it. Calling RequestSync from the main thread itself
// deadlocks; that is a programmer error, not a condition this package
// guards against at runtime.
func (d *Dispatcher) RequestSync(ctx context.Context, fn func()) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	var wg sync.WaitGroup
	wg.Add(1)
	d.mu.Lock()
	d.pending = append(d.pending, dispatchItem{fn: fn, wg: &wg})
	d.mu.Unlock()
	d.cond.Broadcast()
	wg.Wait()
	return nil
}

// Tick runs every currently queued item, in submission order, and must only
// ever be called from the host's main thread. It is the only place
// RequestAsync/RequestSync callbacks actually execute.
func (d *Dispatcher) Tick() int {
	d.mu.Lock()
	batch := d.pending
	d.pending = nil
	d.mu.Unlock()

	for i := range batch {
		batch[i].fn()
		d.sem.Release(1)
		if batch[i].wg != nil {
			batch[i].wg.Done()
		}
	}

	d.mu.Lock()
	d.done += fence(len(batch))
	d.mu.Unlock()
	d.cond.Broadcast()
	return len(batch)
}

// Wait blocks until Tick has processed at least upTo items since the
// dispatcher was created.
func (d *Dispatcher) Wait(upTo fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.done < upTo {
		d.cond.Wait()
	}
}

// drainPending reports how many items are currently queued; a test and
// diagnostic hook, not part of the dispatcher's steady-state API.
func (d *Dispatcher) drainPending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
