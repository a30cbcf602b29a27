// dispatcher_test.go

package sniffer

import (
	"context"
	"testing"
	"time"
)

func TestDispatcherOrdersAsyncBySubmission(t *testing.T) {
	d := NewDispatcher()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		if _, err := d.RequestAsync(context.Background(), func() { order = append(order, i) }); err != nil {
			t.Fatalf("RequestAsync: %v", err)
		}
	}
	d.Tick()
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want strictly increasing", order)
		}
	}
}

func TestDispatcherSyncBlocksUntilTick(t *testing.T) {
	d := NewDispatcher()
	ran := make(chan struct{})
	go func() {
		_ = d.RequestSync(context.Background(), func() { close(ran) })
	}()

	select {
	case <-ran:
		t.Fatalf("sync callback ran before Tick")
	case <-time.After(20 * time.Millisecond):
	}

	d.Tick()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatalf("sync callback never ran after Tick")
	}
}

func TestDispatcherWaitOnFence(t *testing.T) {
	d := NewDispatcher()
	f, err := d.RequestAsync(context.Background(), func() {})
	if err != nil {
		t.Fatalf("RequestAsync: %v", err)
	}

	done := make(chan struct{})
	go func() {
		d.Wait(f)
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("Wait returned before Tick processed the fence")
	case <-time.After(20 * time.Millisecond):
	}

	d.Tick()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Wait never returned after Tick")
	}
}

func TestDispatcherDrainPending(t *testing.T) {
	d := NewDispatcher()
	for i := 0; i < 3; i++ {
		_, _ = d.RequestAsync(context.Background(), func() {})
	}
	if d.drainPending() != 3 {
		t.Fatalf("drainPending = %d, want 3", d.drainPending())
	}
	d.Tick()
	if d.drainPending() != 0 {
		t.Fatalf("drainPending after Tick = %d, want 0", d.drainPending())
	}
}
