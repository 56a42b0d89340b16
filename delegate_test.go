package bearing

import (
	"sync"
	"testing"
	"time"
)

// syncUIQueue runs every scheduled task on its own dedicated goroutine, in
// submission order -- a single-consumer fake standing in for "the UI
// thread's task queue".
type syncUIQueue struct {
	ch chan func()
}

func newSyncUIQueue() *syncUIQueue {
	q := &syncUIQueue{ch: make(chan func(), 256)}
	go func() {
		for task := range q.ch {
			task()
		}
	}()
	return q
}

func (q *syncUIQueue) RunOnGui(task func()) { q.ch <- task }

func TestDelegateProxy_CancelThenNoCallback(t *testing.T) {
	var mu sync.Mutex
	var readyCalled, progressCalled bool

	queue := newSyncUIQueue()
	proxy := NewDelegateProxy(queue, 30, DelegateCallbacks{
		OnReady: func(route *Route, code ResultCode) {
			mu.Lock()
			readyCalled = true
			mu.Unlock()
		},
		OnProgress: func(progress01 float64) {
			mu.Lock()
			progressCalled = true
			mu.Unlock()
		},
	})

	proxy.Cancel()
	proxy.OnReady(&Route{ID: 1}, NoError)
	proxy.OnProgress(0.5)

	// Give the UI queue a chance to run anything that might have been
	// (incorrectly) scheduled.
	barrier := make(chan struct{})
	queue.RunOnGui(func() { close(barrier) })
	select {
	case <-barrier:
	case <-time.After(time.Second):
		t.Fatal("UI queue never drained")
	}

	mu.Lock()
	defer mu.Unlock()
	if readyCalled {
		t.Error("OnReady fired after Cancel")
	}
	if progressCalled {
		t.Error("OnProgress fired after Cancel")
	}
}

func TestDelegateProxy_CancelIsIdempotent(t *testing.T) {
	queue := newSyncUIQueue()
	proxy := NewDelegateProxy(queue, 30, DelegateCallbacks{})
	proxy.Cancel()
	proxy.Cancel() // must not panic or deadlock
	if !proxy.Delegate().Cancelled() {
		t.Error("engine-delegate not marked cancelled")
	}
}

func TestDelegateProxy_ProgressScheduledOnQueue(t *testing.T) {
	queue := newSyncUIQueue()
	got := make(chan float64, 1)
	proxy := NewDelegateProxy(queue, 30, DelegateCallbacks{
		OnProgress: func(progress01 float64) { got <- progress01 },
	})

	proxy.OnProgress(0.25)

	select {
	case p := <-got:
		if p != 0.25 {
			t.Errorf("progress = %v, want 0.25", p)
		}
	case <-time.After(time.Second):
		t.Fatal("progress callback never delivered")
	}
}

func TestDelegateProxy_NilCallbacksAreNoops(t *testing.T) {
	queue := newSyncUIQueue()
	proxy := NewDelegateProxy(queue, 30, DelegateCallbacks{})
	// None of these should panic even though no callback was supplied.
	proxy.OnReady(&Route{}, NoError)
	proxy.OnNeedMoreMaps(1, []string{"US_California"})
	proxy.OnRemoveRoute(RouteNotFound)
	proxy.OnProgress(1.0)
	if !proxy.OnPointCheck(GeoPoint{}) {
		t.Error("OnPointCheck with no callback should default to true")
	}
}
