package bearing

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeEngine implements Engine with an injectable compute function.
type fakeEngine struct {
	name    string
	compute func(ctx context.Context, checkpoints Checkpoints, direction Direction, adjustToPrevious bool, delegate *EngineDelegate, route *Route) (ResultCode, error)

	mu          sync.Mutex
	clearCalled int
}

func (e *fakeEngine) CalculateRoute(ctx context.Context, checkpoints Checkpoints, direction Direction, adjustToPrevious bool, delegate *EngineDelegate, route *Route) (ResultCode, error) {
	return e.compute(ctx, checkpoints, direction, adjustToPrevious, delegate, route)
}

func (e *fakeEngine) ClearState() {
	e.mu.Lock()
	e.clearCalled++
	e.mu.Unlock()
}

func (e *fakeEngine) GetName() string { return e.name }

// immediateEngine returns code right away, setting distance on NoError.
func immediateEngine(name string, code ResultCode, distance float64) *fakeEngine {
	return &fakeEngine{
		name: name,
		compute: func(ctx context.Context, checkpoints Checkpoints, direction Direction, adjustToPrevious bool, delegate *EngineDelegate, route *Route) (ResultCode, error) {
			if code == NoError {
				route.DistanceMeters = distance
			}
			return code, nil
		},
	}
}

// blockingEngine polls delegate.Cancelled() until cancelled or release is
// closed, mirroring a cooperatively cancellable routing computation.
func blockingEngine(name string, release <-chan struct{}) *fakeEngine {
	return &fakeEngine{
		name: name,
		compute: func(ctx context.Context, checkpoints Checkpoints, direction Direction, adjustToPrevious bool, delegate *EngineDelegate, route *Route) (ResultCode, error) {
			for {
				if delegate.Cancelled() {
					return Cancelled, nil
				}
				select {
				case <-release:
					route.DistanceMeters = 1
					return NoError, nil
				case <-time.After(time.Millisecond):
				}
			}
		},
	}
}

func erroringEngine(name, message string) *fakeEngine {
	return &fakeEngine{
		name: name,
		compute: func(ctx context.Context, checkpoints Checkpoints, direction Direction, adjustToPrevious bool, delegate *EngineDelegate, route *Route) (ResultCode, error) {
			return NoError, NewEngineError(message)
		},
	}
}

// fakeFetcher implements Fetcher with a fixed absent list.
type fakeFetcher struct {
	absent []string
}

func (f *fakeFetcher) GenerateRequest(checkpoints Checkpoints) {}

func (f *fakeFetcher) GetAbsentCountries(ctx context.Context) []string { return f.absent }

// recordingSink collects every StatsRecord it receives, guarded by a
// mutex since Record is invoked from the UI queue goroutine.
type recordingSink struct {
	mu      sync.Mutex
	records []StatsRecord
}

func (s *recordingSink) Record(r StatsRecord) {
	s.mu.Lock()
	s.records = append(s.records, r)
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() []StatsRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StatsRecord, len(s.records))
	copy(out, s.records)
	return out
}

func testCheckpointsRequest() Checkpoints {
	return Checkpoints{Start: GeoPoint{X: 1, Y: 1}, Finish: GeoPoint{X: 2, Y: 2}}
}

const testTimeout = 2 * time.Second

func TestDispatcher_HappyPath(t *testing.T) {
	queue := newSyncUIQueue()
	sink := &recordingSink{}
	d := NewDispatcher(queue, WithStatsSink(sink), WithEngine(immediateEngine("router-a", NoError, 1000), &fakeFetcher{}))
	defer d.Destroy()

	ready := make(chan ResultCode, 1)
	removed := make(chan ResultCode, 1)

	_, err := d.CalculateRoute(testCheckpointsRequest(), Direction{}, false, DelegateCallbacks{
		OnReady:       func(route *Route, code ResultCode) { ready <- code },
		OnRemoveRoute: func(code ResultCode) { removed <- code },
	})
	if err != nil {
		t.Fatalf("CalculateRoute() error = %v", err)
	}

	select {
	case code := <-ready:
		if code != NoError {
			t.Errorf("OnReady code = %v, want NoError", code)
		}
	case code := <-removed:
		t.Fatalf("OnRemoveRoute fired unexpectedly with %v", code)
	case <-time.After(testTimeout):
		t.Fatal("OnReady never fired")
	}

	select {
	case code := <-removed:
		t.Fatalf("OnRemoveRoute fired unexpectedly with %v", code)
	default:
	}
}

func TestDispatcher_NeedMoreMaps(t *testing.T) {
	queue := newSyncUIQueue()
	d := NewDispatcher(queue, WithEngine(immediateEngine("router-a", NoError, 1000), &fakeFetcher{absent: []string{"US_California", "US_Nevada"}}))
	defer d.Destroy()

	ready := make(chan uint64, 1)
	needMaps := make(chan []string, 1)

	_, err := d.CalculateRoute(testCheckpointsRequest(), Direction{}, false, DelegateCallbacks{
		OnReady:        func(route *Route, code ResultCode) { ready <- route.ID },
		OnNeedMoreMaps: func(routeID uint64, absent []string) { needMaps <- absent },
	})
	if err != nil {
		t.Fatalf("CalculateRoute() error = %v", err)
	}

	var routeID uint64
	select {
	case routeID = <-ready:
	case <-time.After(testTimeout):
		t.Fatal("OnReady never fired")
	}

	select {
	case absent := <-needMaps:
		if len(absent) != 2 || absent[0] != "US_California" {
			t.Errorf("absent regions = %v, want [US_California US_Nevada]", absent)
		}
	case <-time.After(testTimeout):
		t.Fatal("OnNeedMoreMaps never fired after OnReady")
	}
	if routeID == 0 {
		t.Error("route id should be non-zero")
	}
}

func TestDispatcher_RouteNotFound(t *testing.T) {
	queue := newSyncUIQueue()
	sink := &recordingSink{}
	d := NewDispatcher(queue, WithStatsSink(sink), WithEngine(immediateEngine("router-a", RouteNotFound, 0), &fakeFetcher{}))
	defer d.Destroy()

	ready := make(chan struct{}, 1)
	removed := make(chan ResultCode, 1)

	_, err := d.CalculateRoute(testCheckpointsRequest(), Direction{}, false, DelegateCallbacks{
		OnReady:       func(route *Route, code ResultCode) { ready <- struct{}{} },
		OnRemoveRoute: func(code ResultCode) { removed <- code },
	})
	if err != nil {
		t.Fatalf("CalculateRoute() error = %v", err)
	}

	select {
	case code := <-removed:
		if code != RouteNotFound {
			t.Errorf("OnRemoveRoute code = %v, want RouteNotFound", code)
		}
	case <-ready:
		t.Fatal("OnReady fired for a RouteNotFound outcome")
	case <-time.After(testTimeout):
		t.Fatal("OnRemoveRoute never fired")
	}

	var rec StatsRecord
	for _, r := range sink.snapshot() {
		rec = r
	}
	if rec.HasDistance {
		t.Error("stats record for RouteNotFound must not carry a distance key")
	}
}

func TestDispatcher_Cancellation(t *testing.T) {
	queue := newSyncUIQueue()
	release := make(chan struct{})
	defer close(release)

	d := NewDispatcher(queue, WithEngine(blockingEngine("router-a", release), &fakeFetcher{}))
	defer d.Destroy()

	var fired bool
	var mu sync.Mutex

	_, err := d.CalculateRoute(testCheckpointsRequest(), Direction{}, false, DelegateCallbacks{
		OnReady:       func(route *Route, code ResultCode) { mu.Lock(); fired = true; mu.Unlock() },
		OnRemoveRoute: func(code ResultCode) { mu.Lock(); fired = true; mu.Unlock() },
	})
	if err != nil {
		t.Fatalf("CalculateRoute() error = %v", err)
	}

	if err := d.ClearState(); err != nil {
		t.Fatalf("ClearState() error = %v", err)
	}

	// Give the worker time to observe cancellation and (not) schedule
	// anything, then confirm no callback ever fired.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Error("a callback fired for a cancelled request")
	}
}

func TestDispatcher_Preemption(t *testing.T) {
	queue := newSyncUIQueue()
	releaseA := make(chan struct{})
	defer close(releaseA)

	engineA := blockingEngine("router-a", releaseA)
	d := NewDispatcher(queue, WithEngine(engineA, &fakeFetcher{}))
	defer d.Destroy()

	var aFired bool
	var mu sync.Mutex

	_, err := d.CalculateRoute(testCheckpointsRequest(), Direction{}, false, DelegateCallbacks{
		OnReady:       func(route *Route, code ResultCode) { mu.Lock(); aFired = true; mu.Unlock() },
		OnRemoveRoute: func(code ResultCode) { mu.Lock(); aFired = true; mu.Unlock() },
	})
	if err != nil {
		t.Fatalf("CalculateRoute() (A) error = %v", err)
	}

	// Swap in an engine that resolves instantly for B.
	engineB := immediateEngine("router-b", NoError, 500)
	if err := d.SetEngine(engineB, &fakeFetcher{}); err != nil {
		t.Fatalf("SetEngine() error = %v", err)
	}

	readyB := make(chan *Route, 1)
	_, err = d.CalculateRoute(testCheckpointsRequest(), Direction{}, false, DelegateCallbacks{
		OnReady: func(route *Route, code ResultCode) { readyB <- route },
	})
	if err != nil {
		t.Fatalf("CalculateRoute() (B) error = %v", err)
	}

	select {
	case route := <-readyB:
		if route.RouterName != "router-b" {
			t.Errorf("B's route router = %q, want router-b", route.RouterName)
		}
	case <-time.After(testTimeout):
		t.Fatal("B's OnReady never fired")
	}

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if aFired {
		t.Error("A's callback fired after being preempted by B")
	}
}

func TestDispatcher_RouteIDsIncreaseAcrossRequests(t *testing.T) {
	queue := newSyncUIQueue()
	d := NewDispatcher(queue, WithEngine(immediateEngine("router-a", NoError, 1), &fakeFetcher{}))
	defer d.Destroy()

	var ids []uint64
	for i := 0; i < 3; i++ {
		ready := make(chan uint64, 1)
		_, err := d.CalculateRoute(testCheckpointsRequest(), Direction{}, false, DelegateCallbacks{
			OnReady: func(route *Route, code ResultCode) { ready <- route.ID },
		})
		if err != nil {
			t.Fatalf("CalculateRoute() error = %v", err)
		}
		select {
		case id := <-ready:
			ids = append(ids, id)
		case <-time.After(testTimeout):
			t.Fatal("OnReady never fired")
		}
	}

	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("route ids not strictly increasing: %v", ids)
		}
	}
}

func TestDispatcher_ExceptionBecomesInternalError(t *testing.T) {
	queue := newSyncUIQueue()
	sink := &recordingSink{}
	d := NewDispatcher(queue, WithStatsSink(sink), WithEngine(erroringEngine("router-a", "bad mwm"), &fakeFetcher{}))
	defer d.Destroy()

	ready := make(chan ResultCode, 1)
	removed := make(chan ResultCode, 1)

	_, err := d.CalculateRoute(testCheckpointsRequest(), Direction{}, false, DelegateCallbacks{
		OnReady:       func(route *Route, code ResultCode) { ready <- code },
		OnRemoveRoute: func(code ResultCode) { removed <- code },
	})
	if err != nil {
		t.Fatalf("CalculateRoute() error = %v", err)
	}

	select {
	case code := <-ready:
		if code != InternalError {
			t.Errorf("OnReady code = %v, want InternalError", code)
		}
	case <-removed:
		t.Fatal("OnRemoveRoute fired on the exception path, want OnReady only")
	case <-time.After(testTimeout):
		t.Fatal("OnReady never fired")
	}

	var found bool
	for _, rec := range sink.snapshot() {
		if rec.HasException && rec.Exception == "bad mwm" {
			found = true
		}
	}
	if !found {
		t.Error("no stats record carried the exception message")
	}
}

func TestDispatcher_SetEngineTwiceKeepsLast(t *testing.T) {
	queue := newSyncUIQueue()
	d := NewDispatcher(queue)
	defer d.Destroy()

	if err := d.SetEngine(immediateEngine("first", NoError, 1), &fakeFetcher{}); err != nil {
		t.Fatalf("SetEngine() error = %v", err)
	}
	if err := d.SetEngine(immediateEngine("second", NoError, 1), &fakeFetcher{}); err != nil {
		t.Fatalf("SetEngine() error = %v", err)
	}

	ready := make(chan *Route, 1)
	_, err := d.CalculateRoute(testCheckpointsRequest(), Direction{}, false, DelegateCallbacks{
		OnReady: func(route *Route, code ResultCode) { ready <- route },
	})
	if err != nil {
		t.Fatalf("CalculateRoute() error = %v", err)
	}

	select {
	case route := <-ready:
		if route.RouterName != "second" {
			t.Errorf("router = %q, want second", route.RouterName)
		}
	case <-time.After(testTimeout):
		t.Fatal("OnReady never fired")
	}
}

func TestDispatcher_ClearStateWithNoEngineIsNoop(t *testing.T) {
	queue := newSyncUIQueue()
	d := NewDispatcher(queue)
	defer d.Destroy()

	if err := d.ClearState(); err != nil {
		t.Fatalf("ClearState() error = %v", err)
	}
}

func TestDispatcher_DestroyJoinsPromptly(t *testing.T) {
	queue := newSyncUIQueue()
	d := NewDispatcher(queue, WithEngine(immediateEngine("router-a", NoError, 1), &fakeFetcher{}))

	done := make(chan struct{})
	go func() {
		d.Destroy()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("Destroy did not return in time")
	}

	if err := d.SetEngine(nil, nil); err != ErrDispatcherClosed {
		t.Errorf("SetEngine() after Destroy = %v, want ErrDispatcherClosed", err)
	}
}

func TestDispatcher_NoEngineDropsRequestSilently(t *testing.T) {
	queue := newSyncUIQueue()
	d := NewDispatcher(queue)
	defer d.Destroy()

	fired := make(chan struct{}, 1)
	_, err := d.CalculateRoute(testCheckpointsRequest(), Direction{}, false, DelegateCallbacks{
		OnReady:       func(route *Route, code ResultCode) { fired <- struct{}{} },
		OnRemoveRoute: func(code ResultCode) { fired <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("CalculateRoute() error = %v", err)
	}

	select {
	case <-fired:
		t.Fatal("a callback fired with no engine installed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatcher_PointCheckNeedsEnable(t *testing.T) {
	pointChecking := func(name string) *fakeEngine {
		return &fakeEngine{
			name: name,
			compute: func(ctx context.Context, checkpoints Checkpoints, direction Direction, adjustToPrevious bool, delegate *EngineDelegate, route *Route) (ResultCode, error) {
				delegate.OnPointCheck(checkpoints.Start)
				route.DistanceMeters = 1
				return NoError, nil
			},
		}
	}

	run := func(t *testing.T) bool {
		queue := newSyncUIQueue()
		d := NewDispatcher(queue, WithEngine(pointChecking("router-a"), &fakeFetcher{}))
		defer d.Destroy()

		checked := make(chan GeoPoint, 1)
		ready := make(chan struct{}, 1)
		_, err := d.CalculateRoute(testCheckpointsRequest(), Direction{}, false, DelegateCallbacks{
			OnReady: func(route *Route, code ResultCode) { ready <- struct{}{} },
		}, WithPointCheck(func(pt GeoPoint) bool {
			checked <- pt
			return true
		}))
		if err != nil {
			t.Fatalf("CalculateRoute() error = %v", err)
		}
		select {
		case <-ready:
		case <-time.After(testTimeout):
			t.Fatal("OnReady never fired")
		}
		select {
		case <-checked:
			return true
		default:
			return false
		}
	}

	t.Run("disabled", func(t *testing.T) {
		if run(t) {
			t.Error("point-check callback ran while PointCheckEnabled is false")
		}
	})

	t.Run("enabled", func(t *testing.T) {
		PointCheckEnabled = true
		defer func() { PointCheckEnabled = false }()
		if !run(t) {
			t.Error("point-check callback never ran with PointCheckEnabled set")
		}
	})
}

func TestDispatcher_StatsEmittedFromUIQueue(t *testing.T) {
	queue := newSyncUIQueue()

	var inTask bool
	var mu sync.Mutex
	tagged := UITaskQueueFunc(func(task func()) {
		queue.RunOnGui(func() {
			mu.Lock()
			inTask = true
			mu.Unlock()
			task()
			mu.Lock()
			inTask = false
			mu.Unlock()
		})
	})

	recorded := make(chan bool, 4)
	sink := StatsSinkFunc(func(StatsRecord) {
		mu.Lock()
		recorded <- inTask
		mu.Unlock()
	})

	d := NewDispatcher(tagged, WithStatsSink(sink), WithEngine(immediateEngine("router-a", NoError, 1), &fakeFetcher{}))
	defer d.Destroy()

	_, err := d.CalculateRoute(testCheckpointsRequest(), Direction{}, false, DelegateCallbacks{})
	if err != nil {
		t.Fatalf("CalculateRoute() error = %v", err)
	}

	select {
	case viaQueue := <-recorded:
		if !viaQueue {
			t.Error("stats record was emitted outside a scheduled UI task")
		}
	case <-time.After(testTimeout):
		t.Fatal("sink never received a record")
	}
}

func TestDispatcher_DestroyIsIdempotent(t *testing.T) {
	queue := newSyncUIQueue()
	d := NewDispatcher(queue, WithEngine(immediateEngine("router-a", NoError, 1), &fakeFetcher{}))
	d.Destroy()
	d.Destroy() // must not panic or deadlock
}
