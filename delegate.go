package bearing

import "sync"

// PointCheckEnabled gates OnPointCheck delivery. The source system gates
// this callback behind a debug compile-time option; Go has no equivalent,
// so a package-level switch plays the same role. Off by default.
var PointCheckEnabled = false

// EngineDelegate is the handle passed into Engine.CalculateRoute. It
// conveys cancellation and timeout into the engine and relays progress /
// point-check events back out to the owning DelegateProxy. The engine
// polls Cancelled() cooperatively; it is never preempted.
type EngineDelegate struct {
	mu         sync.Mutex
	cancelled  bool
	timeoutSec int
	onProgress func(float64)
	onPoint    func(GeoPoint) bool
}

// Cancelled reports whether cancellation has been requested. The engine is
// expected to poll this and return Cancelled promptly once true.
func (d *EngineDelegate) Cancelled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelled
}

// TimeoutSec returns the per-request timeout conveyed from the proxy. The
// dispatcher itself imposes no wall-clock timeout; honoring this value is
// entirely the engine's responsibility.
func (d *EngineDelegate) TimeoutSec() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timeoutSec
}

// OnProgress is called by the engine, synchronously on the worker
// goroutine, to report fractional progress in [0.0, 1.0].
func (d *EngineDelegate) OnProgress(progress01 float64) {
	d.mu.Lock()
	cb := d.onProgress
	d.mu.Unlock()
	if cb != nil {
		cb(progress01)
	}
}

// OnPointCheck is called by the engine to ask whether a candidate point
// should be kept; it returns true unless a debug listener rejects it.
func (d *EngineDelegate) OnPointCheck(pt GeoPoint) bool {
	d.mu.Lock()
	cb := d.onPoint
	d.mu.Unlock()
	if cb != nil {
		return cb(pt)
	}
	return true
}

func (d *EngineDelegate) setCancelled() {
	d.mu.Lock()
	d.cancelled = true
	d.mu.Unlock()
}

// DelegateProxy is the per-request object holding user callbacks plus a
// cancellation flag. It filters callbacks once cancelled -- filtering
// happens before scheduling, not after, so that user code never runs while
// a caller may be tearing down shared state.
type DelegateProxy struct {
	mu        sync.Mutex
	cancelled bool
	uiQueue   UITaskQueue

	onReady        func(*Route, ResultCode)
	onNeedMoreMaps func(routeID uint64, absentRegions []string)
	onRemoveRoute  func(ResultCode)
	onProgress     func(progress01 float64)
	onPointCheck   func(GeoPoint) bool

	engineDelegate *EngineDelegate
}

// DelegateCallbacks groups the user-supplied callbacks a DelegateProxy
// forwards. Any of them may be nil; a nil callback is silently skipped.
type DelegateCallbacks struct {
	OnReady        func(*Route, ResultCode)
	OnNeedMoreMaps func(routeID uint64, absentRegions []string)
	OnRemoveRoute  func(ResultCode)
	OnProgress     func(progress01 float64)
	OnPointCheck   func(GeoPoint) bool
}

// NewDelegateProxy constructs a proxy for one submitted request. It wires
// a fresh EngineDelegate whose progress/point-check listeners forward into
// this proxy's own methods, and sets the timeout on it.
func NewDelegateProxy(uiQueue UITaskQueue, timeoutSec int, cb DelegateCallbacks) *DelegateProxy {
	p := &DelegateProxy{
		uiQueue:        uiQueue,
		onReady:        cb.OnReady,
		onNeedMoreMaps: cb.OnNeedMoreMaps,
		onRemoveRoute:  cb.OnRemoveRoute,
		onProgress:     cb.OnProgress,
		onPointCheck:   cb.OnPointCheck,
	}
	p.engineDelegate = &EngineDelegate{timeoutSec: timeoutSec}
	p.engineDelegate.onProgress = p.OnProgress
	p.engineDelegate.onPoint = p.OnPointCheck
	return p
}

// OnReady delivers the completed route. It is invoked already on the UI
// thread (the worker schedules the call via RunOnGui); it only needs to
// check cancellation before handing the route to user code. Ownership of
// route transfers to the callback.
func (p *DelegateProxy) OnReady(route *Route, code ResultCode) {
	if p.onReady == nil {
		return
	}
	p.mu.Lock()
	cancelled := p.cancelled
	p.mu.Unlock()
	if cancelled {
		return
	}
	p.onReady(route, code)
}

// OnNeedMoreMaps delivers the "need more maps" upgrade. Symmetric with
// OnReady.
func (p *DelegateProxy) OnNeedMoreMaps(routeID uint64, absentRegions []string) {
	if p.onNeedMoreMaps == nil {
		return
	}
	p.mu.Lock()
	cancelled := p.cancelled
	p.mu.Unlock()
	if cancelled {
		return
	}
	p.onNeedMoreMaps(routeID, absentRegions)
}

// OnRemoveRoute delivers a terminal non-NoError outcome. Symmetric with
// OnReady.
func (p *DelegateProxy) OnRemoveRoute(code ResultCode) {
	if p.onRemoveRoute == nil {
		return
	}
	p.mu.Lock()
	cancelled := p.cancelled
	p.mu.Unlock()
	if cancelled {
		return
	}
	p.onRemoveRoute(code)
}

// OnProgress is called synchronously by the engine, on the worker
// goroutine. Unlike OnReady/OnRemoveRoute/OnNeedMoreMaps, this callback is
// not already scheduled on the UI thread, so the proxy must do that
// itself. The snapshot of the callback and the scheduling decision happen
// under the same lock acquisition so a concurrent Cancel cannot interleave
// between "read the callback" and "decide to schedule it".
func (p *DelegateProxy) OnProgress(progress01 float64) {
	p.mu.Lock()
	if p.onProgress == nil || p.cancelled {
		p.mu.Unlock()
		return
	}
	cb := p.onProgress
	queue := p.uiQueue
	p.mu.Unlock()

	queue.RunOnGui(func() { cb(progress01) })
}

// OnPointCheck mirrors OnProgress but is only wired up when PointCheckEnabled
// is true; the dispatcher consults that switch before installing the
// callback, so this method need not check it again.
func (p *DelegateProxy) OnPointCheck(pt GeoPoint) bool {
	p.mu.Lock()
	if p.onPointCheck == nil || p.cancelled {
		p.mu.Unlock()
		return true
	}
	cb := p.onPointCheck
	queue := p.uiQueue
	p.mu.Unlock()

	result := true
	done := make(chan struct{})
	queue.RunOnGui(func() {
		result = cb(pt)
		close(done)
	})
	<-done
	return result
}

// Cancel marks the proxy cancelled: no further user callback will be
// scheduled by it, and the engine-delegate's cancellation flag is set so
// the engine observes it on its next poll. Idempotent and safe to call at
// any time, including concurrently with delivery.
func (p *DelegateProxy) Cancel() {
	p.mu.Lock()
	p.cancelled = true
	p.mu.Unlock()
	p.engineDelegate.setCancelled()
}

// Delegate returns the engine-delegate handle for passing into the engine.
func (p *DelegateProxy) Delegate() *EngineDelegate {
	return p.engineDelegate
}
