package bearing

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// pendingRequest is the dispatcher's single pending-request slot. Only
// the latest submission survives between two worker iterations; an older
// pendingRequest is discarded, not queued.
type pendingRequest struct {
	checkpoints      Checkpoints
	direction        Direction
	adjustToPrevious bool
	delegate         *DelegateProxy
	requestID        uuid.UUID
}

// DispatcherOption configures a Dispatcher at construction time using the
// functional-options idiom.
type DispatcherOption func(*Dispatcher)

// WithLogger installs a structured logger; the default is slog.Default().
func WithLogger(log *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = log }
}

// WithStatsSink installs the statistics sink at construction time. It can
// also be changed later with SetStatsSink.
func WithStatsSink(sink StatsSink) DispatcherOption {
	return func(d *Dispatcher) { d.statsSink = sink }
}

// WithEngine installs the initial engine and fetcher, equivalent to an
// immediate SetEngine call performed before the worker starts.
func WithEngine(engine Engine, fetcher Fetcher) DispatcherOption {
	return func(d *Dispatcher) {
		d.engine = engine
		d.fetcher = fetcher
	}
}

// Dispatcher owns the worker, the current engine, the pending request
// slot, and the active delegate. It exposes the public API: SetEngine,
// CalculateRoute, ClearState, and Destroy.
type Dispatcher struct {
	mu   sync.Mutex
	cond *sync.Cond

	log     *slog.Logger
	uiQueue UITaskQueue

	engine    Engine
	fetcher   Fetcher
	statsSink StatsSink

	pending    *pendingRequest
	hasRequest bool
	clearState bool
	exit       bool
	closed     bool

	activeDelegate *DelegateProxy
	routeCounter   uint64

	wg sync.WaitGroup
}

// NewDispatcher constructs a Dispatcher and immediately starts its single
// background worker goroutine. uiQueue is the consumed "UI thread's task
// queue" collaborator; every callback and every statistics record
// flows through it.
func NewDispatcher(uiQueue UITaskQueue, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		log:     slog.Default(),
		uiQueue: uiQueue,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.cond = sync.NewCond(&d.mu)

	d.wg.Add(1)
	go d.run()

	return d
}

// SetEngine installs a new engine and fetcher. Under the lock it cancels
// the active delegate (if any) before swapping, so any in-flight
// computation against the old engine is abandoned cleanly. Safe to call
// repeatedly.
func (d *Dispatcher) SetEngine(engine Engine, fetcher Fetcher) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	if d.activeDelegate != nil {
		d.activeDelegate.Cancel()
	}
	d.engine = engine
	d.fetcher = fetcher
	return nil
}

// SetStatsSink installs or replaces the statistics sink. A nil sink
// disables emission.
func (d *Dispatcher) SetStatsSink(sink StatsSink) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.statsSink = sink
	return nil
}

// CalculateRouteOptions holds the optional knobs for one CalculateRoute
// call: the per-request timeout conveyed to the engine-delegate, and the
// debug point-check callback.
type CalculateRouteOptions struct {
	TimeoutSec   int
	OnPointCheck func(GeoPoint) bool
}

// CalculateRouteOption configures a single CalculateRoute call, the
// per-call counterpart of DispatcherOption.
type CalculateRouteOption func(*CalculateRouteOptions)

// WithTimeoutSec sets the per-request timeout passed to the engine through
// the engine-delegate.
func WithTimeoutSec(sec int) CalculateRouteOption {
	return func(o *CalculateRouteOptions) { o.TimeoutSec = sec }
}

// WithPointCheck installs the optional debug point-check callback. It has
// no effect unless the package-level PointCheckEnabled switch is set.
func WithPointCheck(cb func(GeoPoint) bool) CalculateRouteOption {
	return func(o *CalculateRouteOptions) { o.OnPointCheck = cb }
}

// CalculateRoute submits a new routing request. Under the lock it
// overwrites the pending slot, cancels the previous delegate, installs a
// new delegate proxy, sets has-request, and signals the worker. It returns
// the request's id immediately; the request itself is coalesced with any
// later submission that arrives before the worker gets to it.
func (d *Dispatcher) CalculateRoute(
	checkpoints Checkpoints,
	direction Direction,
	adjustToPrevious bool,
	cb DelegateCallbacks,
	opts ...CalculateRouteOption,
) (uuid.UUID, error) {
	o := CalculateRouteOptions{TimeoutSec: 30}
	for _, opt := range opts {
		opt(&o)
	}
	if !PointCheckEnabled {
		cb.OnPointCheck = nil
	} else if o.OnPointCheck != nil {
		cb.OnPointCheck = o.OnPointCheck
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return uuid.UUID{}, ErrDispatcherClosed
	}

	if d.activeDelegate != nil {
		d.activeDelegate.Cancel()
	}

	delegate := NewDelegateProxy(d.uiQueue, o.TimeoutSec, cb)
	d.activeDelegate = delegate

	requestID := uuid.New()
	d.pending = &pendingRequest{
		checkpoints:      checkpoints,
		direction:        direction,
		adjustToPrevious: adjustToPrevious,
		delegate:         delegate,
		requestID:        requestID,
	}
	d.hasRequest = true
	d.cond.Signal()

	return requestID, nil
}

// ClearState asks the worker to discard any cached routing state on its
// next iteration. It also cancels the active delegate, since any in-flight
// computation against soon-to-be-discarded state is no longer meaningful.
func (d *Dispatcher) ClearState() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.clearState = true
	if d.activeDelegate != nil {
		d.activeDelegate.Cancel()
	}
	d.cond.Signal()
	return nil
}

// Destroy cancels the active delegate, sets the exit flag, signals the
// worker, and joins it before returning. It is idempotent and safe to call
// more than once (including concurrently): every caller observes the
// worker fully joined before Destroy returns.
func (d *Dispatcher) Destroy() {
	d.mu.Lock()
	if d.activeDelegate != nil {
		d.activeDelegate.Cancel()
	}
	d.closed = true
	d.exit = true
	d.cond.Signal()
	d.mu.Unlock()

	d.wg.Wait()
}
