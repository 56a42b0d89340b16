package bearing

import "context"

// Engine is the external routing algorithm (graph search, map loading).
// Its implementation is out of scope for this module; only the interface
// is consumed. CalculateRoute may return a *rootException-family error
// (see NewEngineError) instead of a ResultCode/nil pair to signal a caught
// failure; the worker converts that into InternalError.
type Engine interface {
	// CalculateRoute computes a route between checkpoints, writing the
	// result into route. It must poll delegate.Cancelled() periodically and
	// return Cancelled promptly once set.
	CalculateRoute(ctx context.Context, checkpoints Checkpoints, direction Direction, adjustToPrevious bool, delegate *EngineDelegate, route *Route) (ResultCode, error)

	// ClearState discards any cached routing state (loaded graphs, caches).
	ClearState()

	// GetName returns the router's stable name, used to tag produced
	// routes and to key statistics records.
	GetName() string
}

// Fetcher is the external online absent-countries fetcher. Out of scope:
// only the interface is consumed, and only from the worker goroutine once
// a request has started.
type Fetcher interface {
	// GenerateRequest kicks off a non-blocking request for the given
	// checkpoints; it returns immediately so its network latency overlaps
	// the engine's computation.
	GenerateRequest(checkpoints Checkpoints)

	// GetAbsentCountries blocks until the fetch started by GenerateRequest
	// completes, returning the list of absent region names. Fetcher
	// failures are treated as an empty list, never surfaced as an error
	// here.
	GetAbsentCountries(ctx context.Context) []string
}

// UITaskQueue is the consumed abstraction for "the UI thread's task
// queue": RunOnGui schedules a fire-and-forget task. Every callback
// the dispatcher exposes is delivered exclusively through this interface,
// which is how the "callbacks are invoked on the UI thread" guarantee
// is kept.
type UITaskQueue interface {
	RunOnGui(task func())
}

// UITaskQueueFunc adapts a plain function to UITaskQueue.
type UITaskQueueFunc func(func())

// RunOnGui implements UITaskQueue.
func (f UITaskQueueFunc) RunOnGui(task func()) { f(task) }
