package bearing

import (
	"context"
	"log/slog"
	"time"
)

// run is the single background execution context. It waits on the
// dispatcher's condition variable, drains one request at a time, and
// orchestrates compute + fetch + result delivery. It is launched exactly
// once by NewDispatcher and exits only after Destroy sets the exit flag.
func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		for !d.exit && !d.hasRequest && !d.clearState {
			d.cond.Wait()
		}

		if d.clearState {
			if d.engine != nil {
				d.engine.ClearState()
			}
			d.clearState = false
		}

		if d.exit {
			d.mu.Unlock()
			return
		}

		if !d.hasRequest {
			d.mu.Unlock()
			continue
		}

		req := d.pending
		d.pending = nil
		d.hasRequest = false

		engine := d.engine
		fetcher := d.fetcher
		uiQueue := d.uiQueue
		sink := d.statsSink
		log := d.log

		d.routeCounter++
		routeID := d.routeCounter
		d.mu.Unlock()

		if engine == nil {
			log.Warn("bearing: dropping request, no engine installed", "error", ErrNoEngine)
			continue
		}
		if req == nil || req.delegate == nil {
			log.Warn("bearing: dropping request, no delegate", "error", ErrNoDelegate)
			continue
		}

		d.executeRequest(engine, fetcher, uiQueue, sink, log, routeID, req)
	}
}

// executeRequest runs one drained request to completion, entirely outside
// the dispatcher lock: compute, primary delivery, absent-fetch, upgrade,
// secondary delivery.
func (d *Dispatcher) executeRequest(
	engine Engine,
	fetcher Fetcher,
	uiQueue UITaskQueue,
	sink StatsSink,
	log *slog.Logger,
	routeID uint64,
	req *pendingRequest,
) {
	start := time.Now()
	routerName := engine.GetName()
	route := &Route{ID: routeID, RouterName: routerName}

	if fetcher != nil {
		fetcher.GenerateRequest(req.checkpoints)
	}

	delegate := req.delegate
	engineDelegate := delegate.Delegate()

	code, err := engine.CalculateRoute(context.Background(), req.checkpoints, req.direction, req.adjustToPrevious, engineDelegate, route)
	if err != nil {
		re, ok := asRootException(err)
		if !ok {
			// Only root-exception-family failures are converted to
			// InternalError; anything else aborts the worker.
			panic(err)
		}

		rec := formatException(routerName, req.checkpoints, req.direction, re.Error())
		uiQueue.RunOnGui(func() { emit(log, sink, rec) })

		emptyRoute := &Route{ID: routeID, RouterName: routerName}
		uiQueue.RunOnGui(func() { delegate.OnReady(emptyRoute, InternalError) })
		return
	}

	// Primary delivery: stats plus, for a completed route, OnReady right
	// away so the UI can draw without waiting for the absent-fetch. Route
	// ownership transfers to the UI task; the worker keeps only the
	// distance it needs for the secondary log line.
	distance := route.DistanceMeters
	elapsed := time.Since(start).Seconds()
	rec := formatNormal(routerName, req.checkpoints, req.direction, code, distance, elapsed)
	uiQueue.RunOnGui(func() { emit(log, sink, rec) })

	if code == NoError {
		readyRoute := route
		route = nil
		uiQueue.RunOnGui(func() { delegate.OnReady(readyRoute, NoError) })
	}

	// Drain the absent-fetch kicked off before the engine ran.
	var absent []string
	if code != Cancelled && fetcher != nil {
		absent = fetcher.GetAbsentCountries(context.Background())
	}

	if len(absent) > 0 && code == NoError {
		code = NeedMoreMaps
	}

	// Secondary delivery. OnReady already fired for NoError, so only
	// non-NoError outcomes get a callback here.
	elapsed2 := time.Since(start).Seconds()
	rec2 := formatNormal(routerName, req.checkpoints, req.direction, code, distance, elapsed2)
	logResult(log, rec2)

	if code == NoError {
		return
	}
	if code == NeedMoreMaps {
		uiQueue.RunOnGui(func() { delegate.OnNeedMoreMaps(routeID, absent) })
		return
	}
	uiQueue.RunOnGui(func() { delegate.OnRemoveRoute(code) })
}
