package main

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/go-kratos/bearing"
	"github.com/go-kratos/bearing/stream"
)

// demoEngine is a toy bearing.Engine for manual exercise of the
// dispatcher from the terminal: no real map data, just straight-line
// distance with a simulated compute delay and progress reporting. It
// plays the role of an external routing algorithm so navctl has
// something concrete to drive against.
type demoEngine struct {
	name  string
	steps int
	delay time.Duration
}

func newDemoEngine() *demoEngine {
	return &demoEngine{name: "navctl-demo-router", steps: 10, delay: 80 * time.Millisecond}
}

func (e *demoEngine) GetName() string { return e.name }

func (e *demoEngine) ClearState() {}

func (e *demoEngine) CalculateRoute(ctx context.Context, checkpoints bearing.Checkpoints, direction bearing.Direction, adjustToPrevious bool, delegate *bearing.EngineDelegate, route *bearing.Route) (bearing.ResultCode, error) {
	points := checkpoints.Points()
	if len(points) < 2 {
		return bearing.StartPointNotFound, nil
	}

	// Ticks are produced on their own goroutine, tapped for debug logging
	// on their way to the delegate, and cut off as soon as the delegate
	// reports cancellation.
	ticks := stream.Generate(func(emit func(float64)) {
		for i := 0; i < e.steps; i++ {
			time.Sleep(e.delay)
			emit(float64(i+1) / float64(e.steps))
		}
	})
	logged := stream.Tap(ticks, func(p float64) {
		slog.Debug("navctl: route progress", "router", e.name, "progress", p)
	})
	for p := range stream.TakeWhile(logged, func(float64) bool { return !delegate.Cancelled() }) {
		delegate.OnProgress(p)
	}
	if delegate.Cancelled() {
		return bearing.Cancelled, nil
	}

	var total float64
	for i := 1; i < len(points); i++ {
		total += straightLineMeters(points[i-1], points[i])
	}
	route.DistanceMeters = total
	return bearing.NoError, nil
}

// straightLineMeters is a crude flat-plane approximation; good enough for
// a demo CLI, nowhere near what a real routing engine would compute.
func straightLineMeters(a, b bearing.GeoPoint) float64 {
	const metersPerDegree = 111_320.0
	dx := (b.X - a.X) * metersPerDegree
	dy := (b.Y - a.Y) * metersPerDegree
	return math.Hypot(dx, dy)
}

// demoFetcher reports a canned absent-region name whenever the requested
// finish point's X coordinate exceeds 170, purely to give NeedMoreMaps
// something to demo without any real map data.
type demoFetcher struct {
	mu     sync.Mutex
	finish bearing.GeoPoint
}

func (f *demoFetcher) GenerateRequest(checkpoints bearing.Checkpoints) {
	f.mu.Lock()
	f.finish = checkpoints.Finish
	f.mu.Unlock()
}

func (f *demoFetcher) GetAbsentCountries(ctx context.Context) []string {
	select {
	case <-time.After(120 * time.Millisecond):
	case <-ctx.Done():
		return nil
	}
	f.mu.Lock()
	finish := f.finish
	f.mu.Unlock()
	if finish.X > 170 {
		return []string{"Far_Region"}
	}
	return nil
}
