// Package bearing implements the asynchronous routing dispatcher of a
// mobile navigation system: a single-consumer background worker that
// computes routes on behalf of a latency-sensitive UI thread, coalesces
// overlapping requests, and delivers results through a cancellation-aware
// delegate.
package bearing

import (
	"fmt"
	"math"
)

// GeoPoint is a pair of coordinates in the engine's projected plane.
// Conversion to longitude/latitude is only meaningful for statistics.
type GeoPoint struct {
	X float64
	Y float64
}

// ToLonLat returns the point as longitude (X) and latitude (Y), each
// rounded to five decimal digits (~1m precision), the precision the
// statistics formatter requires. No projection transform is applied: X and
// Y are taken as longitude and latitude unchanged apart from the rounding.
func (p GeoPoint) ToLonLat() (lon, lat float64) {
	return round5(p.X), round5(p.Y)
}

func round5(v float64) float64 {
	const scale = 1e5
	return math.Round(v*scale) / scale
}

// Direction is a unit(-ish) vector describing the vehicle's heading at the
// start point, used by the engine to bias the first route segment.
type Direction struct {
	X float64
	Y float64
}

// Checkpoints is the ordered sequence of waypoints for one route request.
// It is immutable once submitted: the dispatcher and worker never mutate
// the slice backing a submitted request.
type Checkpoints struct {
	Start        GeoPoint
	Intermediate []GeoPoint
	Finish       GeoPoint
}

// Points returns the full ordered point list, start first and finish last.
func (c Checkpoints) Points() []GeoPoint {
	pts := make([]GeoPoint, 0, len(c.Intermediate)+2)
	pts = append(pts, c.Start)
	pts = append(pts, c.Intermediate...)
	pts = append(pts, c.Finish)
	return pts
}

// Route is the opaque artifact produced by the engine. Ownership transfers
// from the worker to the UI thread the moment it is handed to an on-ready
// callback; the worker must not touch it again afterward.
type Route struct {
	ID             uint64
	RouterName     string
	DistanceMeters float64
}

// ResultCode is the closed enumeration of outcomes the engine can report.
type ResultCode int

const (
	NoError ResultCode = iota
	Cancelled
	StartPointNotFound
	EndPointNotFound
	IntermediatePointNotFound
	PointsInDifferentMWM
	RouteNotFound
	RouteFileNotExist
	NeedMoreMaps
	NoCurrentPosition
	InconsistentMWMandRoute
	InternalError
	FileTooOld
	TransitRouteNotFoundNoNetwork
	TransitRouteNotFoundTooLongPedestrian
	RouteNotFoundRedressRouteError
)

var resultCodeNames = [...]string{
	"NoError",
	"Cancelled",
	"StartPointNotFound",
	"EndPointNotFound",
	"IntermediatePointNotFound",
	"PointsInDifferentMWM",
	"RouteNotFound",
	"RouteFileNotExist",
	"NeedMoreMaps",
	"NoCurrentPosition",
	"InconsistentMWMandRoute",
	"InternalError",
	"FileTooOld",
	"TransitRouteNotFoundNoNetwork",
	"TransitRouteNotFoundTooLongPedestrian",
	"RouteNotFoundRedressRouteError",
}

// String returns the stable name used in log lines and statistics records.
func (c ResultCode) String() string {
	if c < 0 || int(c) >= len(resultCodeNames) {
		return fmt.Sprintf("ResultCode(%d)", int(c))
	}
	return resultCodeNames[c]
}
