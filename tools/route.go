package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-kratos/bearing"
)

// PlanRouteRequest is the JSON-schema-described request for the plan_route
// tool: an origin, a destination, optional intermediate stops, and the
// vehicle's initial heading.
type PlanRouteRequest struct {
	StartX           float64        `json:"start_x"`
	StartY           float64        `json:"start_y"`
	FinishX          float64        `json:"finish_x"`
	FinishY          float64        `json:"finish_y"`
	Intermediate     []RoutePointXY `json:"intermediate,omitempty"`
	DirectionX       float64        `json:"direction_x"`
	DirectionY       float64        `json:"direction_y"`
	AdjustToPrevious bool           `json:"adjust_to_previous,omitempty"`
	TimeoutSeconds   int            `json:"timeout_seconds,omitempty"`
}

// RoutePointXY is a single projected-plane coordinate pair.
type RoutePointXY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlanRouteResponse is the JSON-schema-described result of a plan_route
// call. Because the underlying Dispatcher delivers results through
// callbacks rather than a return value, the tool handler blocks on the
// request's first terminal callback and reports it synchronously here. A
// NoError route is reported as soon as OnReady fires, so a NeedMoreMaps
// upgrade that follows it is not reported and AbsentRegions stays empty.
type PlanRouteResponse struct {
	RequestID      string   `json:"request_id"`
	Result         string   `json:"result"`
	RouteID        uint64   `json:"route_id,omitempty"`
	DistanceMeters float64  `json:"distance_meters,omitempty"`
	AbsentRegions  []string `json:"absent_regions,omitempty"`
}

// NewRouteTool exposes d.CalculateRoute as an invocable plan_route Tool.
// Only one call is in flight against the handler at a time from the
// caller's perspective (the handler blocks until a terminal callback for
// its own request fires); concurrent calls still coalesce the same way
// concurrent CalculateRoute callers would, since they share one
// Dispatcher.
func NewRouteTool(d *bearing.Dispatcher, log *slog.Logger) (*Tool, error) {
	if log == nil {
		log = slog.Default()
	}
	handler := HandleFunc[PlanRouteRequest, PlanRouteResponse](func(ctx context.Context, req PlanRouteRequest) (PlanRouteResponse, error) {
		start := time.Now()
		resp, err := planRoute(ctx, d, req)
		if err != nil {
			log.Warn("tools: plan_route call failed", "elapsed", time.Since(start), "error", err)
			return resp, err
		}
		log.Info("tools: plan_route call completed", "elapsed", time.Since(start), "result", resp.Result)
		return resp, nil
	})
	return NewTool("plan_route", "Compute a route between an origin and a destination, optionally via intermediate stops.", handler)
}

func planRoute(ctx context.Context, d *bearing.Dispatcher, req PlanRouteRequest) (PlanRouteResponse, error) {
	intermediate := make([]bearing.GeoPoint, len(req.Intermediate))
	for i, p := range req.Intermediate {
		intermediate[i] = bearing.GeoPoint{X: p.X, Y: p.Y}
	}
	checkpoints := bearing.Checkpoints{
		Start:        bearing.GeoPoint{X: req.StartX, Y: req.StartY},
		Intermediate: intermediate,
		Finish:       bearing.GeoPoint{X: req.FinishX, Y: req.FinishY},
	}
	direction := bearing.Direction{X: req.DirectionX, Y: req.DirectionY}

	timeout := req.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	// Buffered for 2: NoError can be followed by a NeedMoreMaps upgrade
	// delivered through a second callback: the send must never block the
	// caller's UI task queue even though only the first value is read.
	done := make(chan PlanRouteResponse, 2)

	requestID, err := d.CalculateRoute(checkpoints, direction, req.AdjustToPrevious, bearing.DelegateCallbacks{
		OnReady: func(route *bearing.Route, code bearing.ResultCode) {
			done <- PlanRouteResponse{
				Result:         code.String(),
				RouteID:        route.ID,
				DistanceMeters: route.DistanceMeters,
			}
		},
		OnNeedMoreMaps: func(routeID uint64, absentRegions []string) {
			done <- PlanRouteResponse{
				Result:        bearing.NeedMoreMaps.String(),
				RouteID:       routeID,
				AbsentRegions: absentRegions,
			}
		},
		OnRemoveRoute: func(code bearing.ResultCode) {
			done <- PlanRouteResponse{Result: code.String()}
		},
	}, bearing.WithTimeoutSec(timeout))
	if err != nil {
		return PlanRouteResponse{}, err
	}

	select {
	case resp := <-done:
		resp.RequestID = requestID.String()
		return resp, nil
	case <-ctx.Done():
		return PlanRouteResponse{RequestID: requestID.String(), Result: "Cancelled"}, ctx.Err()
	}
}
