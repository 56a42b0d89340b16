package bearing

import "log/slog"

// StatsRecord is the key-value record the statistics formatter
// produces. Field names are a stable payload contract; Distance is
// only meaningful (and only emitted by formatters that honor
// HasDistance) on a NoError outcome, and Exception is only meaningful on
// a caught engine failure.
type StatsRecord struct {
	RouterName      string
	StartLon        float64
	StartLat        float64
	StartDirectionX float64
	StartDirectionY float64
	FinalLon        float64
	FinalLat        float64
	Result          ResultCode
	ElapsedSeconds  float64
	Distance        float64
	HasDistance     bool
	Exception       string
	HasException    bool
}

// StatsSink accepts a formatted record. It may be absent (nil), in which
// case emission is skipped silently -- never wired up to panic on a nil
// sink.
type StatsSink interface {
	Record(StatsRecord)
}

// StatsSinkFunc adapts a plain function to StatsSink.
type StatsSinkFunc func(StatsRecord)

// Record implements StatsSink.
func (f StatsSinkFunc) Record(r StatsRecord) { f(r) }

// formatNormal builds the record for a normal (non-exception) completion,
// including distance only when the outcome is NoError.
func formatNormal(routerName string, checkpoints Checkpoints, direction Direction, code ResultCode, distanceMeters, elapsedSeconds float64) StatsRecord {
	startLon, startLat := checkpoints.Start.ToLonLat()
	finalLon, finalLat := checkpoints.Finish.ToLonLat()
	r := StatsRecord{
		RouterName:      routerName,
		StartLon:        startLon,
		StartLat:        startLat,
		StartDirectionX: round5(direction.X),
		StartDirectionY: round5(direction.Y),
		FinalLon:        finalLon,
		FinalLat:        finalLat,
		Result:          code,
		ElapsedSeconds:  elapsedSeconds,
	}
	if code == NoError {
		r.Distance = distanceMeters
		r.HasDistance = true
	}
	return r
}

// formatException builds the record for a caught engine failure.
func formatException(routerName string, checkpoints Checkpoints, direction Direction, message string) StatsRecord {
	startLon, startLat := checkpoints.Start.ToLonLat()
	finalLon, finalLat := checkpoints.Finish.ToLonLat()
	return StatsRecord{
		RouterName:      routerName,
		StartLon:        startLon,
		StartLat:        startLat,
		StartDirectionX: round5(direction.X),
		StartDirectionY: round5(direction.Y),
		FinalLon:        finalLon,
		FinalLat:        finalLat,
		Exception:       message,
		HasException:    true,
	}
}

// emit dispatches rec to sink if installed, and always logs the result
// code. Called on the UI thread: the worker never
// calls StatsSink.Record directly, only through a scheduled UI task.
func emit(log *slog.Logger, sink StatsSink, rec StatsRecord) {
	logResult(log, rec)
	if sink == nil {
		return
	}
	sink.Record(rec)
}

// logResult maps each result code to a fixed warning-or-info log line.
func logResult(log *slog.Logger, rec StatsRecord) {
	if rec.HasException {
		log.Warn("bearing: route computation raised an exception", "router", rec.RouterName, "exception", rec.Exception)
		return
	}
	switch rec.Result {
	case NoError:
		log.Info("bearing: route computed", "router", rec.RouterName, "distance_m", rec.Distance, "elapsed_s", rec.ElapsedSeconds)
	case Cancelled:
		log.Info("bearing: route computation cancelled", "router", rec.RouterName, "elapsed_s", rec.ElapsedSeconds)
	case NeedMoreMaps:
		log.Info("bearing: route needs more maps", "router", rec.RouterName, "elapsed_s", rec.ElapsedSeconds)
	case RouteNotFound, RouteFileNotExist, StartPointNotFound, EndPointNotFound, IntermediatePointNotFound,
		PointsInDifferentMWM, NoCurrentPosition, InconsistentMWMandRoute, FileTooOld,
		TransitRouteNotFoundNoNetwork, TransitRouteNotFoundTooLongPedestrian, RouteNotFoundRedressRouteError:
		log.Warn("bearing: route not delivered", "router", rec.RouterName, "result", rec.Result.String(), "elapsed_s", rec.ElapsedSeconds)
	case InternalError:
		log.Warn("bearing: internal error computing route", "router", rec.RouterName, "elapsed_s", rec.ElapsedSeconds)
	default:
		log.Warn("bearing: unrecognized result code", "router", rec.RouterName, "result", int(rec.Result))
	}
}
