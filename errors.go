package bearing

import "errors"

var (
	// ErrNoEngine is logged (never delivered to a callback) when the worker
	// drains a request but no engine has been installed via SetEngine. This
	// is a configuration error, not a user-visible failure.
	ErrNoEngine = errors.New("bearing: no engine installed")

	// ErrNoDelegate is logged when the worker drains a request whose
	// delegate proxy is missing. Like ErrNoEngine this never reaches a
	// callback; it indicates a programming error in the caller.
	ErrNoDelegate = errors.New("bearing: no delegate for pending request")

	// ErrDispatcherClosed is returned by public Dispatcher methods called
	// after Destroy has completed.
	ErrDispatcherClosed = errors.New("bearing: dispatcher is destroyed")
)

// rootException marks an error raised by the Engine as belonging to the
// "root exception" family: the worker catches exactly these, converts them
// to InternalError, and reports them via on-ready. Any other panic from the
// engine propagates and aborts the worker goroutine: unanticipated
// failure modes should crash rather than silently corrupt state.
type rootException struct {
	msg string
}

func (e *rootException) Error() string { return e.msg }

// NewEngineError wraps msg as a root-exception-family error: routing
// engines return this from CalculateRoute to signal a caught failure that
// the worker should convert to InternalError rather than letting abort the
// process.
func NewEngineError(msg string) error {
	return &rootException{msg: msg}
}

func asRootException(err error) (*rootException, bool) {
	re, ok := err.(*rootException)
	return re, ok
}
