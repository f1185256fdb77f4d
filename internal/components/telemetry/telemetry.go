// Package telemetry is how jobs and sources report what happened to them. Components take an
// API instead of logging directly so tests can swap in a Recorder and assert on reports.
package telemetry

// API reports on the health of a component.
//
// Report ids name the component and the operation that reported, lowercase, with underscores
// inside words and dashes between a component and its method: "client.person",
// "pool.member-timeout". Wrap an API in a ScopedAPI to prefix every id with a package name
// instead of repeating it in each id.
//
// Params are free form. An error param is shown as the error, slog.Attr params keep their
// key, anything else is shown as a value.
type API interface {
	// ReportBroken reports a failure that needs fixing: a request that failed, a sheet write
	// that was rejected, a page that no longer parses.
	ReportBroken(id string, params ...any)
	// ReportWarning reports something worth a look that does not stop the job, like a cast
	// member missing from a credits page or a site that started throttling.
	ReportWarning(id string, params ...any)
	// ReportDebug is only shown with --verbose.
	ReportDebug(msg string, params ...any)
	// ReportCount reports the current value of a counter (rows processed, queue length).
	// Values are samples over time, they are not summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id (and debug message) with "<namespace>: ".
type ScopedAPI struct {
	prefix string
	inner  API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{prefix: namespace + ": ", inner: inner}
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.prefix+id, params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.prefix+id, params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.prefix+msg, params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.prefix+id, count)
}
