package telemetry

// API is the relay's single reporting surface. Components report through it
// instead of calling slog directly so tests can assert on what was reported.
//
// note: fault injection point
type API interface {
	// ReportBroken reports a component that broke in a way someone should fix.
	//
	// The `id` names the **component** that broke, not the line that broke,
	// formatted as `<struct or intf>.<method>` in lowercase with dashes, ex.
	// `client.create-post`. The package is added by ScopedAPI. Extra detail goes
	// into params or into the wrapped error, never into the id.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something that was skipped or degraded but did not
	// stop the run, ex. a sign without percentages. Ids follow ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug reports progress that is only interesting while debugging.
	ReportDebug(msg string, params ...any)

	// ReportCount reports the current value of a counter. Values are samples
	// over time, not deltas.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id and message with a namespace, usually the
// package name.
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
