// Package telemetry routes the reports of every component through a single
// interface so tests can assert on them and production can log and export
// them.
package telemetry

// API receives reports from components.
//
// Ids name the component that reported, not the call site: any listing item
// that fails to parse is "parse.item" and the url goes into params. Ids are
// lowercase, dots separate a component from its parts and dashes join words.
type API interface {
	// ReportBroken is for failures that need fixing.
	ReportBroken(id string, params ...any)
	// ReportWarning is for things that were skipped or worked around.
	ReportWarning(id string, params ...any)
	// ReportDebug carries a free form message, values belong in the message.
	ReportDebug(msg string, params ...any)
	// ReportCount is a gauge, each call is a sample and not an increment.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace, scopes nest.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) id(id string) string {
	return s.namespace + ":" + id
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.id(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.id(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.namespace+": "+msg, params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.id(id), count)
}
