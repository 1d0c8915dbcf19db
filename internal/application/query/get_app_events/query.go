package get_app_events

// GetAppEventsQuery returns the retained events of an application.
type GetAppEventsQuery struct {
	AppID string
	// AfterSeq skips events with a sequence number at or below it.
	AfterSeq uint64
	// RunID restricts the result to one run when set.
	RunID string
}

// Name returns the name of the query
func (q GetAppEventsQuery) Name() string {
	return "GetAppEvents"
}
