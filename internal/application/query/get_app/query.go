package get_app

// GetAppQuery represents a query to retrieve an application
type GetAppQuery struct {
	AppID string
	// WithRuntime asks the deployment backend for container state.
	WithRuntime bool
}

// Name returns the name of the query
func (q GetAppQuery) Name() string {
	return "GetApp"
}
