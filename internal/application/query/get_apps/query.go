package get_apps

// GetAppsQuery lists every application record.
type GetAppsQuery struct{}

// Name returns the name of the query
func (q GetAppsQuery) Name() string {
	return "GetApps"
}
