package delete_app

// DeleteAppCommand represents a command to delete an application
type DeleteAppCommand struct {
	AppID string
	// PreserveData keeps the project's volumes and managed data directories.
	PreserveData bool
}

// Name returns the name of the command
func (c DeleteAppCommand) Name() string {
	return "DeleteApp"
}
