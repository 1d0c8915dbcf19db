package set_auto_update

// SetAutoUpdateCommand configures update checks for a source-controlled application.
type SetAutoUpdateCommand struct {
	AppID           string `validate:"required"`
	Enabled         bool
	IntervalMinutes int `validate:"omitempty,gte=5"`
}

// Name returns the name of the command
func (c SetAutoUpdateCommand) Name() string {
	return "SetAutoUpdate"
}
