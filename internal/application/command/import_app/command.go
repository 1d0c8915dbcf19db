package import_app

// ImportAppCommand registers a source-controlled application. AppID is
// generated by the caller so it can look the record up afterwards.
type ImportAppCommand struct {
	AppID    string `validate:"required"`
	Location string `validate:"required"`
}

// Name returns the name of the command
func (c ImportAppCommand) Name() string {
	return "ImportApp"
}
