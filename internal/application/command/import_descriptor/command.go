package import_descriptor

// ImportDescriptorCommand registers an application from descriptor text
// alone. AppName is optional; the descriptor's own name is used otherwise.
type ImportDescriptorCommand struct {
	AppID      string `validate:"required"`
	AppName    string
	Descriptor string `validate:"required"`
}

// Name returns the name of the command
func (c ImportDescriptorCommand) Name() string {
	return "ImportDescriptor"
}
