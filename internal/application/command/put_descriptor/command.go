package put_descriptor

// PutDescriptorCommand replaces the working descriptor of an application.
type PutDescriptorCommand struct {
	AppID      string `validate:"required"`
	Descriptor string `validate:"required"`
}

// Name returns the name of the command
func (c PutDescriptorCommand) Name() string {
	return "PutDescriptor"
}
