package get_descriptor

// GetDescriptorQuery returns the descriptor text a user would edit.
type GetDescriptorQuery struct {
	AppID string
}

// Name returns the name of the query
func (q GetDescriptorQuery) Name() string {
	return "GetDescriptor"
}
