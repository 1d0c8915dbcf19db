package reconcile_descriptor

// ReconcileDescriptorQuery compares an incoming descriptor against the
// application's current one without changing anything.
type ReconcileDescriptorQuery struct {
	AppID      string
	Descriptor string
}

// Name returns the name of the query
func (q ReconcileDescriptorQuery) Name() string {
	return "ReconcileDescriptor"
}
