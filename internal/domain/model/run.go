package model

// RunOptions parameterises one pipeline run.
type RunOptions struct {
	// RunAsUser is the account lifecycle hooks execute as. Empty means the
	// current process user.
	RunAsUser string `json:"run_as_user"`
	// RunPreInstallHook is only honoured on a first install.
	RunPreInstallHook bool `json:"run_pre_install_hook"`
	// ForceDeleteExistingData tears the project down with its volumes and
	// wipes its managed data before installing again.
	ForceDeleteExistingData bool `json:"force_delete_existing_data"`
	// TransferEnvironment carries customised environment values from the
	// working descriptor into an updated one.
	TransferEnvironment bool `json:"transfer_environment"`
}

// DefaultRunOptions returns the options used when a caller supplies none.
func DefaultRunOptions() RunOptions {
	return RunOptions{TransferEnvironment: true}
}

// RunResult is the outcome of starting or completing a pipeline run.
type RunResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
	Running bool   `json:"running"`
}
