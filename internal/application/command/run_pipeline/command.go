package run_pipeline

import "appdeck/internal/domain/model"

// RunPipelineCommand starts a deployment run. The application is reserved
// before Handle returns, so a concurrent run is rejected synchronously.
// With Wait unset the run continues in the background and its progress is
// published as events tagged with RunID.
type RunPipelineCommand struct {
	AppID   string `validate:"required"`
	RunID   string `validate:"required"`
	Options model.RunOptions
	Wait    bool
	// Result receives the outcome when Wait is set. May be nil.
	Result *model.RunResult
}

// Name returns the name of the command
func (c RunPipelineCommand) Name() string {
	return "RunPipeline"
}
