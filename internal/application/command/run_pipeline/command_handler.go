package run_pipeline

import (
	"context"
	"sync"

	"appdeck/internal/domain/model"
	"appdeck/internal/domain/service/pipeline"
	"appdeck/pkg/log"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/semaphore"
)

// Runner is the part of the pipeline the handler drives.
type Runner interface {
	Reserve(appID, runID string) (*pipeline.Reservation, error)
	Execute(ctx context.Context, res *pipeline.Reservation, opts model.RunOptions) (model.RunResult, error)
}

// RunPipelineHandler handles the RunPipelineCommand. At most
// maxConcurrent runs execute at once; further reserved runs queue.
type RunPipelineHandler struct {
	ctx      context.Context
	runner   Runner
	slots    *semaphore.Weighted
	validate *validator.Validate
	wg       sync.WaitGroup
}

func (h *RunPipelineHandler) Handle(ctx context.Context, cmd RunPipelineCommand) error {
	if err := h.validate.Struct(cmd); err != nil {
		return log.Errorf("invalid run pipeline command: %w", err)
	}

	res, err := h.runner.Reserve(cmd.AppID, cmd.RunID)
	if err != nil {
		return err
	}

	if cmd.Wait {
		result, err := h.execute(ctx, res, cmd.Options)
		if cmd.Result != nil {
			*cmd.Result = result
		}
		return err
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if _, err := h.execute(h.ctx, res, cmd.Options); err != nil {
			log.Warn("Pipeline run failed", "app_id", cmd.AppID, "run_id", cmd.RunID, "error", err)
		}
	}()
	return nil
}

func (h *RunPipelineHandler) execute(ctx context.Context, res *pipeline.Reservation, opts model.RunOptions) (model.RunResult, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		res.Release()
		return model.RunResult{RunID: res.RunID, Message: err.Error()}, err
	}
	defer h.slots.Release(1)
	return h.runner.Execute(ctx, res, opts)
}

// Wait blocks until background runs have finished.
func (h *RunPipelineHandler) Wait() {
	h.wg.Wait()
}

// NewRunPipelineHandler creates a new RunPipelineHandler. Background runs
// use ctx, so cancelling it interrupts them.
func NewRunPipelineHandler(ctx context.Context, runner Runner, maxConcurrent int) *RunPipelineHandler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &RunPipelineHandler{
		ctx:      ctx,
		runner:   runner,
		slots:    semaphore.NewWeighted(int64(maxConcurrent)),
		validate: validator.New(),
	}
}
