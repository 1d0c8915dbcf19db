package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"appdeck/internal/application/config"
	"appdeck/internal/domain/model"
	"appdeck/internal/domain/repository"
	"appdeck/internal/domain/service/lock"
	"appdeck/internal/domain/service/retry"
	"appdeck/internal/domain/service/status"
	"appdeck/pkg/log"
	"appdeck/pkg/metrics"
)

// Dependencies are the collaborators a Pipeline drives.
type Dependencies struct {
	Store   repository.AppStore
	Status  *status.Machine
	Locks   *lock.Keyed
	Fetcher repository.SourceFetcher
	Builder repository.ImageBuilder
	Backend repository.DeploymentBackend
	Hooks   repository.HookRunner
	Tokens  repository.TokenIssuer
	Events  repository.EventSink
}

// Pipeline runs the apply/update sequence for one application at a time per id.
// Admission across applications is the caller's concern.
type Pipeline struct {
	config *config.Config
	deps   Dependencies
	policy retry.Policy

	sleep func(ctx context.Context, d time.Duration) error
	chown func(path string, uid, gid int) error
	now   func() time.Time
}

// NewPipeline creates a pipeline. Locks and Status are created when not supplied.
func NewPipeline(cfg *config.Config, deps Dependencies) *Pipeline {
	if deps.Locks == nil {
		deps.Locks = lock.NewKeyed()
	}
	if deps.Status == nil {
		deps.Status = status.NewMachine(deps.Store, deps.Events)
	}
	return &Pipeline{
		config: cfg,
		deps:   deps,
		policy: retry.Policy{MaxRetries: 1, Factor: cfg.ApplyTimeoutFactor},
		sleep:  sleepContext,
		chown:  os.Chown,
		now:    time.Now,
	}
}

// Locks returns the per-application lock shared with other mutating operations.
func (p *Pipeline) Locks() *lock.Keyed {
	return p.deps.Locks
}

// Reservation is the exclusive right to run the pipeline for one application.
type Reservation struct {
	AppID   string
	RunID   string
	release func()
}

// Release gives up the reservation. It is safe to call more than once.
func (r *Reservation) Release() {
	if r != nil && r.release != nil {
		r.release()
	}
}

// Reserve takes the application's lock for runID. A second reservation for
// the same id fails with model.ErrAlreadyInProgress until the first is released.
func (p *Pipeline) Reserve(appID, runID string) (*Reservation, error) {
	release, ok, holder := p.deps.Locks.TryLock(appID, runID)
	if !ok {
		metrics.ObserveRun(metrics.OutcomeRejected)
		return nil, fmt.Errorf("%w: application %s is held by %s", model.ErrAlreadyInProgress, appID, holder)
	}
	return &Reservation{AppID: appID, RunID: runID, release: release}, nil
}

// Run reserves the application and executes the pipeline synchronously.
func (p *Pipeline) Run(ctx context.Context, appID, runID string, opts model.RunOptions) (model.RunResult, error) {
	res, err := p.Reserve(appID, runID)
	if err != nil {
		return model.RunResult{Success: false, Message: err.Error(), RunID: runID}, err
	}
	return p.Execute(ctx, res, opts)
}

// Execute runs every stage for a reserved application and releases the
// reservation on return. The record is never left in a transient status:
// a fatal stage error moves it to Error, and so does a panic.
func (p *Pipeline) Execute(ctx context.Context, res *Reservation, opts model.RunOptions) (result model.RunResult, err error) {
	defer res.Release()
	defer metrics.TrackInFlight()()

	result.RunID = res.RunID
	r := newRun(p, res, opts)

	app, err := p.deps.Store.Get(ctx, res.AppID)
	if err != nil {
		metrics.ObserveRun(metrics.OutcomeError)
		result.Message = err.Error()
		return result, err
	}
	r.app = app

	first := model.StatusInstalling
	if app.SourceKind == model.SourceControlled {
		first = model.StatusBuilding
	}
	if err := model.CheckTransition(app.Status, first); err != nil {
		metrics.ObserveRun(metrics.OutcomeRejected)
		result.Message = fmt.Sprintf("cannot run pipeline for %s: %v", app.ID, err)
		return result, err
	}

	// Final writes must land even when the caller's context is gone.
	final := context.WithoutCancel(ctx)
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pipeline panicked: %v", rec)
			log.Error("Pipeline panicked", "app_id", app.ID, "run_id", res.RunID, "panic", rec)
		}
		if err != nil {
			p.fail(final, r, err)
			result.Success = false
			result.Running = false
			result.Message = err.Error()
		}
		if _, serr := p.deps.Status.Settle(final, app.ID, "pipeline ended without a terminal status"); serr != nil {
			log.Warn("Failed to settle application status", "app_id", app.ID, "error", serr)
		}
	}()

	r.info("", fmt.Sprintf("Pipeline started for %s", app.Identity()))
	if _, err = p.deps.Status.Transition(ctx, app.ID, first, "", nil); err != nil {
		return result, err
	}

	if err = p.stages(ctx, r); err != nil {
		return result, err
	}

	result.Success = true
	result.Running = r.running
	result.Message = r.message
	if r.running {
		metrics.ObserveRun(metrics.OutcomeSuccess)
	} else {
		metrics.ObserveRun(metrics.OutcomeNotRunning)
	}
	r.info(model.StageDone, "Pipeline finished")
	return result, nil
}

// fail records a fatal error on the record and the event stream.
func (p *Pipeline) fail(ctx context.Context, r *run, err error) {
	stage, _ := model.StageOf(err)
	metrics.ObserveRun(metrics.OutcomeError)
	if stage != "" {
		metrics.ObserveStageFailure(string(stage))
	}
	r.failed(stage, err.Error())

	app, gerr := p.deps.Store.Get(ctx, r.app.ID)
	if gerr != nil {
		log.Warn("Failed to load application after pipeline failure", "app_id", r.app.ID, "error", gerr)
		return
	}
	if app.Status == model.StatusError {
		return
	}
	if !model.CanTransition(app.Status, model.StatusError) {
		return
	}
	if _, ferr := p.deps.Status.Fail(ctx, r.app.ID, err.Error()); ferr != nil {
		log.Warn("Failed to record pipeline failure", "app_id", r.app.ID, "error", ferr)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// stageErr wraps err with the stage it came from, keeping an existing stage.
func stageErr(stage model.Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *model.StageError
	if errors.As(err, &se) {
		return err
	}
	return &model.StageError{Stage: stage, Err: err}
}
