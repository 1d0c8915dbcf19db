package pipeline

import (
	"log/slog"

	"appdeck/internal/application/config"
	"appdeck/internal/domain/model"
	"appdeck/internal/domain/repository"
	"appdeck/pkg/log"
)

// run is the mutable state of one pipeline execution.
type run struct {
	p      *Pipeline
	id     string
	opts   model.RunOptions
	logger *slog.Logger

	app *model.App
	// installed is the record's flag when the run started; it alone gates
	// the pre-install hook.
	installed bool

	sourceDir string
	revision  string
	images    map[string]string
	imageRef  string

	raw     []byte
	working []byte
	final   []byte
	paths   []string

	name    string
	token   string
	running bool
	message string
}

func newRun(p *Pipeline, res *Reservation, opts model.RunOptions) *run {
	return &run{
		p:      p,
		id:     res.RunID,
		opts:   opts,
		logger: log.With("app_id", res.AppID, "run_id", res.RunID),
		images: map[string]string{},
	}
}

func (r *run) project() repository.Project {
	return repository.Project{
		Name:    r.name,
		Dir:     r.p.config.GetAppDir(r.name),
		EnvFile: config.EnvFile,
	}
}

func (r *run) info(stage model.Stage, msg string) {
	r.logger.Info(msg, "stage", stage)
	r.emit(model.EventInfo, stage, msg)
}

func (r *run) warn(stage model.Stage, msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	r.logger.Warn(msg, "stage", stage)
	r.emit(model.EventWarn, stage, msg)
}

func (r *run) failed(stage model.Stage, msg string) {
	r.logger.Error(msg, "stage", stage)
	r.emit(model.EventError, stage, msg)
}

func (r *run) emit(level model.EventLevel, stage model.Stage, msg string) {
	if r.p.deps.Events == nil || r.app == nil {
		return
	}
	r.p.deps.Events.Emit(model.Event{
		AppID:   r.app.ID,
		RunID:   r.id,
		Time:    r.p.now(),
		Level:   level,
		Stage:   stage,
		Message: msg,
	})
}
