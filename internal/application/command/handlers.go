package command

import (
	"appdeck/internal/application/command/control_app"
	"appdeck/internal/application/command/delete_app"
	"appdeck/internal/application/command/import_app"
	"appdeck/internal/application/command/import_descriptor"
	"appdeck/internal/application/command/put_descriptor"
	"appdeck/internal/application/command/run_pipeline"
	"appdeck/internal/application/command/set_auto_update"
	"appdeck/internal/domain/service/app"
	"appdeck/pkg/cqrs"
	"appdeck/pkg/log"
)

// RegisterCommandHandlers registers every command handler on b. The run
// pipeline handler is built by the caller, which waits on its background runs.
func RegisterCommandHandlers(b cqrs.CommandBus, service app.ServiceInterface, runPipeline *run_pipeline.RunPipelineHandler, forget delete_app.Forgetter) error {
	if err := b.Register(import_app.NewImportAppHandler(service)); err != nil {
		return log.Errorf("failed to register import app handler: %v", err)
	}

	if err := b.Register(import_descriptor.NewImportDescriptorHandler(service)); err != nil {
		return log.Errorf("failed to register import descriptor handler: %v", err)
	}

	if err := b.Register(runPipeline); err != nil {
		return log.Errorf("failed to register run pipeline handler: %v", err)
	}

	if err := b.Register(put_descriptor.NewPutDescriptorHandler(service)); err != nil {
		return log.Errorf("failed to register put descriptor handler: %v", err)
	}

	if err := b.Register(control_app.NewControlAppHandler(service)); err != nil {
		return log.Errorf("failed to register control app handler: %v", err)
	}

	if err := b.Register(set_auto_update.NewSetAutoUpdateHandler(service)); err != nil {
		return log.Errorf("failed to register set auto update handler: %v", err)
	}

	if err := b.Register(delete_app.NewDeleteAppHandler(service, forget)); err != nil {
		return log.Errorf("failed to register delete app handler: %v", err)
	}

	return nil
}
