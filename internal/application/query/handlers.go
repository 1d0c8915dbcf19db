package query

import (
	"appdeck/internal/application/query/get_app"
	"appdeck/internal/application/query/get_app_events"
	"appdeck/internal/application/query/get_apps"
	"appdeck/internal/application/query/get_descriptor"
	"appdeck/internal/application/query/reconcile_descriptor"
	"appdeck/internal/domain/repository"
	"appdeck/internal/domain/service/app"
	"appdeck/pkg/cqrs"
	"appdeck/pkg/log"
)

func RegisterQueryHandlers(b cqrs.QueryBus, store repository.AppStore, backend repository.DeploymentBackend, service app.ServiceInterface, history get_app_events.History) error {
	if err := b.Register(get_app.NewGetAppQueryHandler(store, backend)); err != nil {
		return log.Errorf("failed to register get app query handler: %v", err)
	}

	if err := b.Register(get_apps.NewGetAppsQueryHandler(store)); err != nil {
		return log.Errorf("failed to register get apps query handler: %v", err)
	}

	if err := b.Register(get_descriptor.NewGetDescriptorQueryHandler(service)); err != nil {
		return log.Errorf("failed to register get descriptor query handler: %v", err)
	}

	if err := b.Register(reconcile_descriptor.NewReconcileDescriptorQueryHandler(service)); err != nil {
		return log.Errorf("failed to register reconcile descriptor query handler: %v", err)
	}

	if err := b.Register(get_app_events.NewGetAppEventsQueryHandler(history)); err != nil {
		return log.Errorf("failed to register get app events query handler: %v", err)
	}

	return nil
}
