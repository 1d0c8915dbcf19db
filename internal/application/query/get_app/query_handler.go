package get_app

import (
	"context"
	"fmt"

	"appdeck/internal/domain/model"
	"appdeck/internal/domain/repository"
	"appdeck/pkg/log"
)

// GetAppQueryHandler handles the GetAppQuery
type GetAppQueryHandler struct {
	store   repository.AppStore
	backend repository.DeploymentBackend
}

// Handle executes the GetAppQuery and returns the result. Runtime state is
// best effort: a backend error is logged and the record returned without it.
func (h *GetAppQueryHandler) Handle(ctx context.Context, query GetAppQuery) (*model.AppDetails, error) {
	log.Debug("Processing get app request", "app_id", query.AppID)

	app, err := h.store.Get(ctx, query.AppID)
	if err != nil {
		return nil, fmt.Errorf("error loading app %s: %w", query.AppID, err)
	}

	details := &model.AppDetails{App: app, UpdateAvailable: app.UpdateAvailable()}
	if query.WithRuntime && app.Installed && h.backend != nil {
		runtime, err := h.backend.Status(ctx, app.Identity())
		if err != nil {
			log.Warn("Failed to get runtime status", "app_id", app.ID, "error", err)
		} else {
			details.Runtime = &runtime
		}
	}
	return details, nil
}

// NewGetAppQueryHandler creates a new GetAppQueryHandler. backend may be nil.
func NewGetAppQueryHandler(store repository.AppStore, backend repository.DeploymentBackend) *GetAppQueryHandler {
	return &GetAppQueryHandler{store: store, backend: backend}
}
