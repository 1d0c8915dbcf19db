package get_apps

import (
	"context"
	"fmt"

	"appdeck/internal/domain/model"
	"appdeck/internal/domain/repository"
	log "appdeck/pkg/log"
)

// GetAppsQueryHandler handles the GetAppsQuery
type GetAppsQueryHandler struct {
	store repository.AppStore
}

// Handle executes the GetAppsQuery and returns the records in creation order.
func (h *GetAppsQueryHandler) Handle(ctx context.Context, _ GetAppsQuery) ([]*model.App, error) {
	apps, err := h.store.List(ctx)
	if err != nil {
		log.Error("Error listing apps", "error", err)
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	log.Debug("Retrieved apps", "apps_count", len(apps))
	return apps, nil
}

// NewGetAppsQueryHandler creates a new GetAppsQueryHandler
func NewGetAppsQueryHandler(store repository.AppStore) *GetAppsQueryHandler {
	return &GetAppsQueryHandler{store: store}
}
