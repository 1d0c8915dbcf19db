package delete_app

import (
	"context"

	"appdeck/internal/domain/service/app"
	log "appdeck/pkg/log"
)

// Forgetter drops retained state of a removed application, such as its
// event history.
type Forgetter interface {
	Forget(appID string)
}

// DeleteAppHandler handles the DeleteAppCommand
type DeleteAppHandler struct {
	service app.ServiceInterface
	forget  Forgetter
}

// Handle executes the DeleteAppCommand
func (h *DeleteAppHandler) Handle(ctx context.Context, cmd DeleteAppCommand) error {
	appID := cmd.AppID
	log.Debug("Processing delete app request", "app_id", appID, "preserve_data", cmd.PreserveData)

	if appID == "" {
		return log.Errorf("app ID is required for delete app command")
	}

	if err := h.service.Remove(ctx, appID, cmd.PreserveData); err != nil {
		return log.Errorf("failed to delete app %s: %w", appID, err)
	}
	if h.forget != nil {
		h.forget.Forget(appID)
	}

	log.Info("Successfully deleted app", "app_id", appID)
	return nil
}

// NewDeleteAppHandler creates a new DeleteAppHandler. forget may be nil.
func NewDeleteAppHandler(service app.ServiceInterface, forget Forgetter) *DeleteAppHandler {
	return &DeleteAppHandler{service: service, forget: forget}
}
