package control_app

import (
	"context"

	"appdeck/internal/domain/service/app"
	log "appdeck/pkg/log"
)

// ControlAppHandler handles the ControlAppCommand
type ControlAppHandler struct {
	service app.ServiceInterface
}

// Handle executes the ControlAppCommand
func (h *ControlAppHandler) Handle(ctx context.Context, cmd ControlAppCommand) error {
	log.Debug("Processing control app request", "app_id", cmd.AppID, "action", cmd.Action)

	if cmd.AppID == "" {
		return log.Errorf("app ID is required for control app command")
	}

	var start bool
	switch cmd.Action {
	case AppActionStart:
		start = true
	case AppActionStop:
	default:
		return log.Errorf("unsupported action: %d", cmd.Action)
	}

	updated, err := h.service.SetRunning(ctx, cmd.AppID, start)
	if err != nil {
		return log.Errorf("command failed with error: %w", err)
	}

	log.Info("Successfully controlled app", "app_id", cmd.AppID, "running", updated.Running)
	return nil
}

// NewControlAppHandler creates a new ControlAppHandler
func NewControlAppHandler(service app.ServiceInterface) *ControlAppHandler {
	return &ControlAppHandler{service: service}
}
