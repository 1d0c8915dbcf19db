package set_auto_update

import (
	"context"

	"appdeck/internal/domain/service/app"
	"appdeck/pkg/log"

	"github.com/go-playground/validator/v10"
)

// SetAutoUpdateHandler handles the SetAutoUpdateCommand
type SetAutoUpdateHandler struct {
	service  app.ServiceInterface
	validate *validator.Validate
}

func (h *SetAutoUpdateHandler) Handle(ctx context.Context, cmd SetAutoUpdateCommand) error {
	if err := h.validate.Struct(cmd); err != nil {
		return log.Errorf("invalid set auto update command: %w", err)
	}
	if _, err := h.service.SetAutoUpdate(ctx, cmd.AppID, cmd.Enabled, cmd.IntervalMinutes); err != nil {
		return log.Errorf("failed to set auto update for app %s: %w", cmd.AppID, err)
	}
	return nil
}

// NewSetAutoUpdateHandler creates a new SetAutoUpdateHandler
func NewSetAutoUpdateHandler(service app.ServiceInterface) *SetAutoUpdateHandler {
	return &SetAutoUpdateHandler{service: service, validate: validator.New()}
}
