package import_app

import (
	"context"

	"appdeck/internal/domain/service/app"
	"appdeck/pkg/log"

	"github.com/go-playground/validator/v10"
)

// ImportAppHandler handles the ImportAppCommand
type ImportAppHandler struct {
	service  app.ServiceInterface
	validate *validator.Validate
}

// Handle executes the ImportAppCommand. A failed import still leaves a
// record in Error; the returned error carries the cause.
func (h *ImportAppHandler) Handle(ctx context.Context, cmd ImportAppCommand) error {
	if err := h.validate.Struct(cmd); err != nil {
		return log.Errorf("invalid import app command: %w", err)
	}
	log.Debug("Processing import app request", "app_id", cmd.AppID)

	if _, err := h.service.Import(ctx, cmd.AppID, cmd.Location); err != nil {
		return log.Errorf("failed to import app %s: %w", cmd.AppID, err)
	}

	log.Info("Successfully imported app", "app_id", cmd.AppID)
	return nil
}

// NewImportAppHandler creates a new ImportAppHandler
func NewImportAppHandler(service app.ServiceInterface) *ImportAppHandler {
	return &ImportAppHandler{service: service, validate: validator.New()}
}
