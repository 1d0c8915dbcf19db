package import_descriptor

import (
	"context"

	"appdeck/internal/domain/service/app"
	"appdeck/pkg/log"

	"github.com/go-playground/validator/v10"
)

// ImportDescriptorHandler handles the ImportDescriptorCommand
type ImportDescriptorHandler struct {
	service  app.ServiceInterface
	validate *validator.Validate
}

// Handle executes the ImportDescriptorCommand
func (h *ImportDescriptorHandler) Handle(ctx context.Context, cmd ImportDescriptorCommand) error {
	if err := h.validate.Struct(cmd); err != nil {
		return log.Errorf("invalid import descriptor command: %w", err)
	}

	if _, err := h.service.ImportDescriptor(ctx, cmd.AppID, cmd.AppName, []byte(cmd.Descriptor)); err != nil {
		return log.Errorf("failed to import descriptor for app %s: %w", cmd.AppID, err)
	}

	log.Info("Successfully imported descriptor", "app_id", cmd.AppID)
	return nil
}

// NewImportDescriptorHandler creates a new ImportDescriptorHandler
func NewImportDescriptorHandler(service app.ServiceInterface) *ImportDescriptorHandler {
	return &ImportDescriptorHandler{service: service, validate: validator.New()}
}
