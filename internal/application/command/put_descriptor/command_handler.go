package put_descriptor

import (
	"context"

	"appdeck/internal/domain/service/app"
	"appdeck/pkg/log"

	"github.com/go-playground/validator/v10"
)

// PutDescriptorHandler handles the PutDescriptorCommand
type PutDescriptorHandler struct {
	service  app.ServiceInterface
	validate *validator.Validate
}

// Handle executes the PutDescriptorCommand. The text must parse; nothing is
// applied until the next pipeline run.
func (h *PutDescriptorHandler) Handle(ctx context.Context, cmd PutDescriptorCommand) error {
	if err := h.validate.Struct(cmd); err != nil {
		return log.Errorf("invalid put descriptor command: %w", err)
	}
	if err := h.service.PutDescriptor(ctx, cmd.AppID, []byte(cmd.Descriptor)); err != nil {
		return log.Errorf("failed to store descriptor for app %s: %w", cmd.AppID, err)
	}
	log.Info("Working descriptor updated", "app_id", cmd.AppID)
	return nil
}

// NewPutDescriptorHandler creates a new PutDescriptorHandler
func NewPutDescriptorHandler(service app.ServiceInterface) *PutDescriptorHandler {
	return &PutDescriptorHandler{service: service, validate: validator.New()}
}
