package get_descriptor

import (
	"context"

	"appdeck/internal/domain/service/app"
)

// GetDescriptorQueryHandler handles the GetDescriptorQuery
type GetDescriptorQueryHandler struct {
	service app.ServiceInterface
}

func (h *GetDescriptorQueryHandler) Handle(ctx context.Context, query GetDescriptorQuery) (string, error) {
	return h.service.GetDescriptor(ctx, query.AppID)
}

// NewGetDescriptorQueryHandler creates a new GetDescriptorQueryHandler
func NewGetDescriptorQueryHandler(service app.ServiceInterface) *GetDescriptorQueryHandler {
	return &GetDescriptorQueryHandler{service: service}
}
