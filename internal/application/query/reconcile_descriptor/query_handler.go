package reconcile_descriptor

import (
	"context"

	"appdeck/internal/domain/model"
	"appdeck/internal/domain/service/app"
	"appdeck/pkg/log"
)

// ReconcileDescriptorQueryHandler handles the ReconcileDescriptorQuery
type ReconcileDescriptorQueryHandler struct {
	service app.ServiceInterface
}

func (h *ReconcileDescriptorQueryHandler) Handle(ctx context.Context, query ReconcileDescriptorQuery) (model.DiffResult, error) {
	result, err := h.service.Reconcile(ctx, query.AppID, []byte(query.Descriptor))
	if err != nil {
		return model.DiffResult{}, err
	}
	log.Debug("Reconciled descriptor", "app_id", query.AppID,
		"structurally_changed", result.StructurallyChanged, "transferable", result.Transfer.Len())
	return result, nil
}

// NewReconcileDescriptorQueryHandler creates a new ReconcileDescriptorQueryHandler
func NewReconcileDescriptorQueryHandler(service app.ServiceInterface) *ReconcileDescriptorQueryHandler {
	return &ReconcileDescriptorQueryHandler{service: service}
}
