package get_app_events

import (
	"context"

	"appdeck/internal/domain/model"
)

// History provides retained events per application.
type History interface {
	History(appID string) []model.Event
}

// GetAppEventsQueryHandler handles the GetAppEventsQuery
type GetAppEventsQueryHandler struct {
	history History
}

func (h *GetAppEventsQueryHandler) Handle(_ context.Context, query GetAppEventsQuery) ([]model.Event, error) {
	events := make([]model.Event, 0)
	for _, e := range h.history.History(query.AppID) {
		if e.Seq <= query.AfterSeq {
			continue
		}
		if query.RunID != "" && e.RunID != query.RunID {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// NewGetAppEventsQueryHandler creates a new GetAppEventsQueryHandler
func NewGetAppEventsQueryHandler(history History) *GetAppEventsQueryHandler {
	return &GetAppEventsQueryHandler{history: history}
}
