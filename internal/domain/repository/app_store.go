package repository

import (
	"context"

	"appdeck/internal/domain/model"
)

// AppStore persists application records. Implementations must serialise
// updates per record; updates to different records must not block each other.
type AppStore interface {
	// Create stores a new record. The ID must be set and unused.
	Create(ctx context.Context, app *model.App) error

	// Get returns a copy of the record or model.ErrNotFound.
	Get(ctx context.Context, id string) (*model.App, error)

	// List returns every record ordered by creation time.
	List(ctx context.Context) ([]*model.App, error)

	// Update runs fn on the current record inside a single read-modify-write
	// and persists the result. fn may be invoked more than once on conflict,
	// so it must not have side effects. An error from fn aborts the update.
	Update(ctx context.Context, id string, fn func(app *model.App) error) (*model.App, error)

	// Delete removes the record. Deleting a missing record returns model.ErrNotFound.
	Delete(ctx context.Context, id string) error
}
