package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"appdeck/internal/domain/model"
	"appdeck/internal/domain/repository"
	"appdeck/pkg/backoff"
	"appdeck/pkg/log"

	"github.com/dgraph-io/badger/v4"
)

const (
	appPrefix        = "app/"
	maxUpdateRetries = 32
)

// AppStore stores one JSON document per application under "app/<id>".
// Every write is a single transaction on one key, so updates to different
// records never conflict with each other.
type AppStore struct {
	db *DB
}

var _ repository.AppStore = (*AppStore)(nil)

// NewAppStore creates an AppStore over db.
func NewAppStore(db *DB) *AppStore {
	return &AppStore{db: db}
}

func appKey(id string) []byte {
	return []byte(appPrefix + id)
}

func (s *AppStore) Create(ctx context.Context, app *model.App) error {
	if app.ID == "" {
		return errors.New("application id is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("failed to encode application %s: %w", app.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(appKey(app.ID)); err == nil {
			return fmt.Errorf("application %s already exists", app.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(appKey(app.ID), data)
	})
}

func (s *AppStore) Get(ctx context.Context, id string) (*model.App, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var app *model.App
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		app, err = read(txn, id)
		return err
	})
	return app, err
}

func (s *AppStore) List(ctx context.Context) ([]*model.App, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var apps []*model.App
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(appPrefix), PrefetchValues: true, PrefetchSize: 64})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var app model.App
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &app)
			}); err != nil {
				return fmt.Errorf("failed to decode %s: %w", it.Item().Key(), err)
			}
			apps = append(apps, &app)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(apps, func(i, j int) bool {
		if !apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].CreatedAt.Before(apps[j].CreatedAt)
		}
		return apps[i].ID < apps[j].ID
	})
	return apps, nil
}

// Update retries fn on transaction conflicts; fn sees the latest committed record each time.
func (s *AppStore) Update(ctx context.Context, id string, fn func(app *model.App) error) (*model.App, error) {
	var updated *model.App
	delay := backoff.New(time.Millisecond, 50*time.Millisecond)
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			app, err := read(txn, id)
			if err != nil {
				return err
			}
			if err := fn(app); err != nil {
				return err
			}
			app.ID = id
			data, err := json.Marshal(app)
			if err != nil {
				return fmt.Errorf("failed to encode application %s: %w", id, err)
			}
			updated = app
			return txn.Set(appKey(id), data)
		})
		if errors.Is(err, badger.ErrConflict) {
			log.Debug("Application update conflicted, retrying", "app_id", id, "attempt", attempt+1)
			time.Sleep(delay.Next())
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("failed to update application %s: %w", id, badger.ErrConflict)
}

func (s *AppStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(appKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", model.ErrNotFound, id)
			}
			return err
		}
		return txn.Delete(appKey(id))
	})
}

func read(txn *badger.Txn, id string) (*model.App, error) {
	item, err := txn.Get(appKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var app model.App
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &app)
	}); err != nil {
		return nil, fmt.Errorf("failed to decode application %s: %w", id, err)
	}
	return &app, nil
}
