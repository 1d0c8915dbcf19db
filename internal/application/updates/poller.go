// Package updates checks source-controlled applications for new upstream
// revisions and starts a pipeline run when auto update is on.
package updates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"appdeck/internal/application/config"
	"appdeck/internal/domain/model"
	"appdeck/internal/domain/repository"
	"appdeck/pkg/backoff"
	"appdeck/pkg/log"
	"appdeck/pkg/metrics"

	"golang.org/x/time/rate"
)

// Trigger starts a pipeline run for an application.
type Trigger func(ctx context.Context, appID string) error

// Poller periodically compares each record's current version with the
// remote head. It never touches descriptors.
type Poller struct {
	config   *config.Config
	store    repository.AppStore
	fetcher  repository.SourceFetcher
	trigger  Trigger
	interval time.Duration
	timeout  time.Duration
	limiter  *rate.Limiter
	backoff  *backoff.Backoff
	now      func() time.Time
}

func NewPoller(cfg *config.Config, store repository.AppStore, fetcher repository.SourceFetcher, trigger Trigger) *Poller {
	return &Poller{
		config:   cfg,
		store:    store,
		fetcher:  fetcher,
		trigger:  trigger,
		interval: cfg.UpdateCheckInterval.Std(),
		timeout:  cfg.FetchTimeout.Std(),
		// Remote checks are spread out so many due records do not hit the
		// same git host at once.
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
		backoff: backoff.New(cfg.UpdateCheckInterval.Std(), 30*time.Minute),
		now:     time.Now,
	}
}

// Run checks due records every interval until ctx is cancelled. Listing
// failures back off exponentially.
func (p *Poller) Run(ctx context.Context) error {
	log.Info("Update poller started", "interval", p.interval)
	for {
		delay := p.interval
		if err := p.CheckAll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			delay = p.backoff.Next()
			log.Warn("Update check round failed", "error", err, "retry_in", delay)
		} else {
			p.backoff.Reset()
		}

		select {
		case <-ctx.Done():
			log.Info("Update poller stopped")
			return nil
		case <-time.After(delay):
		}
	}
}

// CheckAll checks every record whose interval has elapsed. Per-record
// failures are logged; only a listing failure is returned.
func (p *Poller) CheckAll(ctx context.Context) error {
	apps, err := p.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list apps: %w", err)
	}
	now := p.now()
	for _, app := range apps {
		if !app.UpdateCheckDue(now) {
			continue
		}
		if _, err := p.Check(ctx, app.ID); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("Update check failed", "app_id", app.ID, "error", err)
		}
	}
	return nil
}

// Check refreshes the latest version of one record and reports whether an
// update is available. With auto update on, an available update on an
// installed, idle record starts a run.
func (p *Poller) Check(ctx context.Context, appID string) (bool, error) {
	app, err := p.store.Get(ctx, appID)
	if err != nil {
		return false, err
	}
	if app.SourceKind != model.SourceControlled {
		return false, fmt.Errorf("application %s has no source to check", appID)
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return false, err
	}

	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	revision, err := p.fetcher.RemoteRevision(cctx, app.SourceLocation)
	cancel()
	checkedAt := p.now()
	if err != nil {
		metrics.ObserveUpdateCheck("error")
		if _, uerr := p.store.Update(ctx, appID, func(a *model.App) error {
			a.LastCheckedAt = checkedAt
			return nil
		}); uerr != nil {
			log.Warn("Failed to record update check", "app_id", appID, "error", uerr)
		}
		return false, fmt.Errorf("%w: %v", model.ErrFetch, err)
	}

	app, err = p.store.Update(ctx, appID, func(a *model.App) error {
		a.LastCheckedAt = checkedAt
		a.LatestVersion = revision
		return nil
	})
	if err != nil {
		return false, err
	}

	if !app.UpdateAvailable() {
		metrics.ObserveUpdateCheck("current")
		return false, nil
	}
	metrics.ObserveUpdateCheck("available")
	log.Info("Update available", "app_id", appID, "current", app.CurrentVersion, "latest", app.LatestVersion)

	if !p.config.IsFeatureEnabled(config.FeatureAutoUpdate) {
		return true, nil
	}
	if app.AutoUpdate && app.Installed && !app.Status.Transient() && p.trigger != nil {
		if err := p.trigger(ctx, appID); err != nil {
			if errors.Is(err, model.ErrAlreadyInProgress) {
				log.Debug("Auto update deferred, operation in progress", "app_id", appID)
				return true, nil
			}
			return true, fmt.Errorf("failed to start auto update: %w", err)
		}
		log.Info("Auto update started", "app_id", appID)
	}
	return true, nil
}
