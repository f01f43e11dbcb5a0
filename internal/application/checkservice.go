// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/appdepo/internal/domain/model"
	"github.com/ericfisherdev/appdepo/internal/domain/port/driven"
)

// Check outcomes, also used as metric labels.
const (
	CheckOutcomeUpdated    = "updated"
	CheckOutcomeUnchanged  = "unchanged"
	CheckOutcomeNoReleases = "no_releases"
	CheckOutcomeFailed     = "failed"
)

// CheckSummary describes one pass over the tracked apps.
type CheckSummary struct {
	Checked  int           `json:"checked"`
	Updated  int           `json:"updated"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// refreshRequest represents a manual refresh trigger.
type refreshRequest struct {
	appID int64
	all   bool
	done  chan refreshResult
}

type refreshResult struct {
	summary CheckSummary
	err     error
}

// CheckService periodically compares each tracked app's latest known release
// against GitHub and stores what it finds.
type CheckService struct {
	store       driven.TrackedAppStore
	provider    *GitHubClientProvider
	metrics     driven.Metrics
	interval    time.Duration
	staleAfter  time.Duration
	concurrency int
	refreshCh   chan refreshRequest
	now         func() time.Time

	mu        sync.RWMutex
	lastCheck CheckSummary
	lastRunAt time.Time
}

// NewCheckService creates a new CheckService. metrics may be nil.
func NewCheckService(
	store driven.TrackedAppStore,
	provider *GitHubClientProvider,
	metrics driven.Metrics,
	interval time.Duration,
	staleAfter time.Duration,
	concurrency int,
) *CheckService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &CheckService{
		store:       store,
		provider:    provider,
		metrics:     metrics,
		interval:    interval,
		staleAfter:  staleAfter,
		concurrency: concurrency,
		refreshCh:   make(chan refreshRequest),
		now:         time.Now,
	}
}

// Start begins the check loop. It runs an immediate stale check, then checks
// stale apps on every interval tick. Manual refresh requests are served by the
// same goroutine so checks never overlap. Start blocks until ctx is canceled.
func (s *CheckService) Start(ctx context.Context) {
	if _, err := s.CheckStale(ctx); err != nil {
		slog.Error("initial check failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("check service stopped")
			return
		case <-ticker.C:
			if _, err := s.CheckStale(ctx); err != nil {
				slog.Error("check cycle failed", "error", err)
			}
		case req := <-s.refreshCh:
			req.done <- s.handleRefresh(ctx, req)
		}
	}
}

// RefreshApp checks a single app through the running loop, bypassing the
// stale threshold. It blocks until the check completes or ctx is canceled.
func (s *CheckService) RefreshApp(ctx context.Context, appID int64) error {
	res, err := s.submit(ctx, refreshRequest{appID: appID})
	if err != nil {
		return err
	}
	return res.err
}

// RefreshAll force-checks every app through the running loop.
func (s *CheckService) RefreshAll(ctx context.Context) (CheckSummary, error) {
	res, err := s.submit(ctx, refreshRequest{all: true})
	if err != nil {
		return CheckSummary{}, err
	}
	return res.summary, res.err
}

func (s *CheckService) submit(ctx context.Context, req refreshRequest) (refreshResult, error) {
	req.done = make(chan refreshResult, 1)

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return refreshResult{}, ctx.Err()
	}

	select {
	case res := <-req.done:
		return res, nil
	case <-ctx.Done():
		return refreshResult{}, ctx.Err()
	}
}

func (s *CheckService) handleRefresh(ctx context.Context, req refreshRequest) refreshResult {
	if req.all {
		summary, err := s.CheckAll(ctx)
		return refreshResult{summary: summary, err: err}
	}

	app, err := s.store.GetByID(ctx, req.appID)
	if err != nil {
		return refreshResult{err: err}
	}
	if app == nil {
		return refreshResult{err: fmt.Errorf("app %d: %w", req.appID, driven.ErrAppNotFound)}
	}

	_, err = s.CheckApp(ctx, *app)
	return refreshResult{err: err}
}

// LastSummary returns the summary of the most recent pass and when it ran.
func (s *CheckService) LastSummary() (CheckSummary, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCheck, s.lastRunAt
}

// CheckStale checks only apps whose last check is older than the stale threshold.
func (s *CheckService) CheckStale(ctx context.Context) (CheckSummary, error) {
	return s.checkWhere(ctx, func(app model.TrackedApp, now time.Time) bool {
		return app.IsStale(now, s.staleAfter)
	})
}

// CheckAll checks every tracked app regardless of when it was last checked.
func (s *CheckService) CheckAll(ctx context.Context) (CheckSummary, error) {
	return s.checkWhere(ctx, func(model.TrackedApp, time.Time) bool { return true })
}

func (s *CheckService) checkWhere(ctx context.Context, include func(model.TrackedApp, time.Time) bool) (CheckSummary, error) {
	start := time.Now()

	apps, err := s.store.ListAll(ctx)
	if err != nil {
		return CheckSummary{}, err
	}

	now := s.now()
	var (
		mu      sync.Mutex
		summary CheckSummary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, app := range apps {
		if !include(app, now) {
			summary.Skipped++
			continue
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			outcome, err := s.CheckApp(gctx, app)

			mu.Lock()
			defer mu.Unlock()
			summary.Checked++
			if outcome == CheckOutcomeUpdated {
				summary.Updated++
			}
			if err != nil {
				summary.Failed++
				slog.Error("app check failed", "repo", app.FullName(), "error", err)
			}
			// One app's failure never cancels the others.
			return nil
		})
	}

	_ = g.Wait()
	summary.Duration = time.Since(start).Round(time.Millisecond)

	s.mu.Lock()
	s.lastCheck = summary
	s.lastRunAt = now
	s.mu.Unlock()

	slog.Info("check cycle complete",
		"apps", len(apps),
		"checked", summary.Checked,
		"updated", summary.Updated,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration", summary.Duration,
	)

	return summary, ctx.Err()
}

// CheckApp fetches the latest release for app and persists it. The last
// checked timestamp always advances, even when the fetch fails:
//   - new tag or release ID: store the new release info
//   - same release: keep the stored info
//   - no releases (404): clear the stored info
//   - any other error: keep the stored info and return the error
func (s *CheckService) CheckApp(ctx context.Context, app model.TrackedApp) (string, error) {
	start := time.Now()
	latest, err := s.provider.Get().GetLatestRelease(ctx, app.Owner, app.RepoName)
	return s.record(ctx, app, latest, err, start)
}

// RecordLatest applies the CheckApp rule to a latest-release lookup the
// caller already made, so the release is not fetched twice.
func (s *CheckService) RecordLatest(ctx context.Context, app model.TrackedApp, latest *model.Release, fetchErr error) (string, error) {
	return s.record(ctx, app, latest, fetchErr, time.Now())
}

func (s *CheckService) record(ctx context.Context, app model.TrackedApp, latest *model.Release, fetchErr error, start time.Time) (string, error) {
	outcome, err := s.apply(ctx, app, latest, fetchErr)
	if s.metrics != nil {
		s.metrics.ObserveCheck(outcome, time.Since(start))
	}
	return outcome, err
}

func (s *CheckService) apply(ctx context.Context, app model.TrackedApp, latest *model.Release, fetchErr error) (string, error) {
	checkedAt := s.now().UTC()

	switch {
	case fetchErr == nil && releaseChanged(app, *latest):
		tag := latest.TagName
		id := latest.ID
		var published *time.Time
		if !latest.PublishedAt.IsZero() {
			p := latest.PublishedAt
			published = &p
		}
		if err := s.store.UpdateLatestRelease(ctx, app.ID, &tag, &id, published, checkedAt); err != nil {
			return CheckOutcomeFailed, err
		}
		slog.Info("latest release updated", "repo", app.FullName(), "tag", tag)
		return CheckOutcomeUpdated, nil

	case fetchErr == nil:
		if err := s.touch(ctx, app, checkedAt); err != nil {
			return CheckOutcomeFailed, err
		}
		return CheckOutcomeUnchanged, nil

	case errors.Is(fetchErr, driven.ErrNoReleases):
		if err := s.store.UpdateLatestRelease(ctx, app.ID, nil, nil, nil, checkedAt); err != nil {
			return CheckOutcomeFailed, err
		}
		slog.Warn("no releases found, cleared latest release info", "repo", app.FullName())
		return CheckOutcomeNoReleases, nil

	default:
		if err := s.touch(ctx, app, checkedAt); err != nil {
			slog.Error("failed to update check timestamp", "repo", app.FullName(), "error", err)
		}
		return CheckOutcomeFailed, fetchErr
	}
}

// touch advances the check timestamp while keeping the stored release info.
func (s *CheckService) touch(ctx context.Context, app model.TrackedApp, checkedAt time.Time) error {
	return s.store.UpdateLatestRelease(ctx, app.ID,
		app.LatestKnownReleaseTag,
		app.LatestReleaseID,
		app.LatestReleasePublishedAt,
		checkedAt,
	)
}

func releaseChanged(app model.TrackedApp, latest model.Release) bool {
	if app.LatestKnownReleaseTag == nil || *app.LatestKnownReleaseTag != latest.TagName {
		return true
	}
	return app.LatestReleaseID == nil || *app.LatestReleaseID != latest.ID
}
