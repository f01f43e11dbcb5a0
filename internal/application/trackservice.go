package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/appdepo/internal/domain/model"
	"github.com/ericfisherdev/appdepo/internal/domain/port/driven"
)

// Search tuning. Queries shorter than minSearchLength never hit the network.
const (
	minSearchLength = 3
	searchPerPage   = 30
)

// TrackService manages the set of tracked apps.
type TrackService struct {
	store    driven.TrackedAppStore
	provider *GitHubClientProvider
	featured driven.FeaturedSource
	logger   *slog.Logger
	now      func() time.Time
}

// NewTrackService creates a TrackService. featured may be nil, in which case
// Featured returns an empty list.
func NewTrackService(store driven.TrackedAppStore, provider *GitHubClientProvider, featured driven.FeaturedSource, logger *slog.Logger) *TrackService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrackService{
		store:    store,
		provider: provider,
		featured: featured,
		logger:   logger,
		now:      time.Now,
	}
}

// ParseOwnerRepo splits trimmed "owner/repo" input. Anything other than
// exactly two non-blank parts is rejected with ErrInvalidRepoInput.
func ParseOwnerRepo(input string) (owner, repo string, err error) {
	parts := strings.Split(strings.TrimSpace(input), "/")
	if len(parts) != 2 {
		return "", "", ErrInvalidRepoInput
	}

	owner = strings.TrimSpace(parts[0])
	repo = strings.TrimSpace(parts[1])
	if owner == "" || repo == "" {
		return "", "", ErrInvalidRepoInput
	}

	return owner, repo, nil
}

// AddByOwnerRepo resolves "owner/repo" on GitHub and starts tracking it.
func (s *TrackService) AddByOwnerRepo(ctx context.Context, input string) (*model.TrackedApp, error) {
	owner, repo, err := ParseOwnerRepo(input)
	if err != nil {
		return nil, err
	}

	remote, err := s.provider.Get().GetRepository(ctx, owner, repo)
	if err != nil {
		s.logger.Error("failed to fetch repository", "repo", owner+"/"+repo, "error", err)
		return nil, err
	}

	return s.AddFromRepo(ctx, *remote)
}

// AddFromRepo starts tracking a repository already resolved from GitHub,
// typically a search result. Returns driven.ErrAppAlreadyTracked on duplicates.
func (s *TrackService) AddFromRepo(ctx context.Context, remote model.RemoteRepo) (*model.TrackedApp, error) {
	existing, err := s.store.GetByOwnerRepo(ctx, remote.Owner, remote.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Warn("app already tracked", "repo", existing.FullName(), "id", existing.ID)
		return nil, fmt.Errorf("add %s: %w", existing.FullName(), driven.ErrAppAlreadyTracked)
	}

	app := model.TrackedApp{
		Owner:         remote.Owner,
		RepoName:      remote.Name,
		Description:   remote.Description,
		HTMLURL:       remote.HTMLURL,
		LastCheckedAt: s.now().UTC(),
	}

	id, err := s.store.Insert(ctx, app)
	if err != nil {
		return nil, err
	}
	app.ID = id

	s.logger.Info("app added", "repo", app.FullName(), "id", id)

	return &app, nil
}

// Search queries GitHub repositories, forks included. Short queries return
// an empty result without a request.
func (s *TrackService) Search(ctx context.Context, query string) (*model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if len(query) < minSearchLength {
		return &model.SearchResult{Items: []model.RemoteRepo{}}, nil
	}

	result, err := s.provider.Get().SearchRepositories(ctx, query+" fork:true", 1, searchPerPage)
	if err != nil {
		s.logger.Error("search failed", "query", query, "error", err)
		return nil, err
	}

	return result, nil
}

// List returns every tracked app ordered by repository name.
func (s *TrackService) List(ctx context.Context) ([]model.TrackedApp, error) {
	apps, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []model.TrackedApp{}
	}
	return apps, nil
}

// Get returns a tracked app or driven.ErrAppNotFound.
func (s *TrackService) Get(ctx context.Context, id int64) (*model.TrackedApp, error) {
	app, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, fmt.Errorf("app %d: %w", id, driven.ErrAppNotFound)
	}
	return app, nil
}

// Delete stops tracking an app.
func (s *TrackService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("app deleted", "id", id)
	return nil
}

// MarkInstalled records tag as the installed version.
func (s *TrackService) MarkInstalled(ctx context.Context, id int64, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ErrTagRequired
	}
	if err := s.store.UpdateInstalledVersion(ctx, id, &tag); err != nil {
		return err
	}
	s.logger.Info("installed version updated", "id", id, "tag", tag)
	return nil
}

// ClearInstalled forgets the installed version of an app.
func (s *TrackService) ClearInstalled(ctx context.Context, id int64) error {
	if err := s.store.UpdateInstalledVersion(ctx, id, nil); err != nil {
		return err
	}
	s.logger.Info("installed version cleared", "id", id)
	return nil
}

// Featured returns the curated featured list.
func (s *TrackService) Featured(ctx context.Context) ([]model.FeaturedApp, error) {
	if s.featured == nil {
		return []model.FeaturedApp{}, nil
	}
	apps, err := s.featured.FetchFeatured(ctx)
	if err != nil {
		s.logger.Error("failed to load featured apps", "error", err)
		return nil, err
	}
	return apps, nil
}
