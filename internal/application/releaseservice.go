package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/appdepo/internal/domain/model"
	"github.com/ericfisherdev/appdepo/internal/domain/port/driven"
)

const releasesPerPage = 30

// LatestRelease pairs the newest release with its first APK asset.
// APK is nil when the release carries none.
type LatestRelease struct {
	Release model.Release
	APK     *model.Asset
}

// ReleaseService reads releases for tracked apps.
type ReleaseService struct {
	store    driven.TrackedAppStore
	provider *GitHubClientProvider
	checker  *CheckService
}

// NewReleaseService creates a ReleaseService. checker may be nil, in which
// case Latest does not persist what it sees.
func NewReleaseService(store driven.TrackedAppStore, provider *GitHubClientProvider, checker *CheckService) *ReleaseService {
	return &ReleaseService{store: store, provider: provider, checker: checker}
}

// Releases returns the first page of the app's releases, keeping only
// published ones that carry at least one APK.
func (s *ReleaseService) Releases(ctx context.Context, appID int64) ([]model.Release, error) {
	app, err := s.app(ctx, appID)
	if err != nil {
		return nil, err
	}

	all, err := s.provider.Get().ListReleases(ctx, app.Owner, app.RepoName, 1, releasesPerPage)
	if err != nil {
		return nil, err
	}

	installable := make([]model.Release, 0, len(all))
	for _, rel := range all {
		if rel.Installable() {
			installable = append(installable, rel)
		}
	}

	return installable, nil
}

// Latest returns the latest release of the app together with its APK asset
// and records the release on the tracked app.
func (s *ReleaseService) Latest(ctx context.Context, appID int64) (*LatestRelease, error) {
	app, err := s.app(ctx, appID)
	if err != nil {
		return nil, err
	}

	rel, err := s.provider.Get().GetLatestRelease(ctx, app.Owner, app.RepoName)
	if s.checker != nil {
		if _, recErr := s.checker.RecordLatest(ctx, *app, rel, err); recErr != nil && recErr != err {
			slog.Warn("failed to record latest release", "repo", app.FullName(), "error", recErr)
		}
	}
	if err != nil {
		return nil, err
	}

	return &LatestRelease{Release: *rel, APK: rel.FirstAPK()}, nil
}

// Resolve finds a release by tag among the app's installable releases and
// the APK asset inside it. assetID 0 selects the first APK; an assetID naming
// a non-APK asset is treated as unknown.
func (s *ReleaseService) Resolve(ctx context.Context, appID int64, tag string, assetID int64) (model.Release, model.Asset, error) {
	releases, err := s.Releases(ctx, appID)
	if err != nil {
		return model.Release{}, model.Asset{}, err
	}

	for _, rel := range releases {
		if tag != "" && rel.TagName != tag {
			continue
		}

		asset := rel.FirstAPK()
		if assetID != 0 {
			asset = rel.AssetByID(assetID)
		}
		if asset == nil || !asset.IsAPK() {
			return model.Release{}, model.Asset{}, fmt.Errorf("release %s asset %d: %w", rel.TagName, assetID, ErrAssetNotFound)
		}
		return rel, *asset, nil
	}

	return model.Release{}, model.Asset{}, fmt.Errorf("release %q: %w", tag, ErrReleaseNotFound)
}

func (s *ReleaseService) app(ctx context.Context, appID int64) (*model.TrackedApp, error) {
	app, err := s.store.GetByID(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, fmt.Errorf("app %d: %w", appID, driven.ErrAppNotFound)
	}
	return app, nil
}
