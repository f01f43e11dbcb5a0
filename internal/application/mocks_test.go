package application_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/ericfisherdev/appdepo/internal/domain/model"
	"github.com/ericfisherdev/appdepo/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockGitHubClient struct {
	search     func(ctx context.Context, query string, page, perPage int) (*model.SearchResult, error)
	getRepo    func(ctx context.Context, owner, repo string) (*model.RemoteRepo, error)
	listRels   func(ctx context.Context, owner, repo string, page, perPage int) ([]model.Release, error)
	latest     func(ctx context.Context, owner, repo string) (*model.Release, error)
	openAsset  func(ctx context.Context, url string) (io.ReadCloser, int64, error)
	mu         sync.Mutex
	searchArgs []string
}

func (m *mockGitHubClient) SearchRepositories(ctx context.Context, query string, page, perPage int) (*model.SearchResult, error) {
	m.mu.Lock()
	m.searchArgs = append(m.searchArgs, query)
	m.mu.Unlock()
	if m.search == nil {
		return &model.SearchResult{}, nil
	}
	return m.search(ctx, query, page, perPage)
}

func (m *mockGitHubClient) GetRepository(ctx context.Context, owner, repo string) (*model.RemoteRepo, error) {
	if m.getRepo == nil {
		return &model.RemoteRepo{Owner: owner, Name: repo, FullName: owner + "/" + repo}, nil
	}
	return m.getRepo(ctx, owner, repo)
}

func (m *mockGitHubClient) ListReleases(ctx context.Context, owner, repo string, page, perPage int) ([]model.Release, error) {
	if m.listRels == nil {
		return nil, nil
	}
	return m.listRels(ctx, owner, repo, page, perPage)
}

func (m *mockGitHubClient) GetLatestRelease(ctx context.Context, owner, repo string) (*model.Release, error) {
	if m.latest == nil {
		return nil, driven.ErrNoReleases
	}
	return m.latest(ctx, owner, repo)
}

func (m *mockGitHubClient) OpenAsset(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	if m.openAsset == nil {
		return nil, 0, fmt.Errorf("unexpected asset request %s", url)
	}
	return m.openAsset(ctx, url)
}

// mockAppStore is an in-memory TrackedAppStore safe for concurrent checks.
type mockAppStore struct {
	mu     sync.Mutex
	apps   map[int64]model.TrackedApp
	nextID int64
	err    error
}

func newMockAppStore(apps ...model.TrackedApp) *mockAppStore {
	s := &mockAppStore{apps: make(map[int64]model.TrackedApp)}
	for _, app := range apps {
		s.nextID++
		if app.ID == 0 {
			app.ID = s.nextID
		}
		s.apps[app.ID] = app
	}
	return s
}

func (s *mockAppStore) Insert(_ context.Context, app model.TrackedApp) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.apps {
		if existing.Owner == app.Owner && existing.RepoName == app.RepoName {
			return 0, driven.ErrAppAlreadyTracked
		}
	}
	s.nextID++
	app.ID = s.nextID
	s.apps[app.ID] = app
	return app.ID, nil
}

func (s *mockAppStore) GetByID(_ context.Context, id int64) (*model.TrackedApp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	app, ok := s.apps[id]
	if !ok {
		return nil, nil
	}
	return &app, nil
}

func (s *mockAppStore) GetByOwnerRepo(_ context.Context, owner, repo string) (*model.TrackedApp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, app := range s.apps {
		if app.Owner == owner && app.RepoName == repo {
			return &app, nil
		}
	}
	return nil, nil
}

func (s *mockAppStore) ListAll(_ context.Context) ([]model.TrackedApp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []model.TrackedApp
	for _, app := range s.apps {
		out = append(out, app)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *mockAppStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[id]; !ok {
		return driven.ErrAppNotFound
	}
	delete(s.apps, id)
	return nil
}

func (s *mockAppStore) UpdateInstalledVersion(_ context.Context, id int64, tag *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return driven.ErrAppNotFound
	}
	app.InstalledVersionTag = tag
	s.apps[id] = app
	return nil
}

func (s *mockAppStore) UpdateLatestRelease(_ context.Context, id int64, tag *string, releaseID *int64, publishedAt *time.Time, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return driven.ErrAppNotFound
	}
	app.LatestKnownReleaseTag = tag
	app.LatestReleaseID = releaseID
	app.LatestReleasePublishedAt = publishedAt
	app.LastCheckedAt = checkedAt
	s.apps[id] = app
	return nil
}

func (s *mockAppStore) get(id int64) model.TrackedApp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apps[id]
}

type mockMetrics struct {
	mu        sync.Mutex
	checks    []string
	downloads []string
}

func (m *mockMetrics) ObserveCheck(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, outcome)
}

func (m *mockMetrics) ObserveDownload(outcome string, _ int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads = append(m.downloads, outcome)
}

func (m *mockMetrics) downloadOutcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.downloads...)
}

type mockFeaturedSource struct {
	apps []model.FeaturedApp
	err  error
}

func (m *mockFeaturedSource) FetchFeatured(_ context.Context) ([]model.FeaturedApp, error) {
	return m.apps, m.err
}

type mockInstaller struct {
	mu    sync.Mutex
	paths []string
	err   error

	// When set, Install signals started and then blocks until release is closed.
	started chan struct{}
	release chan struct{}
}

func (m *mockInstaller) Install(ctx context.Context, path string) error {
	m.mu.Lock()
	m.paths = append(m.paths, path)
	err := m.err
	m.mu.Unlock()

	if m.release != nil {
		close(m.started)
		select {
		case <-m.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

type mockCredentialStore struct {
	values map[string]string
	err    error
}

func (m *mockCredentialStore) Set(_ context.Context, service, plaintext string) error {
	if m.err != nil {
		return m.err
	}
	m.values[service] = plaintext
	return nil
}

func (m *mockCredentialStore) Get(_ context.Context, service string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.values[service], nil
}

func (m *mockCredentialStore) Delete(_ context.Context, service string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.values, service)
	return nil
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }
