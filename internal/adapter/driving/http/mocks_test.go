package httphandler_test

import (
	"bytes"
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

type mockAppStore struct {
	mu     sync.Mutex
	apps   map[int64]model.TrackedApp
	nextID int64
}

func newMockAppStore(apps ...model.TrackedApp) *mockAppStore {
	s := &mockAppStore{apps: make(map[int64]model.TrackedApp)}
	for _, app := range apps {
		s.nextID++
		app.ID = s.nextID
		if app.LastCheckedAt.IsZero() {
			app.LastCheckedAt = time.Now()
		}
		s.apps[app.ID] = app
	}
	return s
}

func (s *mockAppStore) Insert(_ context.Context, app model.TrackedApp) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	app.ID = s.nextID
	s.apps[app.ID] = app
	return app.ID, nil
}

func (s *mockAppStore) GetByID(_ context.Context, id int64) (*model.TrackedApp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	out := make([]model.TrackedApp, 0, len(s.apps))
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

type mockGitHubClient struct {
	mu       sync.Mutex
	repoErr  error
	releases []model.Release
	latest   *model.Release
	asset    func() io.Reader
	queries  []string
	repos    []model.RemoteRepo
}

func (m *mockGitHubClient) SearchRepositories(_ context.Context, query string, _, _ int) (*model.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	return &model.SearchResult{TotalCount: len(m.repos), Items: m.repos}, nil
}

func (m *mockGitHubClient) GetRepository(_ context.Context, owner, repo string) (*model.RemoteRepo, error) {
	if m.repoErr != nil {
		return nil, m.repoErr
	}
	return &model.RemoteRepo{Owner: owner, Name: repo, FullName: owner + "/" + repo, Description: "tv app"}, nil
}

func (m *mockGitHubClient) ListReleases(_ context.Context, _, _ string, _, _ int) ([]model.Release, error) {
	return m.releases, nil
}

func (m *mockGitHubClient) GetLatestRelease(_ context.Context, _, _ string) (*model.Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return nil, driven.ErrNoReleases
	}
	rel := *m.latest
	return &rel, nil
}

func (m *mockGitHubClient) OpenAsset(_ context.Context, url string) (io.ReadCloser, int64, error) {
	if m.asset == nil {
		return nil, 0, fmt.Errorf("unexpected asset request %s", url)
	}
	return io.NopCloser(m.asset()), -1, nil
}

type mockFeaturedSource struct {
	apps []model.FeaturedApp
}

func (m *mockFeaturedSource) FetchFeatured(_ context.Context) ([]model.FeaturedApp, error) {
	return m.apps, nil
}

type mockCredentialStore struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *mockCredentialStore) Set(_ context.Context, service, plaintext string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[service] = plaintext
	return nil
}

func (m *mockCredentialStore) Get(_ context.Context, service string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[service], nil
}

func (m *mockCredentialStore) Delete(_ context.Context, service string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, service)
	return nil
}

// slowReader never ends on its own so a download stays active.
type slowReader struct{}

func (slowReader) Read(p []byte) (int, error) {
	time.Sleep(time.Millisecond)
	p[0] = 'x'
	return 1, nil
}

func apkBytes() io.Reader { return bytes.NewReader([]byte("PK-apk-bytes")) }

func strPtr(s string) *string { return &s }
