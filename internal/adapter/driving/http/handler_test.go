package httphandler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/appdepo/internal/adapter/driving/http"
	"github.com/ericfisherdev/appdepo/internal/application"
	"github.com/ericfisherdev/appdepo/internal/domain/model"
	"github.com/ericfisherdev/appdepo/internal/domain/port/driven"
)

type fixture struct {
	mux       http.Handler
	store     *mockAppStore
	gh        *mockGitHubClient
	provider  *application.GitHubClientProvider
	downloads *application.DownloadService
}

func setup(t *testing.T, store *mockAppStore, gh *mockGitHubClient, creds driven.CredentialStore) fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := application.NewGitHubClientProvider(gh, false)
	featured := &mockFeaturedSource{apps: []model.FeaturedApp{
		{Name: "Kodi", Owner: "xbmc", Repo: "xbmc"},
		{Name: "SmartTube", Owner: "yuliskov", Repo: "SmartTube", Tags: []string{"video"}},
	}}

	checks := application.NewCheckService(store, provider, nil, time.Hour, time.Hour, 2)
	downloads := application.NewDownloadService(store, provider, nil, nil, t.TempDir(), logger)
	factory := func(string) driven.GitHubClient { return gh }

	h := httphandler.NewHandler(httphandler.Services{
		Track:       application.NewTrackService(store, provider, featured, logger),
		Checks:      checks,
		Releases:    application.NewReleaseService(store, provider, checks),
		Downloads:   downloads,
		Credentials: application.NewCredentialService(creds, provider, factory, ""),
		Provider:    provider,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checks.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = downloads.Shutdown(shutdownCtx)
	})

	return fixture{
		mux:       httphandler.NewServeMux(h, logger, prometheus.NewRegistry()),
		store:     store,
		gh:        gh,
		provider:  provider,
		downloads: downloads,
	}
}

func (f fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func apkRelease(tag string, id int64) model.Release {
	return model.Release{
		ID:      id,
		TagName: tag,
		Body:    "**Fixed** remote input",
		Assets: []model.Asset{
			{ID: id * 10, Name: "app-" + tag + ".apk", ContentType: model.APKContentType, DownloadURL: "https://example.test/" + tag},
		},
	}
}

func TestHealth(t *testing.T) {
	f := setup(t, newMockAppStore(), &mockGitHubClient{}, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	resp := decode[httphandler.HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Authenticated)
}

func TestListApps(t *testing.T) {
	f := setup(t, newMockAppStore(), &mockGitHubClient{}, nil)
	rec := f.do(t, http.MethodGet, "/api/v1/apps", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	f = setup(t, newMockAppStore(
		model.TrackedApp{Owner: "octo", RepoName: "tv", InstalledVersionTag: strPtr("v1"), LatestKnownReleaseTag: strPtr("v2")},
	), &mockGitHubClient{}, nil)
	rec = f.do(t, http.MethodGet, "/api/v1/apps", "")

	apps := decode[[]httphandler.AppResponse](t, rec)
	require.Len(t, apps, 1)
	assert.Equal(t, "octo/tv", apps[0].FullName)
	assert.True(t, apps[0].IsInstalled)
	assert.True(t, apps[0].HasUpdate)
}

func TestAddApp(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		existing   []model.TrackedApp
		repoErr    error
		wantStatus int
		wantError  string
	}{
		{name: "valid", body: `{"full_name": "octo/tv"}`, wantStatus: http.StatusCreated},
		{name: "no slash", body: `{"full_name": "octotv"}`, wantStatus: http.StatusBadRequest, wantError: "invalid format, use owner/repo"},
		{name: "extra slashes", body: `{"full_name": "a/b/c"}`, wantStatus: http.StatusBadRequest, wantError: "invalid format, use owner/repo"},
		{
			name:       "duplicate",
			body:       `{"full_name": "octo/tv"}`,
			existing:   []model.TrackedApp{{Owner: "octo", RepoName: "tv"}},
			wantStatus: http.StatusConflict,
			wantError:  "app already tracked",
		},
		{
			name:       "unknown repository",
			body:       `{"full_name": "octo/missing"}`,
			repoErr:    &driven.APIError{StatusCode: 404, Message: "Not Found"},
			wantStatus: http.StatusNotFound,
			wantError:  "repository not found on github",
		},
		{
			name:       "github failure",
			body:       `{"full_name": "octo/tv"}`,
			repoErr:    &driven.APIError{StatusCode: 503, Message: "unavailable"},
			wantStatus: http.StatusBadGateway,
		},
		{name: "invalid JSON", body: `not json`, wantStatus: http.StatusBadRequest, wantError: "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, newMockAppStore(tt.existing...), &mockGitHubClient{repoErr: tt.repoErr}, nil)

			rec := f.do(t, http.MethodPost, "/api/v1/apps", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, errorMessage(t, rec))
			}
			if tt.wantStatus == http.StatusCreated {
				app := decode[httphandler.AppResponse](t, rec)
				assert.Equal(t, "octo/tv", app.FullName)
				assert.Equal(t, "tv app", app.Description)
				assert.Nil(t, app.InstalledVersionTag)
			}
		})
	}
}

func TestGetAndDeleteApp(t *testing.T) {
	f := setup(t, newMockAppStore(model.TrackedApp{Owner: "octo", RepoName: "tv"}), &mockGitHubClient{}, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/apps/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[httphandler.AppResponse](t, rec).ID)

	rec = f.do(t, http.MethodGet, "/api/v1/apps/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid app id", errorMessage(t, rec))

	rec = f.do(t, http.MethodDelete, "/api/v1/apps/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/apps/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/apps/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInstalledVersion(t *testing.T) {
	f := setup(t, newMockAppStore(model.TrackedApp{Owner: "octo", RepoName: "tv", LatestKnownReleaseTag: strPtr("v2")}), &mockGitHubClient{}, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/apps/1/installed", `{"tag": "v1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	app := decode[httphandler.AppResponse](t, rec)
	require.NotNil(t, app.InstalledVersionTag)
	assert.Equal(t, "v1", *app.InstalledVersionTag)
	assert.True(t, app.HasUpdate)

	rec = f.do(t, http.MethodPost, "/api/v1/apps/1/installed", `{"tag": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/apps/1/installed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	app = decode[httphandler.AppResponse](t, rec)
	assert.False(t, app.IsInstalled)
	assert.False(t, app.HasUpdate)
}

func TestCheckEndpoints(t *testing.T) {
	latest := apkRelease("v2", 2)
	gh := &mockGitHubClient{latest: &latest}
	f := setup(t, newMockAppStore(
		model.TrackedApp{Owner: "octo", RepoName: "tv", InstalledVersionTag: strPtr("v1")},
		model.TrackedApp{Owner: "octo", RepoName: "box"},
	), gh, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/apps/1/check", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	app := decode[httphandler.AppResponse](t, rec)
	require.NotNil(t, app.LatestKnownReleaseTag)
	assert.Equal(t, "v2", *app.LatestKnownReleaseTag)
	assert.True(t, app.HasUpdate)

	rec = f.do(t, http.MethodPost, "/api/v1/apps/9/check", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/check", "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[httphandler.CheckSummaryResponse](t, rec)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Updated)

	rec = f.do(t, http.MethodGet, "/api/v1/health", "")
	health := decode[httphandler.HealthResponse](t, rec)
	require.NotNil(t, health.LastCheck)
	assert.Equal(t, 2, health.LastCheck.Checked)
}

func TestReleases(t *testing.T) {
	draft := apkRelease("v3", 3)
	draft.Draft = true
	latest := apkRelease("v2", 2)
	gh := &mockGitHubClient{
		releases: []model.Release{draft, latest, {ID: 1, TagName: "v1"}},
		latest:   &latest,
	}
	f := setup(t, newMockAppStore(model.TrackedApp{Owner: "octo", RepoName: "tv"}), gh, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/apps/1/releases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	releases := decode[[]httphandler.ReleaseResponse](t, rec)
	require.Len(t, releases, 1)
	assert.Equal(t, "v2", releases[0].TagName)
	assert.Contains(t, releases[0].BodyHTML, "<strong>Fixed</strong>")
	require.Len(t, releases[0].Assets, 1)
	assert.True(t, releases[0].Assets[0].IsAPK)

	rec = f.do(t, http.MethodGet, "/api/v1/apps/1/releases/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[httphandler.LatestReleaseResponse](t, rec)
	assert.Equal(t, "v2", resp.Release.TagName)
	require.NotNil(t, resp.APK)
	assert.Equal(t, int64(20), resp.APK.ID)

	gh.latest = nil
	rec = f.do(t, http.MethodGet, "/api/v1/apps/1/releases/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadLifecycle(t *testing.T) {
	gh := &mockGitHubClient{releases: []model.Release{apkRelease("v2", 2)}, asset: apkBytes}
	f := setup(t, newMockAppStore(model.TrackedApp{Owner: "octo", RepoName: "tv"}), gh, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/apps/1/download", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/apps/1/download", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	started := decode[httphandler.DownloadResponse](t, rec)
	assert.Equal(t, "downloading", started.State)
	assert.Equal(t, "v2", started.ReleaseTag)
	assert.Equal(t, "app-v2.apk", started.AssetName)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := f.downloads.Wait(ctx, 1)
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/api/v1/apps/1/download", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[httphandler.DownloadResponse](t, rec)
	assert.Equal(t, "downloaded", status.State)
	assert.Equal(t, int64(len("PK-apk-bytes")), status.BytesCopied)
	assert.True(t, strings.HasSuffix(status.FilePath, "app-v2.apk"))

	rec = f.do(t, http.MethodDelete, "/api/v1/apps/1/download", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartDownloadEmptyChunkedBody(t *testing.T) {
	gh := &mockGitHubClient{releases: []model.Release{apkRelease("v2", 2)}, asset: apkBytes}
	f := setup(t, newMockAppStore(model.TrackedApp{Owner: "octo", RepoName: "tv"}), gh, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/apps/1/download", strings.NewReader(""))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "v2", decode[httphandler.DownloadResponse](t, rec).ReleaseTag)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := f.downloads.Wait(ctx, 1)
	require.NoError(t, err)

	rec = f.do(t, http.MethodPost, "/api/v1/apps/1/download", `{"tag":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadCancelAndConflict(t *testing.T) {
	gh := &mockGitHubClient{
		releases: []model.Release{apkRelease("v2", 2)},
		asset:    func() io.Reader { return slowReader{} },
	}
	f := setup(t, newMockAppStore(model.TrackedApp{Owner: "octo", RepoName: "tv"}), gh, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/apps/1/download", `{"tag": "v2", "asset_id": 20}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/apps/1/download", `{"tag": "v2"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/apps/1/download", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := f.downloads.Wait(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.DownloadStateCancelled, final.State)
}

func TestDownloadUnknownRelease(t *testing.T) {
	gh := &mockGitHubClient{releases: []model.Release{apkRelease("v2", 2)}}
	f := setup(t, newMockAppStore(model.TrackedApp{Owner: "octo", RepoName: "tv"}), gh, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/apps/1/download", `{"tag": "v9"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/apps/1/download", `{"tag": "v2", "asset_id": 5}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearch(t *testing.T) {
	gh := &mockGitHubClient{repos: []model.RemoteRepo{{ID: 1, Owner: "octo", Name: "tv", FullName: "octo/tv", Stars: 12}}}
	f := setup(t, newMockAppStore(), gh, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=tv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[httphandler.SearchResponse](t, rec).Items)
	assert.Empty(t, gh.queries)

	rec = f.do(t, http.MethodGet, "/api/v1/search?q=launcher", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[httphandler.SearchResponse](t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 12, resp.Items[0].Stars)
	assert.Equal(t, []string{"launcher fork:true"}, gh.queries)
}

func TestFeatured(t *testing.T) {
	f := setup(t, newMockAppStore(model.TrackedApp{Owner: "yuliskov", RepoName: "SmartTube"}), &mockGitHubClient{}, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/featured", "")
	require.Equal(t, http.StatusOK, rec.Code)

	featured := decode[[]httphandler.FeaturedResponse](t, rec)
	require.Len(t, featured, 2)
	assert.False(t, featured[0].Tracked)
	assert.Equal(t, []string{}, featured[0].Tags)
	assert.True(t, featured[1].Tracked)
}

func TestGitHubCredentials(t *testing.T) {
	f := setup(t, newMockAppStore(), &mockGitHubClient{}, nil)
	rec := f.do(t, http.MethodPut, "/api/v1/credentials/github", `{"token": "ghp_x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	creds := &mockCredentialStore{values: map[string]string{}}
	f = setup(t, newMockAppStore(), &mockGitHubClient{}, creds)

	rec = f.do(t, http.MethodPut, "/api/v1/credentials/github", `{"token": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/v1/credentials/github", `{"token": "ghp_x"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, f.provider.Authenticated())
	assert.Equal(t, "ghp_x", creds.values[application.GitHubCredentialService])

	rec = f.do(t, http.MethodDelete, "/api/v1/credentials/github", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, f.provider.Authenticated())
	assert.Empty(t, creds.values)
}

func TestMetricsEndpoint(t *testing.T) {
	f := setup(t, newMockAppStore(), &mockGitHubClient{}, nil)

	f.do(t, http.MethodGet, "/api/v1/apps", "")
	f.do(t, http.MethodGet, "/api/v1/apps/42", "")

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `appdepo_http_requests_total{method="GET",route="/api/v1/apps",status_class="2xx"} 1`)
	assert.Contains(t, body, `appdepo_http_errors_total{method="GET",route="/api/v1/apps/{id}",status_code="404"} 1`)
}
