// Package httphandler is the REST driving adapter.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ericfisherdev/appdepo/internal/application"
	"github.com/ericfisherdev/appdepo/internal/domain/port/driven"
)

const maxBodyBytes = 64 << 10

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	track       *application.TrackService
	checks      *application.CheckService
	releases    *application.ReleaseService
	downloads   *application.DownloadService
	credentials *application.CredentialService
	provider    *application.GitHubClientProvider
	logger      *slog.Logger
}

// Services groups the application services the handler delegates to.
type Services struct {
	Track       *application.TrackService
	Checks      *application.CheckService
	Releases    *application.ReleaseService
	Downloads   *application.DownloadService
	Credentials *application.CredentialService
	Provider    *application.GitHubClientProvider
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(svc Services, logger *slog.Logger) *Handler {
	return &Handler{
		track:       svc.Track,
		checks:      svc.Checks,
		releases:    svc.Releases,
		downloads:   svc.Downloads,
		credentials: svc.Credentials,
		provider:    svc.Provider,
		logger:      logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging, recovery and request metrics middleware. When reg is nil no
// metrics are collected and /metrics is not served.
func NewServeMux(h *Handler, logger *slog.Logger, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("GET /api/v1/apps", h.ListApps)
	mux.HandleFunc("POST /api/v1/apps", h.AddApp)
	mux.HandleFunc("GET /api/v1/apps/{id}", h.GetApp)
	mux.HandleFunc("DELETE /api/v1/apps/{id}", h.DeleteApp)
	mux.HandleFunc("POST /api/v1/apps/{id}/installed", h.MarkInstalled)
	mux.HandleFunc("DELETE /api/v1/apps/{id}/installed", h.ClearInstalled)

	mux.HandleFunc("POST /api/v1/apps/{id}/check", h.CheckApp)
	mux.HandleFunc("POST /api/v1/check", h.CheckAll)

	mux.HandleFunc("GET /api/v1/apps/{id}/releases", h.ListReleases)
	mux.HandleFunc("GET /api/v1/apps/{id}/releases/latest", h.LatestRelease)

	mux.HandleFunc("POST /api/v1/apps/{id}/download", h.StartDownload)
	mux.HandleFunc("GET /api/v1/apps/{id}/download", h.DownloadStatus)
	mux.HandleFunc("DELETE /api/v1/apps/{id}/download", h.CancelDownload)

	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/featured", h.Featured)

	mux.HandleFunc("PUT /api/v1/credentials/github", h.SetGitHubToken)
	mux.HandleFunc("DELETE /api/v1/credentials/github", h.ClearGitHubToken)

	var wrapped http.Handler = mux
	if reg != nil {
		mux.Handle("GET "+metricsPath, metricsHandler(reg))
		wrapped = requestMetricsMiddleware(newHTTPMetrics(reg), wrapped)
	}

	// Recovery inside logging so recovered panics are still logged as 500s.
	wrapped = recoveryMiddleware(logger, wrapped)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns service status and the outcome of the last check pass.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	if h.provider != nil {
		resp.Authenticated = h.provider.Authenticated()
	}
	if h.checks != nil {
		if summary, ranAt := h.checks.LastSummary(); !ranAt.IsZero() {
			last := toCheckSummaryResponse(summary, ranAt)
			resp.LastCheck = &last
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListApps returns all tracked apps.
func (h *Handler) ListApps(w http.ResponseWriter, r *http.Request) {
	apps, err := h.track.List(r.Context())
	if err != nil {
		h.writeServiceError(w, "list apps", err)
		return
	}

	resp := make([]AppResponse, 0, len(apps))
	for _, app := range apps {
		resp = append(resp, toAppResponse(app))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddApp starts tracking the repository named in the body and triggers an
// async check of its latest release.
func (h *Handler) AddApp(w http.ResponseWriter, r *http.Request) {
	var req AddAppRequest
	if !decodeBody(w, r, &req) {
		return
	}

	app, err := h.track.AddByOwnerRepo(r.Context(), req.FullName)
	if err != nil {
		h.writeServiceError(w, "add app", err)
		return
	}

	// Background context since the request context ends with the response.
	if h.checks != nil {
		go func(id int64) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := h.checks.RefreshApp(ctx, id); err != nil {
				h.logger.Error("async app check failed", "app_id", id, "error", err)
			}
		}(app.ID)
	}

	writeJSON(w, http.StatusCreated, toAppResponse(*app))
}

// GetApp returns a single tracked app.
func (h *Handler) GetApp(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	app, err := h.track.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get app", err)
		return
	}

	writeJSON(w, http.StatusOK, toAppResponse(*app))
}

// DeleteApp stops tracking an app.
func (h *Handler) DeleteApp(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.track.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, "delete app", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkInstalled records the installed version tag of an app.
func (h *Handler) MarkInstalled(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req InstalledRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.track.MarkInstalled(r.Context(), id, req.Tag); err != nil {
		h.writeServiceError(w, "mark installed", err)
		return
	}

	h.writeApp(w, r, id)
}

// ClearInstalled forgets the installed version of an app.
func (h *Handler) ClearInstalled(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.track.ClearInstalled(r.Context(), id); err != nil {
		h.writeServiceError(w, "clear installed", err)
		return
	}

	h.writeApp(w, r, id)
}

// CheckApp checks one app for a new release right away.
func (h *Handler) CheckApp(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.checks.RefreshApp(r.Context(), id); err != nil {
		h.writeServiceError(w, "check app", err)
		return
	}

	h.writeApp(w, r, id)
}

// CheckAll checks every tracked app regardless of staleness.
func (h *Handler) CheckAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.checks.RefreshAll(r.Context())
	if err != nil {
		h.writeServiceError(w, "check all", err)
		return
	}

	writeJSON(w, http.StatusOK, toCheckSummaryResponse(summary, time.Now()))
}

// ListReleases returns the installable releases of an app.
func (h *Handler) ListReleases(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	releases, err := h.releases.Releases(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "list releases", err)
		return
	}

	resp := make([]ReleaseResponse, 0, len(releases))
	for _, rel := range releases {
		resp = append(resp, toReleaseResponse(rel))
	}

	writeJSON(w, http.StatusOK, resp)
}

// LatestRelease returns the latest release of an app and its default APK.
func (h *Handler) LatestRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	latest, err := h.releases.Latest(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "latest release", err)
		return
	}

	resp := LatestReleaseResponse{Release: toReleaseResponse(latest.Release)}
	if latest.APK != nil {
		apk := toAssetResponse(*latest.APK)
		resp.APK = &apk
	}

	writeJSON(w, http.StatusOK, resp)
}

// StartDownload begins downloading an APK in the background. The body is
// optional; see DownloadRequest.
func (h *Handler) StartDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req DownloadRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	rel, asset, err := h.releases.Resolve(r.Context(), id, strings.TrimSpace(req.Tag), req.AssetID)
	if err != nil {
		h.writeServiceError(w, "resolve download", err)
		return
	}

	d, err := h.downloads.Start(r.Context(), id, rel, asset, nil)
	if err != nil {
		h.writeServiceError(w, "start download", err)
		return
	}

	writeJSON(w, http.StatusAccepted, toDownloadResponse(d))
}

// DownloadStatus returns the current download snapshot of an app.
func (h *Handler) DownloadStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	d, err := h.downloads.Status(id)
	if err != nil {
		h.writeServiceError(w, "download status", err)
		return
	}

	writeJSON(w, http.StatusOK, toDownloadResponse(d))
}

// CancelDownload asks the running download of an app to stop.
func (h *Handler) CancelDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.downloads.Cancel(id); err != nil {
		h.writeServiceError(w, "cancel download", err)
		return
	}

	d, _ := h.downloads.Status(id)
	writeJSON(w, http.StatusAccepted, toDownloadResponse(d))
}

// Search looks up GitHub repositories matching q.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	result, err := h.track.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, "search", err)
		return
	}

	items := make([]RepoResponse, 0, len(result.Items))
	for _, repo := range result.Items {
		items = append(items, toRepoResponse(repo))
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		TotalCount:        result.TotalCount,
		IncompleteResults: result.IncompleteResults,
		Items:             items,
	})
}

// Featured returns the curated app list, flagging entries already tracked.
func (h *Handler) Featured(w http.ResponseWriter, r *http.Request) {
	featured, err := h.track.Featured(r.Context())
	if err != nil {
		h.writeServiceError(w, "featured", err)
		return
	}

	apps, err := h.track.List(r.Context())
	if err != nil {
		h.writeServiceError(w, "featured", err)
		return
	}
	tracked := make(map[string]bool, len(apps))
	for _, app := range apps {
		tracked[strings.ToLower(app.FullName())] = true
	}

	resp := make([]FeaturedResponse, 0, len(featured))
	for _, f := range featured {
		tags := f.Tags
		if tags == nil {
			tags = []string{}
		}
		resp = append(resp, FeaturedResponse{
			Name:        f.Name,
			Description: f.Description,
			Owner:       f.Owner,
			Repo:        f.Repo,
			IconURL:     f.IconURL,
			Tags:        tags,
			Tracked:     tracked[strings.ToLower(f.Owner+"/"+f.Repo)],
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// SetGitHubToken stores a GitHub token and swaps the live client.
func (h *Handler) SetGitHubToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.credentials.SetGitHubToken(r.Context(), req.Token); err != nil {
		h.writeServiceError(w, "set github token", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearGitHubToken removes the stored GitHub token.
func (h *Handler) ClearGitHubToken(w http.ResponseWriter, r *http.Request) {
	if err := h.credentials.ClearGitHubToken(r.Context()); err != nil {
		h.writeServiceError(w, "clear github token", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeApp(w http.ResponseWriter, r *http.Request, id int64) {
	app, err := h.track.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get app", err)
		return
	}
	writeJSON(w, http.StatusOK, toAppResponse(*app))
}

// writeServiceError maps application and port errors onto status codes.
// Unrecognized errors are logged and reported as 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var apiErr *driven.APIError

	switch {
	case errors.Is(err, driven.ErrAppNotFound):
		writeError(w, http.StatusNotFound, "app not found")
	case errors.Is(err, driven.ErrAppAlreadyTracked):
		writeError(w, http.StatusConflict, "app already tracked")
	case errors.Is(err, application.ErrInvalidRepoInput),
		errors.Is(err, application.ErrTagRequired),
		errors.Is(err, application.ErrTokenRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, driven.ErrNoReleases),
		errors.Is(err, application.ErrReleaseNotFound),
		errors.Is(err, application.ErrAssetNotFound),
		errors.Is(err, application.ErrNoDownload):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, application.ErrDownloadInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		writeError(w, http.StatusNotFound, "repository not found on github")
	case errors.As(err, &apiErr):
		h.logger.Warn("github request failed", "op", op, "status", apiErr.StatusCode, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid app id")
		return 0, false
	}
	return id, true
}

// decodeOptionalBody is decodeBody for endpoints whose body may be omitted.
// An empty body, chunked or not, leaves v untouched.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
