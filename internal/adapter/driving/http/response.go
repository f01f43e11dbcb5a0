package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/appdepo/internal/application"
	"github.com/ericfisherdev/appdepo/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

type errorResponse struct {
	Error string `json:"error"`
}

// AppResponse is the JSON representation of a tracked app.
type AppResponse struct {
	ID                       int64   `json:"id"`
	Owner                    string  `json:"owner"`
	RepoName                 string  `json:"repo_name"`
	FullName                 string  `json:"full_name"`
	Description              string  `json:"description"`
	HTMLURL                  string  `json:"html_url"`
	InstalledVersionTag      *string `json:"installed_version_tag"`
	LatestKnownReleaseTag    *string `json:"latest_known_release_tag"`
	LatestReleaseID          *int64  `json:"latest_release_id"`
	LatestReleasePublishedAt *string `json:"latest_release_published_at"`
	LastCheckedAt            string  `json:"last_checked_at"`
	IsInstalled              bool    `json:"is_installed"`
	HasUpdate                bool    `json:"has_update"`
}

// AssetResponse is the JSON representation of a release asset.
type AssetResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	DownloadURL   string `json:"download_url"`
	ContentType   string `json:"content_type"`
	Size          int64  `json:"size"`
	DownloadCount int    `json:"download_count"`
	IsAPK         bool   `json:"is_apk"`
}

// ReleaseResponse is the JSON representation of a release. BodyHTML holds
// the sanitized rendering of the markdown body.
type ReleaseResponse struct {
	ID          int64           `json:"id"`
	TagName     string          `json:"tag_name"`
	Name        string          `json:"name"`
	Body        string          `json:"body"`
	BodyHTML    string          `json:"body_html"`
	PublishedAt string          `json:"published_at"`
	HTMLURL     string          `json:"html_url"`
	Prerelease  bool            `json:"prerelease"`
	Assets      []AssetResponse `json:"assets"`
}

// LatestReleaseResponse pairs the latest release with the asset that would
// be downloaded by default. APK is null when the release has none.
type LatestReleaseResponse struct {
	Release ReleaseResponse `json:"release"`
	APK     *AssetResponse  `json:"apk"`
}

// DownloadResponse is the JSON representation of a download snapshot.
type DownloadResponse struct {
	AppID       int64   `json:"app_id"`
	ReleaseTag  string  `json:"release_tag"`
	AssetName   string  `json:"asset_name"`
	State       string  `json:"state"`
	Progress    float64 `json:"progress"`
	BytesCopied int64   `json:"bytes_copied"`
	TotalBytes  int64   `json:"total_bytes"`
	FilePath    string  `json:"file_path,omitempty"`
	Error       string  `json:"error,omitempty"`
	StartedAt   string  `json:"started_at,omitempty"`
	FinishedAt  string  `json:"finished_at,omitempty"`
}

// RepoResponse is the JSON representation of a GitHub search hit.
type RepoResponse struct {
	ID             int64  `json:"id"`
	Owner          string `json:"owner"`
	Name           string `json:"name"`
	FullName       string `json:"full_name"`
	Description    string `json:"description"`
	HTMLURL        string `json:"html_url"`
	Stars          int    `json:"stars"`
	Language       string `json:"language"`
	OwnerAvatarURL string `json:"owner_avatar_url"`
}

// SearchResponse is the JSON representation of a repository search.
type SearchResponse struct {
	TotalCount        int            `json:"total_count"`
	IncompleteResults bool           `json:"incomplete_results"`
	Items             []RepoResponse `json:"items"`
}

// FeaturedResponse is the JSON representation of a curated app.
type FeaturedResponse struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Owner       string   `json:"owner"`
	Repo        string   `json:"repo"`
	IconURL     string   `json:"icon_url"`
	Tags        []string `json:"tags"`
	Tracked     bool     `json:"tracked"`
}

// CheckSummaryResponse is the JSON representation of a check pass.
type CheckSummaryResponse struct {
	Checked    int    `json:"checked"`
	Updated    int    `json:"updated"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	DurationMS int64  `json:"duration_ms"`
	RanAt      string `json:"ran_at,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status        string                `json:"status"`
	Time          string                `json:"time"`
	Authenticated bool                  `json:"github_authenticated"`
	LastCheck     *CheckSummaryResponse `json:"last_check,omitempty"`
}

// AddAppRequest is the JSON body for the add app endpoint.
type AddAppRequest struct {
	FullName string `json:"full_name"`
}

// InstalledRequest is the JSON body for marking an installed version.
type InstalledRequest struct {
	Tag string `json:"tag"`
}

// DownloadRequest is the JSON body for starting a download. Both fields are
// optional: an empty tag picks the newest installable release and a zero
// asset ID picks its first APK.
type DownloadRequest struct {
	Tag     string `json:"tag"`
	AssetID int64  `json:"asset_id"`
}

// TokenRequest is the JSON body for storing a GitHub token.
type TokenRequest struct {
	Token string `json:"token"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toAppResponse(app model.TrackedApp) AppResponse {
	resp := AppResponse{
		ID:                    app.ID,
		Owner:                 app.Owner,
		RepoName:              app.RepoName,
		FullName:              app.FullName(),
		Description:           app.Description,
		HTMLURL:               app.HTMLURL,
		InstalledVersionTag:   app.InstalledVersionTag,
		LatestKnownReleaseTag: app.LatestKnownReleaseTag,
		LatestReleaseID:       app.LatestReleaseID,
		LastCheckedAt:         formatTime(app.LastCheckedAt),
		IsInstalled:           app.IsInstalled(),
		HasUpdate:             app.HasUpdate(),
	}
	if app.LatestReleasePublishedAt != nil {
		published := formatTime(*app.LatestReleasePublishedAt)
		resp.LatestReleasePublishedAt = &published
	}
	return resp
}

func toAssetResponse(a model.Asset) AssetResponse {
	return AssetResponse{
		ID:            a.ID,
		Name:          a.Name,
		DownloadURL:   a.DownloadURL,
		ContentType:   a.ContentType,
		Size:          a.Size,
		DownloadCount: a.DownloadCount,
		IsAPK:         a.IsAPK(),
	}
}

func toReleaseResponse(rel model.Release) ReleaseResponse {
	assets := make([]AssetResponse, 0, len(rel.Assets))
	for _, a := range rel.Assets {
		assets = append(assets, toAssetResponse(a))
	}

	return ReleaseResponse{
		ID:          rel.ID,
		TagName:     rel.TagName,
		Name:        rel.Name,
		Body:        rel.Body,
		BodyHTML:    RenderReleaseNotes(rel.Body),
		PublishedAt: formatTime(rel.PublishedAt),
		HTMLURL:     rel.HTMLURL,
		Prerelease:  rel.Prerelease,
		Assets:      assets,
	}
}

func toDownloadResponse(d model.Download) DownloadResponse {
	return DownloadResponse{
		AppID:       d.AppID,
		ReleaseTag:  d.ReleaseTag,
		AssetName:   d.AssetName,
		State:       string(d.State),
		Progress:    d.Progress,
		BytesCopied: d.BytesCopied,
		TotalBytes:  d.TotalBytes,
		FilePath:    d.FilePath,
		Error:       d.Error,
		StartedAt:   formatTime(d.StartedAt),
		FinishedAt:  formatTime(d.FinishedAt),
	}
}

func toRepoResponse(r model.RemoteRepo) RepoResponse {
	return RepoResponse{
		ID:             r.ID,
		Owner:          r.Owner,
		Name:           r.Name,
		FullName:       r.FullName,
		Description:    r.Description,
		HTMLURL:        r.HTMLURL,
		Stars:          r.Stars,
		Language:       r.Language,
		OwnerAvatarURL: r.OwnerAvatarURL,
	}
}

func toCheckSummaryResponse(s application.CheckSummary, ranAt time.Time) CheckSummaryResponse {
	return CheckSummaryResponse{
		Checked:    s.Checked,
		Updated:    s.Updated,
		Failed:     s.Failed,
		Skipped:    s.Skipped,
		DurationMS: s.Duration.Milliseconds(),
		RanAt:      formatTime(ranAt),
	}
}
