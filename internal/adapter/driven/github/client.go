// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/appdepo/internal/domain/model"
	"github.com/ericfisherdev/appdepo/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh       *gh.Client
	download *http.Client // Asset downloads bypass the cache so APKs are not held in memory.
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client, PAT auth when token is non-empty)
//
// An empty token yields an unauthenticated client limited to public data.
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Client{
		gh:       client,
		download: &http.Client{Transport: http.DefaultTransport},
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{
		gh:       client,
		download: httpClient,
	}, nil
}

// SearchRepositories runs a repository search sorted by stars, descending.
func (c *Client) SearchRepositories(ctx context.Context, query string, page, perPage int) (*model.SearchResult, error) {
	opts := &gh.SearchOptions{
		Sort:  "stars",
		Order: "desc",
		ListOptions: gh.ListOptions{
			Page:    page,
			PerPage: perPage,
		},
	}

	result, resp, err := c.gh.Search.Repositories(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("searching repositories for %q: %w", query, mapError(resp, err))
	}

	logRateLimit(resp, "search/repositories", page, len(result.Repositories))

	items := make([]model.RemoteRepo, 0, len(result.Repositories))
	for _, repo := range result.Repositories {
		items = append(items, mapRepository(repo))
	}

	return &model.SearchResult{
		TotalCount:        result.GetTotal(),
		IncompleteResults: result.GetIncompleteResults(),
		Items:             items,
	}, nil
}

// GetRepository retrieves metadata for a single repository.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*model.RemoteRepo, error) {
	r, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("getting repository %s/%s: %w", owner, repo, mapError(resp, err))
	}

	logRateLimit(resp, owner+"/"+repo, 0, 1)

	mapped := mapRepository(r)
	return &mapped, nil
}

// ListReleases retrieves one page of releases, newest first as GitHub returns them.
func (c *Client) ListReleases(ctx context.Context, owner, repo string, page, perPage int) ([]model.Release, error) {
	opts := &gh.ListOptions{Page: page, PerPage: perPage}

	releases, resp, err := c.gh.Repositories.ListReleases(ctx, owner, repo, opts)
	if err != nil {
		return nil, fmt.Errorf("listing releases for %s/%s (page %d): %w", owner, repo, page, mapError(resp, err))
	}

	logRateLimit(resp, owner+"/"+repo+"/releases", page, len(releases))

	out := make([]model.Release, 0, len(releases))
	for _, r := range releases {
		out = append(out, mapRelease(r))
	}

	return out, nil
}

// GetLatestRelease retrieves the latest published release. GitHub answers
// 404 when the repository has no release, which maps to driven.ErrNoReleases.
func (c *Client) GetLatestRelease(ctx context.Context, owner, repo string) (*model.Release, error) {
	r, resp, err := c.gh.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("getting latest release for %s/%s: %w", owner, repo, driven.ErrNoReleases)
		}
		return nil, fmt.Errorf("getting latest release for %s/%s: %w", owner, repo, mapError(resp, err))
	}

	logRateLimit(resp, owner+"/"+repo+"/releases/latest", 0, 1)

	mapped := mapRelease(r)
	return &mapped, nil
}

// OpenAsset starts a streaming GET of a release asset's browser download URL.
func (c *Client) OpenAsset(ctx context.Context, assetURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating download request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.download.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("downloading %s: %w", assetURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, 0, fmt.Errorf("downloading %s: %w", assetURL, &driven.APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		})
	}

	return resp.Body, resp.ContentLength, nil
}

// mapError converts go-github failures carrying an HTTP response into a
// driven.APIError. Transport errors are returned unchanged.
func mapError(resp *gh.Response, err error) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &driven.APIError{StatusCode: http.StatusForbidden, Message: rateErr.Message}
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return &driven.APIError{StatusCode: ghErr.Response.StatusCode, Message: ghErr.Message}
	}

	if resp != nil && resp.StatusCode >= http.StatusBadRequest {
		return &driven.APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	return err
}

// logRateLimit emits a debug log line per API call and warns when the
// remaining budget drops below 100.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// mapRepository converts a go-github Repository. Getters are used throughout
// so missing fields never panic.
func mapRepository(r *gh.Repository) model.RemoteRepo {
	return model.RemoteRepo{
		ID:             r.GetID(),
		Owner:          r.GetOwner().GetLogin(),
		Name:           r.GetName(),
		FullName:       r.GetFullName(),
		Description:    r.GetDescription(),
		HTMLURL:        r.GetHTMLURL(),
		Stars:          r.GetStargazersCount(),
		Language:       r.GetLanguage(),
		OwnerAvatarURL: r.GetOwner().GetAvatarURL(),
	}
}

func mapRelease(r *gh.RepositoryRelease) model.Release {
	assets := make([]model.Asset, 0, len(r.Assets))
	for _, a := range r.Assets {
		assets = append(assets, model.Asset{
			ID:            a.GetID(),
			Name:          a.GetName(),
			DownloadURL:   a.GetBrowserDownloadURL(),
			ContentType:   a.GetContentType(),
			Size:          int64(a.GetSize()),
			DownloadCount: a.GetDownloadCount(),
			CreatedAt:     a.GetCreatedAt().Time,
			UpdatedAt:     a.GetUpdatedAt().Time,
		})
	}

	return model.Release{
		ID:          r.GetID(),
		TagName:     r.GetTagName(),
		Name:        r.GetName(),
		Body:        r.GetBody(),
		PublishedAt: r.GetPublishedAt().Time,
		HTMLURL:     r.GetHTMLURL(),
		Prerelease:  r.GetPrerelease(),
		Draft:       r.GetDraft(),
		Assets:      assets,
	}
}
