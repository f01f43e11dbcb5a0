package driven

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/appdepo/internal/domain/model"
)

// ErrNoReleases indicates that the repository has no published release.
var ErrNoReleases = errors.New("no releases found")

// APIError is returned when GitHub answers with a non-success status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api error: %d %s", e.StatusCode, e.Message)
}

// GitHubClient defines the driven port for read access to the GitHub API.
type GitHubClient interface {
	SearchRepositories(ctx context.Context, query string, page, perPage int) (*model.SearchResult, error)
	GetRepository(ctx context.Context, owner, repo string) (*model.RemoteRepo, error)
	ListReleases(ctx context.Context, owner, repo string, page, perPage int) ([]model.Release, error)
	// GetLatestRelease returns ErrNoReleases when the repository has none.
	GetLatestRelease(ctx context.Context, owner, repo string) (*model.Release, error)
	// OpenAsset starts streaming the file at url. The returned length is -1
	// when the server does not announce one. Callers must close the reader.
	OpenAsset(ctx context.Context, url string) (io.ReadCloser, int64, error)
}
