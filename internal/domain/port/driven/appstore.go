package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/appdepo/internal/domain/model"
)

// Sentinel errors returned by TrackedAppStore implementations.
var (
	// ErrAppNotFound indicates the requested tracked app does not exist.
	ErrAppNotFound = errors.New("tracked app not found")

	// ErrAppAlreadyTracked indicates an app with the same owner and repository
	// name is already tracked.
	ErrAppAlreadyTracked = errors.New("app already tracked")
)

// TrackedAppStore defines the driven port for tracked app persistence.
// Insert returns ErrAppAlreadyTracked on a duplicate owner/repo pair.
// Delete and the Update methods return ErrAppNotFound for unknown IDs.
type TrackedAppStore interface {
	Insert(ctx context.Context, app model.TrackedApp) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.TrackedApp, error)
	GetByOwnerRepo(ctx context.Context, owner, repoName string) (*model.TrackedApp, error)
	ListAll(ctx context.Context) ([]model.TrackedApp, error)
	Delete(ctx context.Context, id int64) error

	UpdateInstalledVersion(ctx context.Context, id int64, tag *string) error
	// UpdateLatestRelease overwrites the latest release columns and the last
	// checked timestamp in a single statement. nil values clear the column.
	UpdateLatestRelease(ctx context.Context, id int64, tag *string, releaseID *int64, publishedAt *time.Time, checkedAt time.Time) error
}
