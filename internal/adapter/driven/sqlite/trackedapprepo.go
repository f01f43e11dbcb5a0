package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/appdepo/internal/domain/model"
	"github.com/ericfisherdev/appdepo/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TrackedAppStore = (*TrackedAppRepo)(nil)

const trackedAppColumns = `id, owner, repo_name, description, html_url, installed_version_tag,
	latest_known_release_tag, latest_release_id, latest_release_published_at, last_checked_at`

// TrackedAppRepo is the SQLite implementation of the TrackedAppStore port interface.
type TrackedAppRepo struct {
	db *DB
}

// NewTrackedAppRepo creates a new TrackedAppRepo backed by the given DB.
func NewTrackedAppRepo(db *DB) *TrackedAppRepo {
	return &TrackedAppRepo{db: db}
}

// Insert adds a new tracked app and returns its generated ID. A zero
// LastCheckedAt is replaced with the current time.
func (r *TrackedAppRepo) Insert(ctx context.Context, app model.TrackedApp) (int64, error) {
	const query = `INSERT INTO tracked_apps (owner, repo_name, description, html_url, installed_version_tag,
		latest_known_release_tag, latest_release_id, latest_release_published_at, last_checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	checkedAt := app.LastCheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now().UTC()
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		app.Owner,
		app.RepoName,
		app.Description,
		app.HTMLURL,
		nullString(app.InstalledVersionTag),
		nullString(app.LatestKnownReleaseTag),
		nullInt64(app.LatestReleaseID),
		nullTime(app.LatestReleasePublishedAt),
		formatTime(checkedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return 0, fmt.Errorf("insert tracked app %s: %w", app.FullName(), driven.ErrAppAlreadyTracked)
		}
		return 0, fmt.Errorf("insert tracked app %s: %w", app.FullName(), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted id: %w", err)
	}

	return id, nil
}

// GetByID returns the tracked app with the given ID, or nil, nil if absent.
func (r *TrackedAppRepo) GetByID(ctx context.Context, id int64) (*model.TrackedApp, error) {
	query := `SELECT ` + trackedAppColumns + ` FROM tracked_apps WHERE id = ?`

	app, err := scanTrackedApp(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tracked app %d: %w", id, err)
	}

	return app, nil
}

// GetByOwnerRepo returns the tracked app for owner/repoName, or nil, nil if absent.
func (r *TrackedAppRepo) GetByOwnerRepo(ctx context.Context, owner, repoName string) (*model.TrackedApp, error) {
	query := `SELECT ` + trackedAppColumns + ` FROM tracked_apps WHERE owner = ? AND repo_name = ?`

	app, err := scanTrackedApp(r.db.Reader.QueryRowContext(ctx, query, owner, repoName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tracked app %s/%s: %w", owner, repoName, err)
	}

	return app, nil
}

// ListAll returns all tracked apps ordered by repository name.
func (r *TrackedAppRepo) ListAll(ctx context.Context) ([]model.TrackedApp, error) {
	query := `SELECT ` + trackedAppColumns + ` FROM tracked_apps ORDER BY repo_name ASC, owner ASC`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tracked apps: %w", err)
	}
	defer rows.Close()

	var apps []model.TrackedApp
	for rows.Next() {
		app, err := scanTrackedApp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tracked app: %w", err)
		}
		apps = append(apps, *app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked apps: %w", err)
	}

	return apps, nil
}

// Delete removes the tracked app with the given ID.
func (r *TrackedAppRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM tracked_apps WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete tracked app %d: %w", id, err)
	}

	return requireAffected(result, fmt.Sprintf("delete tracked app %d", id))
}

// UpdateInstalledVersion sets or clears the installed version tag.
func (r *TrackedAppRepo) UpdateInstalledVersion(ctx context.Context, id int64, tag *string) error {
	const query = `UPDATE tracked_apps SET installed_version_tag = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, nullString(tag), id)
	if err != nil {
		return fmt.Errorf("update installed version for %d: %w", id, err)
	}

	return requireAffected(result, fmt.Sprintf("update installed version for %d", id))
}

// UpdateLatestRelease stores the latest release info and the check timestamp.
func (r *TrackedAppRepo) UpdateLatestRelease(ctx context.Context, id int64, tag *string, releaseID *int64, publishedAt *time.Time, checkedAt time.Time) error {
	const query = `UPDATE tracked_apps SET
		latest_known_release_tag = ?,
		latest_release_id = ?,
		latest_release_published_at = ?,
		last_checked_at = ?
		WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query,
		nullString(tag),
		nullInt64(releaseID),
		nullTime(publishedAt),
		formatTime(checkedAt),
		id,
	)
	if err != nil {
		return fmt.Errorf("update latest release for %d: %w", id, err)
	}

	return requireAffected(result, fmt.Sprintf("update latest release for %d", id))
}

func requireAffected(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, driven.ErrAppNotFound)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTrackedApp(s scanner) (*model.TrackedApp, error) {
	var (
		app         model.TrackedApp
		installed   sql.NullString
		latestTag   sql.NullString
		releaseID   sql.NullInt64
		publishedAt sql.NullString
		checkedAt   string
	)

	err := s.Scan(
		&app.ID,
		&app.Owner,
		&app.RepoName,
		&app.Description,
		&app.HTMLURL,
		&installed,
		&latestTag,
		&releaseID,
		&publishedAt,
		&checkedAt,
	)
	if err != nil {
		return nil, err
	}

	if installed.Valid {
		app.InstalledVersionTag = &installed.String
	}
	if latestTag.Valid {
		app.LatestKnownReleaseTag = &latestTag.String
	}
	if releaseID.Valid {
		app.LatestReleaseID = &releaseID.Int64
	}
	if publishedAt.Valid {
		t, err := parseTime(publishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse latest_release_published_at: %w", err)
		}
		app.LatestReleasePublishedAt = &t
	}

	app.LastCheckedAt, err = parseTime(checkedAt)
	if err != nil {
		return nil, fmt.Errorf("parse last_checked_at: %w", err)
	}

	return &app, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
