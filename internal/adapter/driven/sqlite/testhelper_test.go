package sqlite

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestDB returns a migrated in-memory database unique to the test.
// cache=shared lets the writer and reader pools see the same data.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	dsn := "file:" + url.PathEscape(t.Name()) + "?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"

	writer, err := openPool(ctx, dsn, 1)
	require.NoError(t, err, "open writer")
	reader, err := openPool(ctx, dsn, readerPoolSize)
	require.NoError(t, err, "open reader")

	db := &DB{Writer: writer, Reader: reader, path: dsn}
	t.Cleanup(func() { _ = db.Close() })

	_, err = RunMigrations(db.Writer)
	require.NoError(t, err, "run migrations")
	return db
}
