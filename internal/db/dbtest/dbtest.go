// Package dbtest opens isolated in-memory databases for tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sujalbistaa/payboard/internal/db"
)

// Open returns a migrated in-memory SQLite database private to t.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	// A single connection keeps the shared-cache memory database alive and
	// avoids table lock errors between pooled connections
	gdb, err := db.Open(db.Config{
		URL:          fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(t.Context(), gdb))
	t.Cleanup(func() {
		_ = db.Close(gdb)
	})
	return gdb
}
