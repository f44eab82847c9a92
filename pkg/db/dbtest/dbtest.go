// Package dbtest opens throwaway sqlite databases with the full schema applied.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/norberto-e-888/pos-app/pkg/db"
	"github.com/norberto-e-888/pos-app/pkg/db/models"
)

// Open returns an isolated in-memory database. A single pooled connection keeps the
// shared-cache database alive for the whole test and serialises writers like Postgres
// row locks would.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:pos_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

// Client wraps Open in the shared db.Client.
func Client(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.NewFromGorm(conn), conn
}
