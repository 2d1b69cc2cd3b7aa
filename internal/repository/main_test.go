package repository

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"cozytiny/internal/database"
	"cozytiny/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// setupSQLiteDB returns an isolated in-memory database with the real schema
// and foreign keys enforced.
func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func newPost(slug, category string, steps ...models.Step) *models.Post {
	return &models.Post{
		Title:        "Title " + slug,
		Slug:         slug,
		ThumbnailURL: "/uploads/" + slug + ".jpg",
		MetaDesc:     "About " + slug,
		Content:      `[{"type":"text","value":"hello"}]`,
		Category:     category,
		Steps:        steps,
		CreatedAt:    time.Now(),
	}
}

func strPtr(s string) *string { return &s }
