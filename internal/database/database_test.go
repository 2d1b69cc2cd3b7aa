package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"cozytiny/internal/config"
	"cozytiny/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:          "test",
		DBDriver:     DriverSQLite,
		DBSQLitePath: filepath.Join(t.TempDir(), "cozytiny.db"),
		DBSchemaMode: SchemaModeHybrid,
	}
}

func TestDialector(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		want    string
		wantErr bool
	}{
		{name: "postgres", cfg: config.Config{DBDriver: DriverPostgres}, want: "postgres"},
		{name: "empty defaults to postgres", cfg: config.Config{}, want: "postgres"},
		{name: "mysql", cfg: config.Config{DBDriver: DriverMySQL}, want: "mysql"},
		{name: "sqlite", cfg: config.Config{DBDriver: DriverSQLite, DBSQLitePath: "x.db"}, want: "sqlite"},
		{name: "unknown", cfg: config.Config{DBDriver: "oracle"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Dialector(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

func TestDialector_DSN(t *testing.T) {
	cfg := &config.Config{
		DBDriver: DriverMySQL, DBHost: "db", DBPort: "3306",
		DBUser: "blog", DBPassword: "pw", DBName: "cozytiny",
	}
	d, err := Dialector(cfg)
	require.NoError(t, err)
	assert.Equal(t, "blog:pw@tcp(db:3306)/cozytiny?charset=utf8mb4&parseTime=True&loc=UTC", d.(*mysql.Dialector).DSN)

	cfg.DBDriver = DriverPostgres
	cfg.DBPort = "5432"
	d, err = Dialector(cfg)
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=blog password=pw dbname=cozytiny sslmode=disable", d.(*postgres.Dialector).DSN)
}

func TestConnect_SQLiteAppliesSchema(t *testing.T) {
	cfg := sqliteConfig(t)

	db, err := Connect(cfg)
	require.NoError(t, err)
	require.NoError(t, ApplySchema(context.Background(), db, cfg))

	assert.True(t, db.Migrator().HasTable(&models.Post{}))
	assert.True(t, db.Migrator().HasTable(&models.Step{}))
	assert.True(t, db.Migrator().HasIndex(&models.Post{}, "Slug"))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	assert.NoError(t, Ping(context.Background(), db))
}

func TestConnect_SQLiteCascadeDelete(t *testing.T) {
	cfg := sqliteConfig(t)
	db, err := Connect(cfg)
	require.NoError(t, err)
	require.NoError(t, ApplySchema(context.Background(), db, cfg))

	post := models.Post{Title: "t", Slug: "t", ThumbnailURL: "/uploads/t.jpg", MetaDesc: "m", Content: "[]", Category: "Tiny Homes",
		Steps: []models.Step{{Title: "a", Content: "x"}, {Title: "b", Content: "y", Position: 1}}}
	require.NoError(t, db.Create(&post).Error)
	require.NoError(t, db.Delete(&models.Post{}, post.ID).Error)

	var remaining int64
	require.NoError(t, db.Model(&models.Step{}).Where("post_id = ?", post.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestConfigurePool(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.DBDriver = DriverSQLite
	db, err := gorm.Open(mustDialector(t, cfg), &gorm.Config{})
	require.NoError(t, err)

	cfg.DBDriver = DriverPostgres
	cfg.DBMaxOpenConns = 10
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func mustDialector(t *testing.T, cfg *config.Config) gorm.Dialector {
	t.Helper()
	d, err := Dialector(cfg)
	require.NoError(t, err)
	return d
}

func TestCustomGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := NewGormLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	fc := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), fc, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	l.Trace(context.Background(), time.Now(), fc, errors.New("boom"))
	assert.Contains(t, buf.String(), "GORM query error")

	buf.Reset()
	l.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)
	assert.Contains(t, buf.String(), "GORM slow query")

	buf.Reset()
	silent := l.LogMode(logger.Silent)
	silent.Trace(context.Background(), time.Now(), fc, errors.New("boom"))
	assert.Empty(t, buf.String())
}
