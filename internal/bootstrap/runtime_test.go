package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"cozytiny/internal/config"
	"cozytiny/internal/database"
	"cozytiny/internal/models"
	"cozytiny/internal/upload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Env:           "test",
		DBDriver:      database.DriverSQLite,
		DBSQLitePath:  filepath.Join(dir, "cozytiny.db"),
		DBSchemaMode:  database.SchemaModeAuto,
		UploadBackend: upload.BackendLocal,
		UploadDir:     filepath.Join(dir, "data"),
	}
}

func TestInitRuntime_SQLiteWithLocalStore(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)

	rt, err := InitRuntime(ctx, cfg, Options{ApplySchema: true, WithStore: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	assert.Nil(t, rt.Redis)
	require.NotNil(t, rt.Store)
	assert.Equal(t, upload.BackendLocal, rt.Store.Backend())

	assert.True(t, rt.DB.Migrator().HasTable(&models.Post{}))
	assert.True(t, rt.DB.Migrator().HasTable(&models.Step{}))
}

func TestInitRuntime_UnknownBackend(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)
	cfg.UploadBackend = "ftp"

	_, err := InitRuntime(ctx, cfg, Options{WithStore: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload")
}

func TestInitRuntime_UnknownDriver(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.DBDriver = "oracle"

	_, err := InitRuntime(context.Background(), cfg, Options{})
	require.Error(t, err)
}

func TestRuntimeClose(t *testing.T) {
	ctx := context.Background()
	rt, err := InitRuntime(ctx, sqliteConfig(t), Options{})
	require.NoError(t, err)

	assert.NoError(t, rt.Close(ctx))
	assert.NoError(t, rt.ShutdownTracing(ctx))
}
