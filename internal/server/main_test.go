package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"cozytiny/internal/config"
	"cozytiny/internal/database"
	"cozytiny/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

type testEnv struct {
	srv   *Server
	app   *fiber.App
	store *testutil.MemoryStore
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                 "0",
		Env:                  "test",
		SiteURL:              "https://cozytiny.example",
		UploadMaxSizeMB:      1,
		UploadThumbnailMaxPx: 64,
	}
}

func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))
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

func setupServer(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	store := testutil.NewMemoryStore()
	srv, err := NewServerWithDeps(cfg, setupSQLiteDB(t), nil, store)
	require.NoError(t, err)

	return &testEnv{srv: srv, app: srv.NewApp(), store: store}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, body
}

func (e *testEnv) doJSON(t *testing.T, method, path string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return e.do(t, req)
}

// multipartRequest builds a form with text fields and at most one file part.
func multipartRequest(t *testing.T, path string, fields map[string]string, fileField, fileName string, file []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

// validPost is a JSON create payload that passes every rule.
func validPost(title string) map[string]any {
	return map[string]any{
		"title":         title,
		"meta_desc":     "A short description",
		"category":      "Eco-Living Tips",
		"thumbnail_url": "/uploads/cover.png",
		"content": []map[string]string{
			{"type": "text", "value": "Hello"},
			{"type": "image", "value": "/postimage/a.png"},
		},
	}
}
