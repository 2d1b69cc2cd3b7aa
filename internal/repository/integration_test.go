//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"cozytiny/internal/cache"
	"cozytiny/internal/database"
	"cozytiny/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupPostgres starts a throwaway PostgreSQL container with the SQL migrations applied.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:alpine",
		tcpostgres.WithDatabase("cozytiny"),
		tcpostgres.WithUsername("cozytiny"),
		tcpostgres.WithPassword("cozytiny"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(ctx, db))
	return db
}

func TestPostgres_ConcurrentCreateSameSlug(t *testing.T) {
	db := setupPostgres(t)
	repo := NewPostRepository(db, cache.New(nil))
	ctx := context.Background()

	const writers = 8
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Create(ctx, newPost("race", "Uncategorized"))
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch models.ErrorCode(err) {
		case "":
			ok++
		case models.CodeConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, writers-1, conflicts)
}

func TestPostgres_CascadeAndReplace(t *testing.T) {
	db := setupPostgres(t)
	posts := NewPostRepository(db, cache.New(nil))
	steps := NewStepRepository(db, cache.New(nil))
	ctx := context.Background()

	post := newPost("pg-steps", "Uncategorized",
		models.Step{Title: "1", Content: "a"},
		models.Step{Title: "2", Content: "b", Position: 1},
		models.Step{Title: "3", Content: "c", Position: 2},
	)
	require.NoError(t, posts.Create(ctx, post))

	replaced, err := steps.ReplaceAll(ctx, post.ID, []models.Step{{Title: "only", Content: "x"}})
	require.NoError(t, err)
	require.Len(t, replaced, 1)

	_, err = posts.Update(ctx, post.ID, func(p *models.Post) error {
		p.Title = "locked update"
		return nil
	})
	require.NoError(t, err)

	_, err = posts.Delete(ctx, post.ID)
	require.NoError(t, err)

	remaining, err := steps.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
