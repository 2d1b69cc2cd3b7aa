package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"cozytiny/internal/cache"
	"cozytiny/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepTitles(steps []models.Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Title)
	}
	return out
}

func TestStepRepository_CreateManyAndList(t *testing.T) {
	db := setupSQLiteDB(t)
	posts := NewPostRepository(db, cache.New(nil))
	repo := NewStepRepository(db, cache.New(nil))
	ctx := context.Background()

	post := newPost("guide", "Building & Construction")
	require.NoError(t, posts.Create(ctx, post))

	empty, err := repo.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	created, err := repo.CreateMany(ctx, post.ID, []models.Step{
		{Title: "Plan", Content: "Sketch it", Position: 99},
		{Title: "Build", Content: "[VIDEO]https://example.com/v[/VIDEO]", VideoURL: strPtr("https://example.com/v")},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, 0, created[0].Position)
	assert.Equal(t, 1, created[1].Position)
	assert.Nil(t, created[0].VideoURL)
	assert.Nil(t, created[0].ImageURL)

	more, err := repo.CreateMany(ctx, post.ID, []models.Step{{Title: "Paint", Content: "Two coats"}})
	require.NoError(t, err)
	assert.Equal(t, 2, more[0].Position)

	listed, err := repo.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Plan", "Build", "Paint"}, stepTitles(listed))
	assert.Equal(t, "[VIDEO]https://example.com/v[/VIDEO]", listed[1].Content)

	none, err := repo.CreateMany(ctx, post.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStepRepository_UnknownPost(t *testing.T) {
	repo := NewStepRepository(setupSQLiteDB(t), cache.New(nil))
	ctx := context.Background()

	_, err := repo.CreateMany(ctx, 77, []models.Step{{Title: "x", Content: "y"}})
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	_, err = repo.ReplaceAll(ctx, 77, []models.Step{{Title: "x", Content: "y"}})
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestStepRepository_ReplaceAll(t *testing.T) {
	db := setupSQLiteDB(t)
	posts := NewPostRepository(db, cache.New(nil))
	repo := NewStepRepository(db, cache.New(nil))
	ctx := context.Background()

	post := newPost("replace-me", "Uncategorized",
		models.Step{Title: "old 1", Content: "a"},
		models.Step{Title: "old 2", Content: "b", Position: 1},
	)
	require.NoError(t, posts.Create(ctx, post))

	replaced, err := repo.ReplaceAll(ctx, post.ID, []models.Step{
		{ID: 1234, Title: "new B", Content: "b"},
		{Title: "new A", Content: "a", ImageURL: strPtr("/postimage/a.jpg")},
	})
	require.NoError(t, err)
	require.Len(t, replaced, 2)
	assert.NotEqual(t, uint(1234), replaced[0].ID)

	listed, err := repo.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"new B", "new A"}, stepTitles(listed))
	assert.Equal(t, []int{0, 1}, []int{listed[0].Position, listed[1].Position})

	cleared, err := repo.ReplaceAll(ctx, post.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, cleared)

	listed, err = repo.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestStepRepository_ReplaceAllRollsBackOnInsertFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewStepRepository(db, cache.New(nil))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "posts" WHERE id = \$1 .*FOR UPDATE`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "steps" WHERE post_id = $1`)).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "steps"`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.ReplaceAll(context.Background(), 1, []models.Step{{Title: "new", Content: "c"}})
	require.Error(t, err)
	assert.Equal(t, models.CodeStorage, models.ErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStepRepository_ReplaceAllKeepsOldStepsWhenTransactionFails(t *testing.T) {
	db := setupSQLiteDB(t)
	posts := NewPostRepository(db, cache.New(nil))
	repo := NewStepRepository(db, cache.New(nil))
	ctx := context.Background()

	post := newPost("atomic", "Uncategorized",
		models.Step{Title: "keep 1", Content: "a"},
		models.Step{Title: "keep 2", Content: "b", Position: 1},
	)
	require.NoError(t, posts.Create(ctx, post))

	// Abort the insert after the delete has already run inside the transaction.
	require.NoError(t, db.Exec(`CREATE TRIGGER fail_step_insert BEFORE INSERT ON steps
		WHEN NEW.title = 'explode' BEGIN SELECT RAISE(ABORT, 'simulated failure'); END`).Error)

	_, err := repo.ReplaceAll(ctx, post.ID, []models.Step{
		{Title: "fine", Content: "x"},
		{Title: "explode", Content: "y"},
	})
	require.Error(t, err)

	listed, err := repo.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep 1", "keep 2"}, stepTitles(listed))
}

func TestStepRepository_CreateManyLocksPost(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewStepRepository(db, cache.New(nil))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "posts" WHERE id = \$1 .*FOR UPDATE`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta(`COALESCE(MAX(position) + 1, 0)`)).
		WithArgs(7).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.CreateMany(context.Background(), 7, []models.Step{{Title: "a"}})
	require.Error(t, err)
	assert.Equal(t, models.CodeStorage, models.ErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
