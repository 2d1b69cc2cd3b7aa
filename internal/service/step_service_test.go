package service

import (
	"context"
	"testing"

	"cozytiny/internal/models"
	"cozytiny/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStepService_CreateSteps(t *testing.T) {
	repo := noopStepRepo()
	var gotPost uint
	var got []models.Step
	repo.createManyFn = func(_ context.Context, postID uint, steps []models.Step) ([]models.Step, error) {
		gotPost, got = postID, steps
		return steps, nil
	}
	svc := NewStepService(repo, nil)

	out, err := svc.CreateSteps(context.Background(), 4, []StepInput{
		{Title: " Plan ", Content: "* bullet\n* list"},
		{Title: "Build", Image: strPtr("/postimage/b.png"), VideoURL: strPtr(" ")},
	})
	require.NoError(t, err)
	assert.Equal(t, uint(4), gotPost)
	require.Len(t, got, 2)
	assert.Equal(t, "Plan", got[0].Title)
	assert.Equal(t, "* bullet\n* list", got[0].Content, "step content is stored verbatim")
	assert.Nil(t, got[0].ImageURL)
	assert.Nil(t, got[0].VideoURL)
	assert.Equal(t, "/postimage/b.png", *got[1].ImageURL)
	assert.Nil(t, got[1].VideoURL, "blank urls are treated as absent")
	assert.Len(t, out, 2)
}

func TestStepService_CreateSteps_Errors(t *testing.T) {
	repo := noopStepRepo()
	repo.createManyFn = func(_ context.Context, postID uint, _ []models.Step) ([]models.Step, error) {
		return nil, models.NewNotFoundError("Post", postID)
	}
	svc := NewStepService(repo, nil)

	_, err := svc.CreateSteps(context.Background(), 1, []StepInput{{Title: ""}})
	assertAppError(t, err, models.CodeValidation)

	_, err = svc.CreateSteps(context.Background(), 99, []StepInput{{Title: "ok"}})
	assertAppError(t, err, models.CodeNotFound)
}

func TestStepService_ListSteps(t *testing.T) {
	svc := NewStepService(noopStepRepo(), nil)
	steps, err := svc.ListSteps(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, steps)
	assert.Empty(t, steps)
}

func TestStepService_ReplaceSteps(t *testing.T) {
	events := new(mockPublisher)
	events.On("PublishContentEvent", mock.Anything, mock.MatchedBy(func(ev notifications.ContentEvent) bool {
		return ev.Type == notifications.EventStepsReplaced && ev.PostID == 2
	})).Return(nil).Twice()

	repo := noopStepRepo()
	var got []models.Step
	repo.replaceAllFn = func(_ context.Context, _ uint, steps []models.Step) ([]models.Step, error) {
		got = steps
		return steps, nil
	}
	svc := NewStepService(repo, events)

	_, err := svc.ReplaceSteps(context.Background(), 2, []StepInput{
		{Title: "B", Video: strPtr("https://youtu.be/b"), VideoURL: strPtr("https://youtu.be/preferred")},
		{Title: "A"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Position)
	assert.Equal(t, "https://youtu.be/preferred", *got[0].VideoURL)
	assert.Equal(t, 1, got[1].Position)

	// An empty replacement clears the list.
	_, err = svc.ReplaceSteps(context.Background(), 2, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	events.AssertExpectations(t)
}
