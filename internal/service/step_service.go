package service

import (
	"context"
	"fmt"
	"strings"

	"cozytiny/internal/models"
	"cozytiny/internal/notifications"
	"cozytiny/internal/repository"
)

// StepInput is one step as the editor sends it. The editor uses both
// "image"/"video" and "image_url"/"video_url"; the *_url form wins when both
// are set. Client-side ids are not part of the input and are ignored.
type StepInput struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Image    *string `json:"image"`
	ImageURL *string `json:"image_url"`
	Video    *string `json:"video"`
	VideoURL *string `json:"video_url"`
}

type StepService struct {
	steps  repository.StepRepository
	events EventPublisher
}

// NewStepService wires the step rules. events may be nil.
func NewStepService(steps repository.StepRepository, events EventPublisher) *StepService {
	if events == nil {
		events = noopPublisher{}
	}
	return &StepService{steps: steps, events: events}
}

// CreateSteps appends steps to a post in input order.
func (s *StepService) CreateSteps(ctx context.Context, postID uint, in []StepInput) ([]models.Step, error) {
	steps, err := buildSteps(in)
	if err != nil {
		return nil, err
	}
	return s.steps.CreateMany(ctx, postID, steps)
}

// ListSteps returns a post's steps by position; a post without steps yields
// an empty slice.
func (s *StepService) ListSteps(ctx context.Context, postID uint) ([]models.Step, error) {
	return s.steps.ListByPost(ctx, postID)
}

// ReplaceSteps swaps the whole step list atomically. Positions follow input
// order.
func (s *StepService) ReplaceSteps(ctx context.Context, postID uint, in []StepInput) ([]models.Step, error) {
	steps, err := buildSteps(in)
	if err != nil {
		return nil, err
	}
	out, err := s.steps.ReplaceAll(ctx, postID, steps)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.events, notifications.ContentEvent{Type: notifications.EventStepsReplaced, PostID: postID})
	return out, nil
}

func buildSteps(in []StepInput) ([]models.Step, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]models.Step, 0, len(in))
	for i, st := range in {
		title := strings.TrimSpace(st.Title)
		if title == "" {
			return nil, models.NewFieldValidationError(fmt.Sprintf("steps[%d].title", i),
				fmt.Sprintf("Step %d: title is required", i+1))
		}
		out = append(out, models.Step{
			Position: i,
			Title:    title,
			Content:  st.Content,
			ImageURL: firstNonBlank(st.ImageURL, st.Image),
			VideoURL: firstNonBlank(st.VideoURL, st.Video),
		})
	}
	return out, nil
}

func firstNonBlank(vals ...*string) *string {
	for _, v := range vals {
		if v == nil {
			continue
		}
		if t := strings.TrimSpace(*v); t != "" {
			return &t
		}
	}
	return nil
}
