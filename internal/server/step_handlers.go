package server

import (
	"bytes"
	"encoding/json"

	"cozytiny/internal/models"
	"cozytiny/internal/service"

	"github.com/gofiber/fiber/v2"
)

// parseStepsBody accepts either a bare JSON array of steps or {"steps": [...]}.
func parseStepsBody(body []byte) ([]service.StepInput, error) {
	body = bytes.TrimSpace(body)
	var steps []service.StepInput
	if len(body) > 0 && body[0] == '{' {
		var wrapped struct {
			Steps []service.StepInput `json:"steps"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, models.NewFieldValidationError("steps", "Steps must be a JSON array")
		}
		steps = wrapped.Steps
	} else if err := json.Unmarshal(body, &steps); err != nil {
		return nil, models.NewFieldValidationError("steps", "Steps must be a JSON array")
	}
	if steps == nil {
		steps = []service.StepInput{}
	}
	return steps, nil
}

// GetSteps handles GET /api/steps/:postId
// @Summary List a post's steps
// @Tags steps
// @Produce json
// @Param postId path int true "Post ID"
// @Success 200 {array} models.Step
// @Router /steps/{postId} [get]
func (s *Server) GetSteps(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}
	steps, err := s.stepService.ListSteps(c.UserContext(), postID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(nonNilSteps(steps))
}

// CreateSteps handles POST /api/steps/:postId
// @Summary Append steps to a post
// @Tags steps
// @Accept json
// @Produce json
// @Param postId path int true "Post ID"
// @Param steps body []service.StepInput true "Steps in order"
// @Success 201 {array} models.Step
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /steps/{postId} [post]
func (s *Server) CreateSteps(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}
	in, err := parseStepsBody(c.Body())
	if err != nil {
		return respondServiceError(c, err)
	}
	steps, err := s.stepService.CreateSteps(c.UserContext(), postID, in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(nonNilSteps(steps))
}

// ReplaceSteps handles PUT /api/steps/:postId
// @Summary Replace all steps of a post
// @Description Client-side ids are ignored; positions follow array order.
// @Tags steps
// @Accept json
// @Produce json
// @Param postId path int true "Post ID"
// @Param steps body []service.StepInput true "Steps in order"
// @Success 200 {array} models.Step
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /steps/{postId} [put]
func (s *Server) ReplaceSteps(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}
	in, err := parseStepsBody(c.Body())
	if err != nil {
		return respondServiceError(c, err)
	}
	steps, err := s.stepService.ReplaceSteps(c.UserContext(), postID, in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(nonNilSteps(steps))
}

func nonNilSteps(steps []models.Step) []models.Step {
	if steps == nil {
		return []models.Step{}
	}
	return steps
}
