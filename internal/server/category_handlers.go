package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetCategories handles GET /api/categories
// @Summary List categories
// @Description Every configured category with its URL key and post count.
// @Tags categories
// @Produce json
// @Success 200 {array} service.CategorySummary
// @Router /categories [get]
func (s *Server) GetCategories(c *fiber.Ctx) error {
	summaries, err := s.postService.ListCategories(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(summaries)
}
