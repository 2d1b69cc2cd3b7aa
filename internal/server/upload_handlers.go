package server

import (
	"cozytiny/internal/models"
	"cozytiny/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadContentImage handles POST /api/upload
// @Summary Upload an inline content image
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image file"
// @Success 200 {object} map[string]string
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /upload [post]
func (s *Server) UploadContentImage(c *fiber.Ctx) error {
	res, err := s.uploadField(c, "file", service.KindContentImage)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"url":      res.URL,
		"webp_url": res.WebPURL,
		"width":    res.Width,
		"height":   res.Height,
	})
}

// UploadThumbnail handles POST /api/uploads
// @Summary Upload a post thumbnail
// @Description The image is downscaled to the configured maximum edge.
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Param thumbnail formData file true "Image file"
// @Success 200 {object} map[string]string
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /uploads [post]
func (s *Server) UploadThumbnail(c *fiber.Ctx) error {
	res, err := s.uploadField(c, "thumbnail", service.KindThumbnail)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"thumbnail_url": res.URL,
		"webp_url":      res.WebPURL,
		"width":         res.Width,
		"height":        res.Height,
	})
}

func (s *Server) uploadField(c *fiber.Ctx, field string, kind service.UploadKind) (*service.UploadResult, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, models.NewFieldValidationError(field, "No file uploaded")
	}
	return s.storeFormFile(c.UserContext(), fh, kind)
}
