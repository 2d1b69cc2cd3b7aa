package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/url"
	"strings"

	"cozytiny/internal/models"
	"cozytiny/internal/service"

	"github.com/gofiber/fiber/v2"
)

// createPostRequest is the JSON form of a new post. Content may be sent as
// the segment array itself or as a string holding it.
type createPostRequest struct {
	Title        string              `json:"title"`
	MetaDesc     string              `json:"meta_desc"`
	Content      json.RawMessage     `json:"content" swaggertype:"array,object"`
	Category     string              `json:"category"`
	ThumbnailURL string              `json:"thumbnail_url"`
	Steps        []service.StepInput `json:"steps"`
}

type updatePostRequest struct {
	Title        *string         `json:"title"`
	Slug         *string         `json:"slug"`
	MetaDesc     *string         `json:"meta_desc"`
	Content      json.RawMessage `json:"content" swaggertype:"array,object"`
	Category     *string         `json:"category"`
	ThumbnailURL *string         `json:"thumbnail_url"`
}

// rawContent turns a JSON content value into the raw segment-array text. A
// JSON string is unwrapped; arrays and other values pass through as written.
func rawContent(raw json.RawMessage) (*string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, models.NewMalformedContentError(err)
		}
		return &s, nil
	}
	s := string(trimmed)
	return &s, nil
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Accepts multipart/form-data with a thumbnail file, or JSON with a thumbnail_url.
// @Tags posts
// @Accept multipart/form-data,json
// @Produce json
// @Param title formData string true "Post title"
// @Param meta_desc formData string true "Meta description"
// @Param content formData string true "Segment array as JSON"
// @Param category formData string true "Category"
// @Param thumbnail formData file false "Thumbnail image"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var (
		in       service.CreatePostInput
		uploaded *service.UploadResult
		err      error
	)
	if isMultipart(c) {
		in, uploaded, err = s.parseCreatePostForm(ctx, c)
	} else {
		in, err = parseCreatePostJSON(c)
	}
	if err != nil {
		return respondServiceError(c, err)
	}

	post, err := s.postService.CreatePost(ctx, in)
	if err != nil {
		s.uploadService.Discard(ctx, uploaded)
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

func (s *Server) parseCreatePostForm(ctx context.Context, c *fiber.Ctx) (service.CreatePostInput, *service.UploadResult, error) {
	in := service.CreatePostInput{
		Title:        c.FormValue("title"),
		MetaDesc:     c.FormValue("meta_desc"),
		Content:      c.FormValue("content"),
		Category:     c.FormValue("category"),
		ThumbnailURL: c.FormValue("thumbnail_url"),
	}
	if raw := strings.TrimSpace(c.FormValue("steps")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Steps); err != nil {
			return in, nil, models.NewFieldValidationError("steps", "Steps must be a JSON array")
		}
	}

	fh, err := c.FormFile("thumbnail")
	if err != nil {
		// No file part; CreatePost reports the missing thumbnail.
		return in, nil, nil
	}
	res, err := s.storeFormFile(ctx, fh, service.KindThumbnail)
	if err != nil {
		return in, nil, err
	}
	in.ThumbnailURL = res.URL
	return in, res, nil
}

func parseCreatePostJSON(c *fiber.Ctx) (service.CreatePostInput, error) {
	var req createPostRequest
	if err := c.BodyParser(&req); err != nil {
		return service.CreatePostInput{}, models.NewValidationError("Invalid request body")
	}
	raw, err := rawContent(req.Content)
	if err != nil {
		return service.CreatePostInput{}, err
	}
	in := service.CreatePostInput{
		Title:        req.Title,
		MetaDesc:     req.MetaDesc,
		Category:     req.Category,
		ThumbnailURL: req.ThumbnailURL,
		Steps:        req.Steps,
	}
	if raw != nil {
		in.Content = *raw
	}
	return in, nil
}

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Newest first. Category accepts the URL form (underscores for spaces).
// @Tags posts
// @Produce json
// @Param category query string false "Category filter"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Post
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	return s.listPosts(c, c.Query("category"))
}

// GetPostsByCategory handles GET /api/posts/category/:category
// @Summary List posts in a category
// @Tags posts
// @Produce json
// @Param category path string true "Category (URL form)"
// @Success 200 {array} models.Post
// @Router /posts/category/{category} [get]
func (s *Server) GetPostsByCategory(c *fiber.Ctx) error {
	// Route params arrive still percent-encoded ("Design_%26_Inspiration").
	category, err := url.PathUnescape(c.Params("category"))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewFieldValidationError("category", "Invalid category"))
	}
	return s.listPosts(c, category)
}

func (s *Server) listPosts(c *fiber.Ctx, category string) error {
	page := parsePagination(c, 0)
	posts, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Category: category,
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post by ID
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPostByID(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// GetPostBySlug handles GET /api/posts/slug/:slug
// @Summary Get a post by slug
// @Tags posts
// @Produce json
// @Param slug path string true "Post slug"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/slug/{slug} [get]
func (s *Server) GetPostBySlug(c *fiber.Ctx) error {
	post, err := s.postService.GetPostBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update a post
// @Description Omitted fields are left unchanged.
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param post body updatePostRequest true "Fields to change"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req updatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	raw, err := rawContent(req.Content)
	if err != nil {
		return respondServiceError(c, err)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), id, service.UpdatePostInput{
		Title:        req.Title,
		Slug:         req.Slug,
		MetaDesc:     req.MetaDesc,
		Content:      raw,
		Category:     req.Category,
		ThumbnailURL: req.ThumbnailURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post and its steps
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted successfully"})
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

// storeFormFile reads an uploaded part and runs it through the upload pipeline.
func (s *Server) storeFormFile(ctx context.Context, fh *multipart.FileHeader, kind service.UploadKind) (*service.UploadResult, error) {
	if fh.Size > s.uploadService.MaxUploadSizeBytes() {
		return nil, models.NewValidationError("File too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, models.NewValidationError("Could not read uploaded file")
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, s.uploadService.MaxUploadSizeBytes()+1))
	if err != nil {
		return nil, models.NewValidationError("Could not read uploaded file")
	}
	return s.uploadService.Upload(ctx, service.UploadInput{
		Kind:        kind,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     data,
	})
}
