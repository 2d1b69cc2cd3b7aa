// Package service holds the business rules that sit between the HTTP
// handlers and the repositories.
package service

import (
	"context"
	"strings"

	"cozytiny/internal/content"
	"cozytiny/internal/models"
	"cozytiny/internal/notifications"
	"cozytiny/internal/repository"
	"cozytiny/internal/slug"
)

// maxSlugSuffix bounds the retry-with-suffix policy.
const maxSlugSuffix = 20

type PostService struct {
	posts            repository.PostRepository
	steps            repository.StepRepository
	categories       *models.CategorySet
	events           EventPublisher
	suffixOnConflict bool
}

// CreatePostInput is the payload of a new post. Content is the raw JSON
// segment array as submitted.
type CreatePostInput struct {
	Title        string
	MetaDesc     string
	Content      string
	Category     string
	ThumbnailURL string
	Steps        []StepInput
}

type ListPostsInput struct {
	Category string
	Limit    int
	Offset   int
}

// UpdatePostInput is a partial update. A nil field is left unchanged; a
// non-nil field overwrites, and must not be blank.
type UpdatePostInput struct {
	Title        *string `json:"title"`
	Slug         *string `json:"slug"`
	MetaDesc     *string `json:"meta_desc"`
	Content      *string `json:"content"`
	Category     *string `json:"category"`
	ThumbnailURL *string `json:"thumbnail_url"`
}

// CategorySummary is one entry of the category listing.
type CategorySummary struct {
	Name  string `json:"name"`
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// NewPostService wires the post rules. events may be nil.
func NewPostService(
	posts repository.PostRepository,
	steps repository.StepRepository,
	categories *models.CategorySet,
	events EventPublisher,
	suffixOnConflict bool,
) *PostService {
	if events == nil {
		events = noopPublisher{}
	}
	if categories == nil {
		categories = models.NewCategorySet(nil)
	}
	return &PostService{
		posts:            posts,
		steps:            steps,
		categories:       categories,
		events:           events,
		suffixOnConflict: suffixOnConflict,
	}
}

// Categories returns the configured category set.
func (s *PostService) Categories() *models.CategorySet {
	return s.categories
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, models.NewFieldValidationError("title", "Title is required")
	}
	metaDesc := strings.TrimSpace(in.MetaDesc)
	if metaDesc == "" {
		return nil, models.NewFieldValidationError("meta_desc", "Meta description is required")
	}
	if strings.TrimSpace(in.ThumbnailURL) == "" {
		return nil, models.NewFieldValidationError("thumbnail", "thumbnail required")
	}
	category, err := s.resolveCategory(in.Category)
	if err != nil {
		return nil, err
	}

	base := slug.Make(title)
	if base == "" {
		return nil, models.NewFieldValidationError("title", "Title must contain at least one letter or digit")
	}

	segments, err := content.Normalize(in.Content)
	if err != nil {
		return nil, models.NewMalformedContentError(err)
	}
	serialized, err := content.Serialize(segments)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	steps, err := buildSteps(in.Steps)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:        title,
		Slug:         base,
		ThumbnailURL: strings.TrimSpace(in.ThumbnailURL),
		MetaDesc:     metaDesc,
		Content:      serialized,
		Category:     category,
		ImageURL:     firstImageURL(segments),
		Steps:        steps,
	}

	err = s.posts.Create(ctx, post)
	for n := 2; err != nil && s.suffixOnConflict && n <= maxSlugSuffix && models.ErrorCode(err) == models.CodeConflict; n++ {
		resetForRetry(post)
		post.Slug = slug.WithSuffix(base, n)
		err = s.posts.Create(ctx, post)
	}
	if err != nil {
		return nil, err
	}

	post.Segments = segments
	if post.Steps == nil {
		post.Steps = []models.Step{}
	}
	publish(ctx, s.events, notifications.ContentEvent{
		Type: notifications.EventPostCreated, PostID: post.ID, Slug: post.Slug, Category: post.Category,
	})
	return post, nil
}

func (s *PostService) GetPostByID(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, post)
}

func (s *PostService) GetPostBySlug(ctx context.Context, postSlug string) (*models.Post, error) {
	postSlug = strings.TrimSpace(postSlug)
	if postSlug == "" {
		return nil, models.NewFieldValidationError("slug", "Slug is required")
	}
	post, err := s.posts.GetBySlug(ctx, postSlug)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, post)
}

// ListPosts returns posts newest first. The category may be given in its URL
// form; an unknown category simply matches nothing.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	posts, err := s.posts.List(ctx, repository.PostFilter{
		Category: models.NormalizeCategory(in.Category),
		Limit:    in.Limit,
		Offset:   in.Offset,
	})
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		p.Segments = content.ParseLenient(ctx, p.Content)
	}
	return posts, nil
}

func (s *PostService) UpdatePost(ctx context.Context, id uint, in UpdatePostInput) (*models.Post, error) {
	title, err := requiredField("title", "Title", in.Title)
	if err != nil {
		return nil, err
	}
	metaDesc, err := requiredField("meta_desc", "Meta description", in.MetaDesc)
	if err != nil {
		return nil, err
	}
	thumbnail, err := requiredField("thumbnail_url", "Thumbnail", in.ThumbnailURL)
	if err != nil {
		return nil, err
	}

	var newSlug *string
	if in.Slug != nil {
		v := strings.TrimSpace(*in.Slug)
		if err := slug.Validate(v); err != nil {
			return nil, models.NewFieldValidationError("slug", err.Error())
		}
		newSlug = &v
	}

	var category *string
	if in.Category != nil {
		c, err := s.resolveCategory(*in.Category)
		if err != nil {
			return nil, err
		}
		category = &c
	}

	var segments []content.Segment
	var serialized *string
	if in.Content != nil {
		segments, err = content.Normalize(*in.Content)
		if err != nil {
			return nil, models.NewMalformedContentError(err)
		}
		v, err := content.Serialize(segments)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		serialized = &v
	}

	post, err := s.posts.Update(ctx, id, func(p *models.Post) error {
		if title != nil {
			p.Title = *title
		}
		if newSlug != nil {
			p.Slug = *newSlug
		}
		if metaDesc != nil {
			p.MetaDesc = *metaDesc
		}
		if thumbnail != nil {
			p.ThumbnailURL = *thumbnail
		}
		if category != nil {
			p.Category = *category
		}
		if serialized != nil {
			p.Content = *serialized
			p.ImageURL = firstImageURL(segments)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.events, notifications.ContentEvent{
		Type: notifications.EventPostUpdated, PostID: post.ID, Slug: post.Slug, Category: post.Category,
	})
	return s.hydrate(ctx, post)
}

func (s *PostService) DeletePost(ctx context.Context, id uint) error {
	post, err := s.posts.Delete(ctx, id)
	if err != nil {
		return err
	}
	publish(ctx, s.events, notifications.ContentEvent{
		Type: notifications.EventPostDeleted, PostID: post.ID, Slug: post.Slug,
	})
	return nil
}

// ListCategories returns every configured category with its post count, in
// configured order.
func (s *PostService) ListCategories(ctx context.Context) ([]CategorySummary, error) {
	counts, err := s.posts.CountByCategory(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]int64, len(counts))
	for _, c := range counts {
		byName[c.Category] = c.Count
	}

	names := s.categories.Names()
	out := make([]CategorySummary, 0, len(names))
	for _, name := range names {
		out = append(out, CategorySummary{Name: name, Key: models.CategoryKey(name), Count: byName[name]})
	}
	return out, nil
}

// SitemapEntries lists every post slug with its last modification time.
func (s *PostService) SitemapEntries(ctx context.Context) ([]models.SitemapEntry, error) {
	return s.posts.SitemapEntries(ctx)
}

// hydrate decodes the stored content and attaches the post's steps.
func (s *PostService) hydrate(ctx context.Context, post *models.Post) (*models.Post, error) {
	post.Segments = content.ParseLenient(ctx, post.Content)
	steps, err := s.steps.ListByPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	post.Steps = steps
	return post, nil
}

// resolveCategory accepts the stored name or its URL form.
func (s *PostService) resolveCategory(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", models.NewFieldValidationError("category", "Category is required")
	}
	if s.categories.Contains(name) {
		return name, nil
	}
	if normalized := models.NormalizeCategory(name); s.categories.Contains(normalized) {
		return normalized, nil
	}
	return "", models.NewFieldValidationError("category", "Unknown category: "+name)
}

func requiredField(field, label string, v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil, models.NewFieldValidationError(field, label+" cannot be empty")
	}
	return &trimmed, nil
}

func firstImageURL(segments []content.Segment) *string {
	img, ok := content.FirstImage(segments)
	if !ok {
		return nil
	}
	v := img.Value
	return &v
}

func resetForRetry(post *models.Post) {
	post.ID = 0
	for i := range post.Steps {
		post.Steps[i].ID = 0
		post.Steps[i].PostID = 0
	}
}
