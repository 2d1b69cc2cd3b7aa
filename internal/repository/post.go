package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"cozytiny/internal/cache"
	"cozytiny/internal/content"
	"cozytiny/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostFilter narrows List. Limit 0 means no limit.
type PostFilter struct {
	Category string
	Limit    int
	Offset   int
}

// CategoryCount is one row of CountByCategory.
type CategoryCount struct {
	Category string
	Count    int64
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	// Create inserts post and any post.Steps in one transaction.
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	List(ctx context.Context, filter PostFilter) ([]*models.Post, error)
	// Update loads the post, lets apply mutate it, and writes it back in one transaction.
	Update(ctx context.Context, id uint, apply func(*models.Post) error) (*models.Post, error)
	// Delete removes the post; its steps go with it through the foreign key cascade.
	Delete(ctx context.Context, id uint) (*models.Post, error)
	CountByCategory(ctx context.Context) ([]CategoryCount, error)
	SitemapEntries(ctx context.Context) ([]models.SitemapEntry, error)
	// MediaReferences lists every media path referenced by any post or step.
	MediaReferences(ctx context.Context) ([]string, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db    *gorm.DB
	cache *cache.Cache
	inst  instrument
}

// NewPostRepository creates a new post repository. c may wrap a nil client.
func NewPostRepository(db *gorm.DB, c *cache.Cache) PostRepository {
	return &postRepository{db: db, cache: c, inst: newInstrument(db, "posts")}
}

func slugConflict(err error, slug string) error {
	err = translateError(err, "Post", slug)
	if models.ErrorCode(err) == models.CodeConflict {
		var appErr *models.AppError
		errors.As(err, &appErr)
		return models.NewConflictError(fmt.Sprintf("slug %q is already taken", slug), appErr.Err)
	}
	return err
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) (err error) {
	ctx, end := r.inst.begin(ctx, "Create")
	defer func() { end(err) }()

	if err = r.db.WithContext(ctx).Create(post).Error; err != nil {
		return slugConflict(err, post.Slug)
	}
	r.inst.log.LogCreate(ctx, map[string]interface{}{"id": post.ID, "slug": post.Slug, "steps": len(post.Steps)})
	r.cache.InvalidatePost(ctx, post.ID, post.Slug)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (_ *models.Post, err error) {
	ctx, end := r.inst.begin(ctx, "GetByID")
	defer func() { end(err) }()

	var post models.Post
	err = r.cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		return r.db.WithContext(ctx).First(&post, id).Error
	})
	if err != nil {
		return nil, translateError(err, "Post", id)
	}
	r.inst.log.LogRead(ctx, map[string]interface{}{"id": id})
	return &post, nil
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (_ *models.Post, err error) {
	ctx, end := r.inst.begin(ctx, "GetBySlug")
	defer func() { end(err) }()

	var post models.Post
	err = r.cache.Aside(ctx, cache.PostSlugKey(slug), &post, cache.PostTTL, func() error {
		return r.db.WithContext(ctx).Where("slug = ?", slug).First(&post).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundBySlugError("Post", slug)
		}
		return nil, translateError(err, "Post", slug)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter) (_ []*models.Post, err error) {
	ctx, end := r.inst.begin(ctx, "List")
	defer func() { end(err) }()

	category := models.NormalizeCategory(filter.Category)
	key := fmt.Sprintf("%s:%d:%d", cache.PostsListKey(category), filter.Limit, filter.Offset)

	posts := []*models.Post{}
	err = r.cache.AsideGroup(ctx, cache.PostsListGroup, key, &posts, cache.PostsListTTL, func() error {
		q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
		if category != "" {
			q = q.Where("category = ?", category)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
		return q.Find(&posts).Error
	})
	if err != nil {
		return nil, translateError(err, "Post", nil)
	}
	return posts, nil
}

// updatableColumns lists every column Update may write; associations are never touched.
var updatableColumns = []string{"title", "slug", "thumbnail_url", "meta_desc", "content", "category", "image_url", "updated_at"}

func (r *postRepository) Update(ctx context.Context, id uint, apply func(*models.Post) error) (_ *models.Post, err error) {
	ctx, end := r.inst.begin(ctx, "Update")
	defer func() { end(err) }()

	var post models.Post
	var oldSlug string
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&post, id).Error; err != nil {
			return translateError(err, "Post", id)
		}
		oldSlug = post.Slug

		if err := apply(&post); err != nil {
			return err
		}

		return tx.Model(&post).
			Omit(clause.Associations).
			Select(updatableColumns).
			Updates(&post).Error
	})
	if err != nil {
		return nil, slugConflict(err, post.Slug)
	}

	r.inst.log.LogUpdate(ctx, map[string]interface{}{"id": id, "slug": post.Slug})
	r.cache.InvalidatePost(ctx, id, oldSlug, post.Slug)
	return &post, nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) (_ *models.Post, err error) {
	ctx, end := r.inst.begin(ctx, "Delete")
	defer func() { end(err) }()

	var post models.Post
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id", "slug").First(&post, id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
	if err != nil {
		return nil, translateError(err, "Post", id)
	}

	r.inst.log.LogDelete(ctx, map[string]interface{}{"id": id, "slug": post.Slug})
	r.cache.InvalidatePost(ctx, id, post.Slug)
	return &post, nil
}

func (r *postRepository) CountByCategory(ctx context.Context) (_ []CategoryCount, err error) {
	ctx, end := r.inst.begin(ctx, "CountByCategory")
	defer func() { end(err) }()

	counts := []CategoryCount{}
	err = r.cache.Aside(ctx, cache.CategoryCountsKey, &counts, cache.PostsListTTL, func() error {
		return r.db.WithContext(ctx).Model(&models.Post{}).
			Select("category, COUNT(*) AS count").
			Group("category").
			Order("category").
			Scan(&counts).Error
	})
	if err != nil {
		return nil, translateError(err, "Post", nil)
	}
	return counts, nil
}

func (r *postRepository) SitemapEntries(ctx context.Context) (_ []models.SitemapEntry, err error) {
	ctx, end := r.inst.begin(ctx, "SitemapEntries")
	defer func() { end(err) }()

	entries := []models.SitemapEntry{}
	err = r.db.WithContext(ctx).Model(&models.Post{}).
		Select("slug", "updated_at").
		Order("updated_at DESC").
		Scan(&entries).Error
	if err != nil {
		return nil, translateError(err, "Post", nil)
	}
	return entries, nil
}

var uploadPathPattern = regexp.MustCompile(`/(?:uploads|postimage)/[^\s"'<>\\)]+`)

func (r *postRepository) MediaReferences(ctx context.Context) (_ []string, err error) {
	ctx, end := r.inst.begin(ctx, "MediaReferences")
	defer func() { end(err) }()

	var refs []string
	var batch []models.Post
	err = r.db.WithContext(ctx).
		Select("id", "thumbnail_url", "content", "image_url").
		FindInBatches(&batch, 200, func(_ *gorm.DB, _ int) error {
			for _, p := range batch {
				refs = append(refs, p.ThumbnailURL)
				if p.ImageURL != nil {
					refs = append(refs, *p.ImageURL)
				}
				segments, perr := content.Parse(p.Content)
				if perr != nil {
					// Keep anything in an unparseable body that looks like an upload.
					refs = append(refs, uploadPathPattern.FindAllString(p.Content, -1)...)
					continue
				}
				refs = append(refs, content.ImageValues(segments)...)
			}
			return nil
		}).Error
	if err != nil {
		return nil, translateError(err, "Post", nil)
	}

	var stepRefs []models.Step
	if err = r.db.WithContext(ctx).Select("image_url", "video_url").
		Where("image_url IS NOT NULL OR video_url IS NOT NULL").
		Find(&stepRefs).Error; err != nil {
		return nil, translateError(err, "Step", nil)
	}
	for _, s := range stepRefs {
		if s.ImageURL != nil {
			refs = append(refs, *s.ImageURL)
		}
		if s.VideoURL != nil {
			refs = append(refs, *s.VideoURL)
		}
	}
	return refs, nil
}
