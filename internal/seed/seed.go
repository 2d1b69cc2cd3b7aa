// Package seed fills the database with demo content for development and
// tests. Everything goes through the post and step services, so seeded rows
// obey the same rules as content created over HTTP.
package seed

import (
	"context"
	"fmt"

	"cozytiny/internal/cache"
	"cozytiny/internal/middleware"
	"cozytiny/internal/models"
	"cozytiny/internal/repository"
	"cozytiny/internal/service"
	"cozytiny/internal/slug"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumPosts    int
	ShouldClean bool
	// FixturesPath overrides the bundled fixtures file.
	FixturesPath string
	SkipFixtures bool
	RandSeed     int64
}

// Result counts what a run created.
type Result struct {
	Fixtures int
	Skipped  int
	Random   int
}

type Seeder struct {
	db         *gorm.DB
	posts      *service.PostService
	repo       repository.PostRepository
	categories *models.CategorySet
}

// NewSeeder builds a seeder on its own uncached repositories. Random titles
// can repeat, so slug conflicts are resolved with a numeric suffix.
func NewSeeder(db *gorm.DB, categories *models.CategorySet) *Seeder {
	c := cache.New(nil)
	postRepo := repository.NewPostRepository(db, c)
	stepRepo := repository.NewStepRepository(db, c)
	if categories == nil {
		categories = models.NewCategorySet(nil)
	}
	return &Seeder{
		db:         db,
		posts:      service.NewPostService(postRepo, stepRepo, categories, nil, true),
		repo:       postRepo,
		categories: categories,
	}
}

// Run applies opts: optional clean, then fixtures, then random posts.
func (s *Seeder) Run(ctx context.Context, opts Options) (Result, error) {
	var res Result
	if opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return res, err
		}
	}

	if !opts.SkipFixtures {
		fixtures, err := s.fixtures(opts.FixturesPath)
		if err != nil {
			return res, err
		}
		res.Fixtures, res.Skipped, err = s.SeedFixtures(ctx, fixtures)
		if err != nil {
			return res, err
		}
	}

	created, err := s.SeedRandom(ctx, NewFactory(opts.RandSeed, s.categories.Names()), opts.NumPosts)
	res.Random = len(created)
	if err != nil {
		return res, err
	}

	middleware.Logger.Info("seed complete",
		"fixtures", res.Fixtures, "skipped", res.Skipped, "random", res.Random)
	return res, nil
}

func (s *Seeder) fixtures(path string) ([]Fixture, error) {
	if path == "" {
		return DefaultFixtures()
	}
	return LoadFixtures(path)
}

// ClearAll deletes every step and post.
func (s *Seeder) ClearAll(ctx context.Context) error {
	middleware.Logger.Info("clearing existing content")
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := all.Delete(&models.Step{}).Error; err != nil {
			return fmt.Errorf("clear steps: %w", err)
		}
		if err := all.Delete(&models.Post{}).Error; err != nil {
			return fmt.Errorf("clear posts: %w", err)
		}
		return nil
	})
}

// SeedFixtures creates each fixture whose slug is not taken yet, so running
// it twice is a no-op the second time.
func (s *Seeder) SeedFixtures(ctx context.Context, fixtures []Fixture) (created, skipped int, err error) {
	for _, f := range fixtures {
		_, err := s.repo.GetBySlug(ctx, slug.Make(f.Title))
		if err == nil {
			skipped++
			continue
		}
		if models.ErrorCode(err) != models.CodeNotFound {
			return created, skipped, err
		}

		in, err := f.Input()
		if err != nil {
			return created, skipped, fmt.Errorf("fixture %q: %w", f.Title, err)
		}
		if _, err := s.posts.CreatePost(ctx, in); err != nil {
			return created, skipped, fmt.Errorf("fixture %q: %w", f.Title, err)
		}
		created++
	}
	return created, skipped, nil
}

// SeedRandom creates n generated posts.
func (s *Seeder) SeedRandom(ctx context.Context, f *Factory, n int) ([]*models.Post, error) {
	out := make([]*models.Post, 0, n)
	for i := 0; i < n; i++ {
		post, err := s.posts.CreatePost(ctx, f.BuildPost())
		if err != nil {
			return out, fmt.Errorf("random post %d: %w", i+1, err)
		}
		out = append(out, post)
	}
	return out, nil
}
