package repository

import (
	"context"

	"cozytiny/internal/cache"
	"cozytiny/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StepRepository defines the interface for step data operations.
// Position is assigned here from slice order; callers' values are ignored.
type StepRepository interface {
	// CreateMany appends steps after the post's existing ones.
	CreateMany(ctx context.Context, postID uint, steps []models.Step) ([]models.Step, error)
	// ListByPost returns the post's steps by position; no steps is an empty slice.
	ListByPost(ctx context.Context, postID uint) ([]models.Step, error)
	// ReplaceAll deletes the post's steps and inserts steps in one transaction.
	ReplaceAll(ctx context.Context, postID uint, steps []models.Step) ([]models.Step, error)
}

type stepRepository struct {
	db    *gorm.DB
	cache *cache.Cache
	inst  instrument
}

// NewStepRepository creates a new step repository.
func NewStepRepository(db *gorm.DB, c *cache.Cache) StepRepository {
	return &stepRepository{db: db, cache: c, inst: newInstrument(db, "steps")}
}

// requirePost checks the post exists. Outside sqlite it also locks the post
// row so step writes on the same post serialize.
func requirePost(tx *gorm.DB, postID uint) error {
	q := tx.Model(&models.Post{}).Where("id = ?", postID)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var ids []uint
	if err := q.Limit(1).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return models.NewNotFoundError("Post", postID)
	}
	return nil
}

func (r *stepRepository) CreateMany(ctx context.Context, postID uint, steps []models.Step) (_ []models.Step, err error) {
	ctx, end := r.inst.begin(ctx, "CreateMany")
	defer func() { end(err) }()

	out := make([]models.Step, len(steps))
	copy(out, steps)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePost(tx, postID); err != nil {
			return err
		}
		if len(out) == 0 {
			return nil
		}

		var next int
		if err := tx.Model(&models.Step{}).
			Where("post_id = ?", postID).
			Select("COALESCE(MAX(position) + 1, 0)").
			Scan(&next).Error; err != nil {
			return err
		}

		for i := range out {
			out[i].ID = 0
			out[i].PostID = postID
			out[i].Position = next + i
		}
		return tx.Create(&out).Error
	})
	if err != nil {
		return nil, translateError(err, "Post", postID)
	}

	r.inst.log.LogCreate(ctx, map[string]interface{}{"post_id": postID, "count": len(out)})
	r.cache.InvalidateSteps(ctx, postID)
	return out, nil
}

func (r *stepRepository) ListByPost(ctx context.Context, postID uint) (_ []models.Step, err error) {
	ctx, end := r.inst.begin(ctx, "ListByPost")
	defer func() { end(err) }()

	steps := []models.Step{}
	err = r.cache.Aside(ctx, cache.StepsKey(postID), &steps, cache.StepsTTL, func() error {
		return r.db.WithContext(ctx).
			Where("post_id = ?", postID).
			Order("position ASC").
			Order("id ASC").
			Find(&steps).Error
	})
	if err != nil {
		return nil, translateError(err, "Step", postID)
	}
	return steps, nil
}

func (r *stepRepository) ReplaceAll(ctx context.Context, postID uint, steps []models.Step) (_ []models.Step, err error) {
	ctx, end := r.inst.begin(ctx, "ReplaceAll")
	defer func() { end(err) }()

	out := make([]models.Step, len(steps))
	for i, s := range steps {
		s.ID = 0
		s.PostID = postID
		s.Position = i
		out[i] = s
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePost(tx, postID); err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Step{}).Error; err != nil {
			return err
		}
		if len(out) == 0 {
			return nil
		}
		return tx.Create(&out).Error
	})
	if err != nil {
		return nil, translateError(err, "Post", postID)
	}

	r.inst.log.LogUpdate(ctx, map[string]interface{}{"post_id": postID, "count": len(out)})
	r.cache.InvalidateSteps(ctx, postID)
	return out, nil
}
