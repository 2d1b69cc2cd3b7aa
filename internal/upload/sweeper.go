package upload

import (
	"context"
	"path"
	"strings"
	"time"

	"cozytiny/internal/observability"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the sweep once a night.
const DefaultSweepSchedule = "30 3 * * *"

// SweepTarget is a store whose objects can be listed and removed.
type SweepTarget interface {
	Store
	Lister
}

// RefSource returns every media URL or path still referenced by content.
type RefSource func(ctx context.Context) ([]string, error)

// Sweeper removes uploads that nothing references once they are older than
// the grace period. The grace period covers files uploaded for a post that
// has not been saved yet.
type Sweeper struct {
	target SweepTarget
	refs   RefSource
	grace  time.Duration
	now    func() time.Time
	cron   *cron.Cron
}

// NewSweeper builds a sweeper. It does nothing until Start or Sweep is called.
func NewSweeper(target SweepTarget, refs RefSource, grace time.Duration) *Sweeper {
	return &Sweeper{
		target: target,
		refs:   refs,
		grace:  grace,
		now:    time.Now,
		cron:   cron.New(),
	}
}

// Start schedules Sweep on a cron spec.
func (s *Sweeper) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	entryID, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		_, _ = s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	observability.GlobalLogger.Info("upload sweeper scheduled",
		"schedule", schedule, "entry_id", int(entryID), "grace", s.grace.String())
	return nil
}

// Stop halts scheduling. The returned context is done once a running sweep
// has finished.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// Sweep deletes orphaned files and reports how many it removed. Any error
// loading references aborts the run without deleting anything.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	const op = "upload.sweep"
	observability.LogAsyncOperationStart(ctx, op, nil)

	refs, err := s.refs(ctx)
	if err != nil {
		observability.LogAsyncOperationError(ctx, op, err, nil)
		return 0, err
	}
	keep := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if stem := fileStem(ref); stem != "" {
			keep[stem] = struct{}{}
		}
	}

	cutoff := s.now().Add(-s.grace)
	removed := 0
	err = s.target.Walk(ctx, func(key string, modTime time.Time) error {
		if modTime.After(cutoff) {
			return nil
		}
		if _, ok := keep[fileStem(key)]; ok {
			return nil
		}
		if derr := s.target.Delete(ctx, key); derr != nil {
			observability.LogAsyncOperationError(ctx, op, derr, map[string]interface{}{"key": key})
			return nil
		}
		removed++
		observability.SweptFilesTotal.Inc()
		return nil
	})
	if err != nil {
		observability.LogAsyncOperationError(ctx, op, err, map[string]interface{}{"removed": removed})
		return removed, err
	}

	observability.LogAsyncOperationEnd(ctx, op, map[string]interface{}{"removed": removed})
	return removed, nil
}

// fileStem reduces a URL, path or key to its base name without extension, so
// "/uploads/abc-photo.png" and its "abc-photo.webp" sibling compare equal.
func fileStem(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	base := path.Base(ref)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
