package maintenance

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/patternloft/patternloft/internal/access"
	"github.com/patternloft/patternloft/internal/models"
	"github.com/patternloft/patternloft/pkg/logger"
	"github.com/patternloft/patternloft/pkg/metrics"
)

const defaultSweepSpec = "@hourly"

// Sweeper removes access rows whose referenced entity no longer exists.
// Deletes cascade through the access layer in the normal path; the sweeper
// is the safety net for rows left behind by crashes mid-cascade.
type Sweeper struct {
	db       *gorm.DB
	cron     *cron.Cron
	log      *zap.Logger
	schedule string
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithSchedule overrides the cron specification for the sweep.
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// NewSweeper constructs a Sweeper with sensible defaults.
func NewSweeper(db *gorm.DB, opts ...Option) *Sweeper {
	sweeper := &Sweeper{
		db:       db,
		schedule: defaultSweepSpec,
		log:      logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(sweeper)
	}

	if sweeper.cron == nil {
		sweeper.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return sweeper
}

// Start registers the sweep job with the cron scheduler and launches it.
func (s *Sweeper) Start() error {
	if s.db == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.log.Warn("orphan sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (s *Sweeper) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// SweepStats captures the number of rows removed per category.
type SweepStats struct {
	Resources int64
	Grants    int64
}

// RunOnce executes a full sweep. Primarily used in tests and during graceful
// shutdown.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepStats, error) {
	if s.db == nil {
		return SweepStats{}, errors.New("sweeper: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stats := SweepStats{}
	var errs error

	for resourceType, table := range map[access.ResourceType]string{
		access.TypePattern: "patterns",
		access.TypeTag:     "tags",
		access.TypeFile:    "pattern_files",
	} {
		removed, err := s.sweepType(ctx, resourceType, table)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		stats.Resources += removed
	}

	removed, err := s.sweepGrants(ctx)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	stats.Grants += removed

	if stats.Resources > 0 || stats.Grants > 0 {
		s.log.Info("orphan sweep completed",
			zap.Int64("resources", stats.Resources),
			zap.Int64("grants", stats.Grants),
		)
	}

	return stats, errs
}

// sweepType removes resources of the given type whose referenced row is gone,
// along with the grants hanging off them.
func (s *Sweeper) sweepType(ctx context.Context, resourceType access.ResourceType, table string) (int64, error) {
	var removed int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var orphanIDs []string
		err := tx.Model(&models.Resource{}).
			Where("type = ?", resourceType).
			Where(fmt.Sprintf("reference_id NOT IN (SELECT id FROM %s)", table)).
			Pluck("id", &orphanIDs).Error
		if err != nil {
			return fmt.Errorf("sweeper: find orphaned %s resources: %w", resourceType, err)
		}
		if len(orphanIDs) == 0 {
			return nil
		}

		if err := tx.Where("resource_id IN ?", orphanIDs).Delete(&models.AccessGrant{}).Error; err != nil {
			return fmt.Errorf("sweeper: delete grants for %s: %w", resourceType, err)
		}

		result := tx.Where("id IN ?", orphanIDs).Delete(&models.Resource{})
		if result.Error != nil {
			return fmt.Errorf("sweeper: delete %s resources: %w", resourceType, result.Error)
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		metrics.OrphanSweeps.WithLabelValues(string(resourceType)).Add(float64(removed))
	}
	return removed, nil
}

// sweepGrants removes grants pointing at users that no longer exist.
func (s *Sweeper) sweepGrants(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("user_id NOT IN (SELECT id FROM users)").
		Delete(&models.AccessGrant{})
	if result.Error != nil {
		return 0, fmt.Errorf("sweeper: delete grants for missing users: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.OrphanSweeps.WithLabelValues("grant").Add(float64(result.RowsAffected))
	}
	return result.RowsAffected, nil
}
