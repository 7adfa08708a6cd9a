package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	iauth "github.com/nwaqas/finfortress/internal/auth"
	"github.com/nwaqas/finfortress/internal/models"
	"github.com/nwaqas/finfortress/pkg/logger"
)

const (
	defaultTrashRetentionDays = 90
	defaultSessionSpec        = "@hourly"
	defaultTrashSpec          = "@daily"
)

// Cleaner runs background maintenance: purging expired sessions and
// permanently removing soft-deleted ledger rows once their retention
// window has passed. The audit trail on a soft-deleted entry stays
// readable until the purge.
type Cleaner struct {
	db       *gorm.DB
	sessions *iauth.SessionService
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger

	retention       int
	sessionSchedule string
	trashSchedule   string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithTrashRetentionDays adjusts how long soft-deleted rows are kept.
func WithTrashRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithSessionSchedule overrides the cron schedule for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithTrashSchedule overrides the cron schedule for the purge job.
func WithTrashSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.trashSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil dependency
// results in the corresponding job being skipped.
func NewCleaner(db *gorm.DB, sessions *iauth.SessionService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:              db,
		sessions:        sessions,
		now:             time.Now,
		retention:       defaultTrashRetentionDays,
		sessionSchedule: defaultSessionSpec,
		trashSchedule:   defaultTrashSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			if _, err := c.sessions.CleanupExpired(context.Background()); err != nil {
				c.log.Warn("session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.db != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.trashSchedule, func() {
			if _, err := PurgeTrash(context.Background(), c.db, c.now().AddDate(0, 0, -c.retention)); err != nil {
				c.log.Warn("trash purge failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		if _, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.db != nil && c.retention > 0 {
		if _, err := PurgeTrash(ctx, c.db, c.now().AddDate(0, 0, -c.retention)); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// TrashStats counts permanently removed rows per table.
type TrashStats struct {
	Transactions int64
	Assets       int64
	Loans        int64
}

// PurgeTrash permanently deletes soft-deleted rows whose deletion
// happened before the cutoff.
func PurgeTrash(ctx context.Context, db *gorm.DB, cutoff time.Time) (TrashStats, error) {
	if db == nil {
		return TrashStats{}, fmt.Errorf("purge trash: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stats := TrashStats{}

	result := db.WithContext(ctx).Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Delete(&models.Transaction{})
	if result.Error != nil {
		return stats, fmt.Errorf("purge trash: transactions: %w", result.Error)
	}
	stats.Transactions = result.RowsAffected

	result = db.WithContext(ctx).Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Delete(&models.Asset{})
	if result.Error != nil {
		return stats, fmt.Errorf("purge trash: assets: %w", result.Error)
	}
	stats.Assets = result.RowsAffected

	result = db.WithContext(ctx).Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Delete(&models.Loan{})
	if result.Error != nil {
		return stats, fmt.Errorf("purge trash: loans: %w", result.Error)
	}
	stats.Loans = result.RowsAffected

	return stats, nil
}
