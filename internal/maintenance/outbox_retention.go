package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	JobOutboxRetention = "outbox-retention"

	defaultRetentionDays = 30
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type publishedPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// OutboxRetention deletes outbox rows that were published more than
// RetentionDays ago.
type OutboxRetention struct {
	logg      *logger.Logger
	db        txRunner
	repo      publishedPurger
	retention time.Duration
	now       func() time.Time
}

func NewOutboxRetention(logg *logger.Logger, db txRunner, repo publishedPurger, retentionDays int) (*OutboxRetention, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if db == nil {
		return nil, errors.New("db required")
	}
	if repo == nil {
		return nil, errors.New("outbox repository required")
	}
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	return &OutboxRetention{
		logg:      logg,
		db:        db,
		repo:      repo,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}, nil
}

func (j *OutboxRetention) Name() string { return JobOutboxRetention }

func (j *OutboxRetention) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff)
		deleted = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("purge published outbox rows: %w", err)
	}
	j.logg.Debug(j.logg.WithField(ctx, "cutoff", cutoff), "outbox retention pass done")
	return deleted, nil
}
