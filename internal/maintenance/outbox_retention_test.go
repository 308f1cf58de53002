package maintenance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func TestOutboxRetentionPurgesOldPublishedRows(t *testing.T) {
	conn := openSQLite(t)
	repo := outbox.NewRepository(conn)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stale := now.Add(-31 * 24 * time.Hour)
	fresh := now.Add(-29 * 24 * time.Hour)
	for _, publishedAt := range []*time.Time{&stale, &fresh, nil} {
		require.NoError(t, repo.Insert(conn, models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			PublishedAt:   publishedAt,
		}))
	}

	job, err := NewOutboxRetention(logger.Nop(), gormTx{db: conn}, repo, 30)
	require.NoError(t, err)
	job.now = func() time.Time { return now }

	deleted, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	require.Equal(t, int64(2), remaining)
}

func TestNewOutboxRetentionValidates(t *testing.T) {
	conn := openSQLite(t)
	repo := outbox.NewRepository(conn)

	_, err := NewOutboxRetention(nil, gormTx{db: conn}, repo, 0)
	require.Error(t, err)
	_, err = NewOutboxRetention(logger.Nop(), nil, repo, 0)
	require.Error(t, err)
	_, err = NewOutboxRetention(logger.Nop(), gormTx{db: conn}, nil, 0)
	require.Error(t, err)

	job, err := NewOutboxRetention(logger.Nop(), gormTx{db: conn}, repo, 0)
	require.NoError(t, err)
	require.Equal(t, 30*24*time.Hour, job.retention)
}
