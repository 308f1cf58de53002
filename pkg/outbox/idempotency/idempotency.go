// Package idempotency tracks which side effects already ran for an event.
//
// A claim moves through two states. Claim writes a short-lived "running"
// lease; Complete overwrites it with a long-lived "done" mark. If the worker
// dies mid-effect the lease expires and the next redelivery runs the effect
// again, while a done mark makes every later delivery skip it.
//
// Keys look like sf:idempotency:evt:processed:<consumer>:<event_id>.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	stateRunning = "running"
	stateDone    = "done"

	defaultLease = 5 * time.Minute
)

// Store is the slice of the redis client the manager needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type Manager struct {
	store Store
	done  time.Duration
	lease time.Duration
}

// NewManager keeps done marks for doneTTL (zero means forever) and running
// leases for lease, defaulting to five minutes.
func NewManager(store Store, doneTTL, lease time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if doneTTL < 0 || lease < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if lease == 0 {
		lease = defaultLease
	}
	return &Manager{store: store, done: doneTTL, lease: lease}, nil
}

// Claim takes the lease for consumer on eventID. It reports false while
// another delivery holds the lease or after the effect completed.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return m.store.SetNX(ctx, key, stateRunning, m.lease)
}

// Complete records that consumer finished eventID.
func (m *Manager) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, stateDone, m.done)
}

// Release drops the lease so the next delivery runs consumer again.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:processed:"+consumer, eventID.String()), nil
}
