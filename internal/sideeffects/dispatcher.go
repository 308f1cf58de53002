// Package sideeffects runs the best-effort work that follows a committed
// order. Effects are independent: one failing never stops the others and
// never touches the order itself.
package sideeffects

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
)

// Effect is one post-commit action.
type Effect interface {
	Name() string
	Run(ctx context.Context, event payloads.OrderCreatedEvent) error
}

type claimer interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Dispatcher fans an order event out to every registered effect.
type Dispatcher struct {
	effects []Effect
	claims  claimer
	logg    *logger.Logger
	metrics *metrics.SideEffectMetrics
	timeout time.Duration
}

const defaultEffectTimeout = 30 * time.Second

func NewDispatcher(claims claimer, logg *logger.Logger, m *metrics.SideEffectMetrics, effects ...Effect) (*Dispatcher, error) {
	if claims == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	seen := map[string]struct{}{}
	for _, e := range effects {
		if e == nil {
			return nil, errors.New("nil effect")
		}
		if _, dup := seen[e.Name()]; dup {
			return nil, fmt.Errorf("duplicate effect %q", e.Name())
		}
		seen[e.Name()] = struct{}{}
	}
	return &Dispatcher{
		effects: effects,
		claims:  claims,
		logg:    logg,
		metrics: m,
		timeout: defaultEffectTimeout,
	}, nil
}

// Effects returns the registered effect names.
func (d *Dispatcher) Effects() []string {
	names := make([]string, 0, len(d.effects))
	for _, e := range d.effects {
		names = append(names, e.Name())
	}
	return names
}

// Dispatch runs every effect that has not yet completed for eventID. The
// returned error aggregates the failed effects; completed ones stay claimed
// so a redelivery only replays the failures.
func (d *Dispatcher) Dispatch(ctx context.Context, eventID uuid.UUID, event payloads.OrderCreatedEvent) error {
	ctx = d.logg.WithFields(d.logg.WithOrderID(ctx, event.OrderID.String()), map[string]any{
		"event_id":     eventID.String(),
		"order_number": event.OrderNumber,
	})

	var (
		mu   sync.Mutex
		errs error
	)
	p := pool.New().WithMaxGoroutines(max(1, len(d.effects)))
	for _, effect := range d.effects {
		p.Go(func() {
			if err := d.run(ctx, eventID, effect, event); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", effect.Name(), err))
				mu.Unlock()
			}
		})
	}
	p.Wait()
	return errs
}

func (d *Dispatcher) run(ctx context.Context, eventID uuid.UUID, effect Effect, event payloads.OrderCreatedEvent) error {
	name := effect.Name()
	ctx = d.logg.WithField(ctx, "effect", name)
	start := time.Now()

	claimed, err := d.claims.Claim(ctx, name, eventID)
	if err != nil {
		d.logg.Error(ctx, "side effect claim failed", err)
		d.metrics.Observe(name, metrics.OutcomeFailure, time.Since(start))
		return fmt.Errorf("claim: %w", err)
	}
	if !claimed {
		d.logg.Debug(ctx, "side effect completed or running elsewhere")
		d.metrics.Observe(name, metrics.OutcomeSkipped, 0)
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var catcher panics.Catcher
	catcher.Try(func() {
		err = effect.Run(runCtx, event)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		err = recovered.AsError()
	}

	if err != nil {
		d.logg.Error(ctx, "side effect failed", err)
		d.metrics.Observe(name, metrics.OutcomeFailure, time.Since(start))
		if relErr := d.claims.Release(ctx, name, eventID); relErr != nil {
			d.logg.Error(ctx, "failed to release side effect claim", relErr)
			err = multierr.Append(err, relErr)
		}
		return err
	}

	d.metrics.Observe(name, metrics.OutcomeSuccess, time.Since(start))
	d.logg.Info(ctx, "side effect completed")
	if err := d.claims.Complete(context.WithoutCancel(ctx), name, eventID); err != nil {
		// The lease still expires, after which a redelivery repeats the effect.
		d.logg.Error(ctx, "failed to mark side effect done", err)
	}
	return nil
}
