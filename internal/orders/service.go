package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/settings"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

const (
	defaultTxAttempts  = 5
	defaultBaseBackoff = 25 * time.Millisecond
	defaultMaxBackoff  = time.Second
	jitterPercent      = 20
)

// Service commits orders.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
}

// ServiceParams wires the committer dependencies.
type ServiceParams struct {
	Config   config.OrdersConfig
	Logger   *logger.Logger
	Tx       txRunner
	Orders   Repository
	Products product.Store
	Settings *settings.Reader
	Users    userStore
	Outbox   outboxPublisher
	Numbers  orderNumbers
	Metrics  *metrics.OrderMetrics
}

type service struct {
	logg        *logger.Logger
	tx          txRunner
	orders      Repository
	products    product.Store
	settings    *settings.Reader
	users       userStore
	outbox      outboxPublisher
	numbers     orderNumbers
	metrics     *metrics.OrderMetrics
	maxAttempts uint64
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// NewService builds the order committer.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Products == nil:
		return nil, fmt.Errorf("product store required")
	case params.Settings == nil:
		return nil, fmt.Errorf("settings reader required")
	case params.Users == nil:
		return nil, fmt.Errorf("user store required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Numbers == nil:
		return nil, fmt.Errorf("order number generator required")
	}

	svc := &service{
		logg:        params.Logger,
		tx:          params.Tx,
		orders:      params.Orders,
		products:    params.Products,
		settings:    params.Settings,
		users:       params.Users,
		outbox:      params.Outbox,
		numbers:     params.Numbers,
		metrics:     params.Metrics,
		maxAttempts: defaultTxAttempts,
		baseBackoff: defaultBaseBackoff,
		maxBackoff:  defaultMaxBackoff,
	}
	if params.Config.TxMaxAttempts > 0 {
		svc.maxAttempts = uint64(params.Config.TxMaxAttempts)
	}
	if params.Config.TxBaseBackoff > 0 {
		svc.baseBackoff = params.Config.TxBaseBackoff
	}
	if params.Config.TxMaxBackoff > 0 {
		svc.maxBackoff = params.Config.TxMaxBackoff
	}
	return svc, nil
}

func (s *service) backoff() retry.Backoff {
	b := retry.NewExponential(s.baseBackoff)
	b = retry.WithJitterPercent(jitterPercent, b)
	b = retry.WithCappedDuration(s.maxBackoff, b)
	return retry.WithMaxRetries(s.maxAttempts-1, b)
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	start := time.Now()
	ctx = s.logg.WithUserID(ctx, input.UserID.String())

	if len(input.Items) == 0 {
		return nil, s.reject(ctx, pkgerrors.New(pkgerrors.CodeValidation, "la orden no contiene artículos").
			WithDetails([]types.FieldError{{Field: "items", Message: "Agrega al menos un artículo"}}))
	}

	user, err := s.users.FindByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, s.reject(ctx, pkgerrors.New(pkgerrors.CodeNotFound, "user not found"))
		}
		return nil, s.reject(ctx, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user"))
	}
	snapshot, problems := userSnapshot(user)
	if len(problems) > 0 {
		return nil, s.reject(ctx, pkgerrors.New(pkgerrors.CodeValidation, "perfil de usuario incompleto").WithDetails(problems))
	}

	attempts := 0
	var created *models.Order
	err = retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempts++
		order, err := s.attempt(ctx, input, snapshot)
		if err == nil {
			created = order
			return nil
		}
		if errors.Is(err, product.ErrStockConflict) || db.IsRetryable(err) {
			s.logg.Warn(s.logg.WithField(ctx, "attempt", attempts), "order transaction conflict, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	s.metrics.ObserveAttempts(attempts)

	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("order commit failed after %d attempts", attempts))
		}
		return nil, s.reject(ctx, err)
	}

	s.metrics.IncCommitted()
	s.metrics.ObserveDuration(time.Since(start))

	ctx = s.logg.WithOrderID(ctx, created.ID.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_number": created.OrderNumber,
		"attempts":     attempts,
		"total":        created.Totals.Total.StringFixed(2),
	}), "order committed")

	if err := s.users.IncrementPurchaseCount(ctx, input.UserID); err != nil {
		s.logg.Error(ctx, "failed to increment purchase count", err)
	}

	return &CreateOrderResult{
		OrderID:     created.ID,
		OrderNumber: created.OrderNumber,
		Order:       created,
		Attempts:    attempts,
	}, nil
}

// attempt runs one full read-validate-write transaction.
func (s *service) attempt(ctx context.Context, input CreateOrderInput, snapshot models.UserSnapshot) (*models.Order, error) {
	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		productStore := s.products.WithTx(tx)

		snap, err := s.settings.WithTx(tx).Load(ctx)
		if err != nil {
			return fmt.Errorf("load store settings: %w", err)
		}

		found, err := productStore.FindByIDs(ctx, distinctProductIDs(input.Items))
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}

		result := Validate(input, found, snap)
		if !result.OK() {
			return pkgerrors.New(pkgerrors.CodeValidation, "la orden no pasó la validación").WithDetails(result.Errors)
		}

		order := &models.Order{
			OrderNumber:     s.numbers.Next(),
			UserID:          input.UserID,
			UserData:        snapshot,
			Items:           result.Items,
			Totals:          result.Totals,
			Status:          enums.OrderStatusPending,
			DeliveryMethod:  input.DeliveryMethod,
			ShippingAddress: input.ShippingAddress,
			BillingAddress:  input.BillingAddress,
			PaymentMethod:   input.PaymentMethod,
			Notes:           input.Notes,
		}
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, m := range result.Mutations {
			if err := productStore.ApplyStockMutation(ctx, m); err != nil {
				return err
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data:          payloads.NewOrderCreatedEvent(*order),
		}); err != nil {
			return fmt.Errorf("emit order_created: %w", err)
		}

		created = order
		return nil
	})
	return created, err
}

func (s *service) reject(ctx context.Context, err error) error {
	typed := pkgerrors.As(err)
	reason := metrics.RejectInternal
	switch {
	case typed == nil:
	case typed.Code() == pkgerrors.CodeValidation:
		reason = metrics.RejectValidation
	case typed.Code() == pkgerrors.CodeNotFound:
		reason = metrics.RejectNotFound
	case errors.Is(err, product.ErrStockConflict):
		reason = metrics.RejectConflict
	}
	s.metrics.IncRejected(reason)

	if reason == metrics.RejectInternal || reason == metrics.RejectConflict {
		s.logg.Error(ctx, "order rejected", err)
	} else {
		s.logg.Info(s.logg.WithField(ctx, "reason", reason), "order rejected")
	}
	return err
}

func userSnapshot(user *models.User) (models.UserSnapshot, []types.FieldError) {
	snap := models.UserSnapshot{
		UID:       user.ID.String(),
		FirstName: strings.TrimSpace(user.FirstName),
		LastName:  strings.TrimSpace(user.LastName),
		Email:     strings.TrimSpace(user.Email),
	}
	var problems []types.FieldError
	if snap.FirstName == "" {
		problems = append(problems, types.FieldError{Field: "userData.firstName", Message: "El nombre es obligatorio"})
	}
	if snap.LastName == "" {
		problems = append(problems, types.FieldError{Field: "userData.lastName", Message: "El apellido es obligatorio"})
	}
	if snap.Email == "" {
		problems = append(problems, types.FieldError{Field: "userData.email", Message: "El correo es obligatorio"})
	}
	return snap, problems
}

func distinctProductIDs(items []ItemInput) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	out := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		out = append(out, item.ProductID)
	}
	return out
}
