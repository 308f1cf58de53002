package sideeffects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/bigquery"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/search"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	EffectSearchIndex       = "search-index"
	EffectDeliveryCounters  = "delivery-counters"
	EffectConfirmationEmail = "confirmation-email"
	EffectOrderAnalytics    = "order-analytics"
)

// CounterOrdersTotal counts every committed order.
const CounterOrdersTotal = "orders_total"

// DeliveryCounterKey names the per delivery method counter.
func DeliveryCounterKey(method string) string {
	return "delivery:" + method
}

type orderIndexer interface {
	IndexOrder(ctx context.Context, doc search.OrderDocument) error
}

// SearchIndex upserts the order into the admin search index.
type SearchIndex struct {
	index orderIndexer
}

func NewSearchIndex(index orderIndexer) (*SearchIndex, error) {
	if index == nil {
		return nil, errors.New("search index client required")
	}
	return &SearchIndex{index: index}, nil
}

func (*SearchIndex) Name() string { return EffectSearchIndex }

func (s *SearchIndex) Run(ctx context.Context, event payloads.OrderCreatedEvent) error {
	items := make([]search.OrderItem, 0, len(event.Items))
	for _, item := range event.Items {
		doc := search.OrderItem{
			ProductID:   item.ProductID.String(),
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			TotalPrice:  item.TotalPrice.InexactFloat64(),
		}
		if item.VariantID != nil {
			doc.VariantID = *item.VariantID
		}
		items = append(items, doc)
	}

	return s.index.IndexOrder(ctx, search.OrderDocument{
		ObjectID:       event.OrderID.String(),
		OrderNumber:    event.OrderNumber,
		UserID:         event.UserID.String(),
		CustomerName:   event.Customer.FirstName + " " + event.Customer.LastName,
		CustomerEmail:  event.Customer.Email,
		Status:         string(enums.OrderStatusPending),
		DeliveryMethod: string(event.DeliveryMethod),
		PaymentMethod:  event.PaymentMethod,
		Total:          event.Totals.Total.InexactFloat64(),
		ItemCount:      event.Totals.ItemCount,
		Items:          items,
		CreatedAt:      search.UnixMillis(event.CreatedAt),
	})
}

// DeliveryCounters bumps the sales counters for the order's delivery method.
// Each order is counted once, even when the event is redelivered.
type DeliveryCounters struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDeliveryCounters(db *gorm.DB) (*DeliveryCounters, error) {
	if db == nil {
		return nil, errors.New("database required")
	}
	return &DeliveryCounters{db: db, now: time.Now}, nil
}

func (*DeliveryCounters) Name() string { return EffectDeliveryCounters }

func (c *DeliveryCounters) Run(ctx context.Context, event payloads.OrderCreatedEvent) error {
	now := c.now().UTC()
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mark := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.CountedOrder{OrderID: event.OrderID, CountedAt: now})
		if mark.Error != nil {
			return mark.Error
		}
		if mark.RowsAffected == 0 {
			return nil
		}

		rows := []models.SalesCounter{
			{Key: CounterOrdersTotal, Count: 1, UpdatedAt: now},
			{Key: DeliveryCounterKey(string(event.DeliveryMethod)), Count: 1, UpdatedAt: now},
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "key"}},
			DoUpdates: clause.Assignments(map[string]any{
				"count":      gorm.Expr("sales_counters.count + 1"),
				"updated_at": now,
			}),
		}).Create(&rows).Error
	})
}

type confirmationSender interface {
	SendOrderConfirmation(ctx context.Context, msg mailer.OrderConfirmation) error
}

// ConfirmationEmail sends the buyer the order summary.
type ConfirmationEmail struct {
	mail confirmationSender
}

func NewConfirmationEmail(mail confirmationSender) (*ConfirmationEmail, error) {
	if mail == nil {
		return nil, errors.New("mailer required")
	}
	return &ConfirmationEmail{mail: mail}, nil
}

func (*ConfirmationEmail) Name() string { return EffectConfirmationEmail }

func (e *ConfirmationEmail) Run(ctx context.Context, event payloads.OrderCreatedEvent) error {
	if event.Customer.Email == "" {
		return fmt.Errorf("order %s has no customer email", event.OrderID)
	}

	lines := make([]mailer.OrderLine, 0, len(event.Items))
	for _, item := range event.Items {
		lines = append(lines, mailer.OrderLine{
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: "$" + money.Format(item.UnitPrice),
			Total:     "$" + money.Format(item.TotalPrice),
		})
	}

	return e.mail.SendOrderConfirmation(ctx, mailer.OrderConfirmation{
		ToEmail:        event.Customer.Email,
		ToName:         event.Customer.FirstName + " " + event.Customer.LastName,
		OrderNumber:    event.OrderNumber,
		Items:          lines,
		Subtotal:       "$" + money.Format(event.Totals.Subtotal),
		TaxAmount:      "$" + money.Format(event.Totals.TaxAmount),
		ShippingCost:   "$" + money.Format(event.Totals.ShippingCost),
		Total:          "$" + money.Format(event.Totals.Total),
		DeliveryMethod: event.DeliveryMethod.Label(),
		PaymentMethod:  event.PaymentMethod,
	})
}

type orderRowInserter interface {
	InsertOrders(ctx context.Context, rows ...bigquery.OrderRow) error
}

// OrderAnalytics streams the order into the analytics warehouse.
type OrderAnalytics struct {
	client orderRowInserter
}

func NewOrderAnalytics(client orderRowInserter) (*OrderAnalytics, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	return &OrderAnalytics{client: client}, nil
}

func (*OrderAnalytics) Name() string { return EffectOrderAnalytics }

func (a *OrderAnalytics) Run(ctx context.Context, event payloads.OrderCreatedEvent) error {
	return a.client.InsertOrders(ctx, bigquery.OrderRow{
		OrderID:        event.OrderID.String(),
		OrderNumber:    event.OrderNumber,
		UserID:         event.UserID.String(),
		DeliveryMethod: string(event.DeliveryMethod),
		PaymentMethod:  event.PaymentMethod,
		ItemCount:      int64(event.Totals.ItemCount),
		Subtotal:       event.Totals.Subtotal.InexactFloat64(),
		TaxAmount:      event.Totals.TaxAmount.InexactFloat64(),
		ShippingCost:   event.Totals.ShippingCost.InexactFloat64(),
		Total:          event.Totals.Total.InexactFloat64(),
		CreatedAt:      event.CreatedAt.UTC(),
	})
}
