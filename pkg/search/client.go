package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/search"
	"github.com/angelmondragon/storefront-backend/pkg/config"
)

var (
	errAppIDRequired  = errors.New("algolia app id is required")
	errAPIKeyRequired = errors.New("algolia api key is required")
	errIndexRequired  = errors.New("algolia index name is required")
	errObjectID       = errors.New("order document requires an object id")
)

// OrderItem is the indexed projection of one order line.
type OrderItem struct {
	ProductID   string  `json:"productId"`
	VariantID   string  `json:"variantId,omitempty"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	TotalPrice  float64 `json:"totalPrice"`
}

// OrderDocument is what admins search orders by.
type OrderDocument struct {
	ObjectID       string      `json:"objectID"`
	OrderNumber    int64       `json:"orderNumber"`
	UserID         string      `json:"userId"`
	CustomerName   string      `json:"customerName"`
	CustomerEmail  string      `json:"customerEmail"`
	Status         string      `json:"status"`
	DeliveryMethod string      `json:"deliveryMethod"`
	PaymentMethod  string      `json:"paymentMethod"`
	Total          float64     `json:"total"`
	ItemCount      int         `json:"itemCount"`
	Items          []OrderItem `json:"items"`
	CreatedAt      int64       `json:"createdAt"`
}

type objectSaver interface {
	SaveObject(object interface{}, opts ...interface{}) (search.SaveObjectRes, error)
}

// Client writes order documents to an Algolia index.
type Client struct {
	index objectSaver
	name  string
}

// NewClient builds an Algolia-backed indexer for the configured orders index.
func NewClient(cfg config.AlgoliaConfig) (*Client, error) {
	appID := strings.TrimSpace(cfg.AppID)
	if appID == "" {
		return nil, errAppIDRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	name := strings.TrimSpace(cfg.OrdersIndex)
	if name == "" {
		return nil, errIndexRequired
	}

	return &Client{
		index: search.NewClient(appID, apiKey).InitIndex(name),
		name:  name,
	}, nil
}

// IndexOrder upserts the document keyed by its object id.
func (c *Client) IndexOrder(ctx context.Context, doc OrderDocument) error {
	if strings.TrimSpace(doc.ObjectID) == "" {
		return errObjectID
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.index.SaveObject(doc, ctx); err != nil {
		return fmt.Errorf("algolia save %s/%s: %w", c.name, doc.ObjectID, err)
	}
	return nil
}

// UnixMillis converts timestamps to the numeric form Algolia sorts on.
func UnixMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}
