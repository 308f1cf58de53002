// Package bigquery streams committed orders into the analytics table.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// OrderRow is one committed order in the analytics table.
type OrderRow struct {
	OrderID        string    `bigquery:"order_id"`
	OrderNumber    int64     `bigquery:"order_number"`
	UserID         string    `bigquery:"user_id"`
	DeliveryMethod string    `bigquery:"delivery_method"`
	PaymentMethod  string    `bigquery:"payment_method"`
	ItemCount      int64     `bigquery:"item_count"`
	Subtotal       float64   `bigquery:"subtotal"`
	TaxAmount      float64   `bigquery:"tax_amount"`
	ShippingCost   float64   `bigquery:"shipping_cost"`
	Total          float64   `bigquery:"total"`
	CreatedAt      time.Time `bigquery:"created_at"`
}

// Save keys each row by order id so BigQuery drops redelivered inserts on a
// best-effort basis.
func (r OrderRow) Save() (map[string]bigquery.Value, string, error) {
	return map[string]bigquery.Value{
		"order_id":        r.OrderID,
		"order_number":    r.OrderNumber,
		"user_id":         r.UserID,
		"delivery_method": r.DeliveryMethod,
		"payment_method":  r.PaymentMethod,
		"item_count":      r.ItemCount,
		"subtotal":        r.Subtotal,
		"tax_amount":      r.TaxAmount,
		"shipping_cost":   r.ShippingCost,
		"total":           r.Total,
		"created_at":      r.CreatedAt,
	}, r.OrderID, nil
}

// OrderSchema is the table schema inferred from OrderRow.
func OrderSchema() (bigquery.Schema, error) {
	return bigquery.InferSchema(OrderRow{})
}

type Client struct {
	bq    *bigquery.Client
	table *bigquery.Table
}

// NewClient connects and checks the orders table. With cfg.CreateTable a
// missing table is created, partitioned by day on created_at.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	datasetID := strings.TrimSpace(cfg.Dataset)
	tableID := strings.TrimSpace(cfg.OrdersTable)
	switch {
	case projectID == "":
		return nil, errProjectIDRequired
	case datasetID == "":
		return nil, errDatasetRequired
	case tableID == "":
		return nil, errTableNameRequired
	}

	bq, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	c := &Client{bq: bq, table: bq.Dataset(datasetID).Table(tableID)}

	if err := c.ensureTable(ctx, cfg.CreateTable); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "table", c.tableName()), "bigquery client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func (c *Client) tableName() string {
	return c.table.DatasetID + "." + c.table.TableID
}

func (c *Client) ensureTable(ctx context.Context, create bool) error {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	_, err := c.table.Metadata(ctx)
	switch {
	case err == nil:
		return nil
	case !isNotFound(err):
		return fmt.Errorf("table %s metadata: %w", c.tableName(), err)
	case !create:
		return fmt.Errorf("table %s does not exist", c.tableName())
	}

	schema, err := OrderSchema()
	if err != nil {
		return fmt.Errorf("infer order schema: %w", err)
	}
	err = c.table.Create(ctx, &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "created_at",
		},
	})
	if err != nil && !isConflict(err) {
		return fmt.Errorf("create table %s: %w", c.tableName(), err)
	}
	return nil
}

// Ping checks the orders table is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.table == nil {
		return errClientNotInitialized
	}
	return c.ensureTable(ctx, false)
}

// InsertOrders streams rows. Per-row failures are joined into one error.
func (c *Client) InsertOrders(ctx context.Context, rows ...OrderRow) error {
	if c == nil || c.table == nil {
		return errClientNotInitialized
	}
	if len(rows) == 0 {
		return nil
	}
	savers := make([]bigquery.ValueSaver, len(rows))
	for i := range rows {
		savers[i] = rows[i]
	}
	err := c.table.Inserter().Put(ctx, savers)
	var multi bigquery.PutMultiError
	if errors.As(err, &multi) {
		return rowErrors(multi)
	}
	return err
}

func rowErrors(multi bigquery.PutMultiError) error {
	errs := make([]error, 0, len(multi))
	for _, rowErr := range multi {
		errs = append(errs, fmt.Errorf("row %d: %w", rowErr.RowIndex, rowErr.Errors))
	}
	return errors.Join(errs...)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func isNotFound(err error) bool {
	return apiStatus(err) == http.StatusNotFound
}

func isConflict(err error) bool {
	return apiStatus(err) == http.StatusConflict
}

func apiStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code
	}
	return 0
}
