// Package settings reads the store-wide tax and delivery configuration and
// validates orders against it. A missing or malformed configuration always
// rejects the order.
package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var maxTaxPercentage = decimal.NewFromInt(100)

// TaxSettings is the store-wide tax rule.
type TaxSettings struct {
	TaxPercentage decimal.Decimal
	Enabled       bool
}

// DeliverySettings lists which delivery methods the store accepts.
type DeliverySettings struct {
	StoreEnabled bool
	Methods      map[enums.DeliveryMethod]bool
}

// Enabled returns the accepted methods in display order.
func (d DeliverySettings) Enabled() []enums.DeliveryMethod {
	out := []enums.DeliveryMethod{}
	for _, m := range enums.DeliveryMethods() {
		if d.Methods[m] {
			out = append(out, m)
		}
	}
	return out
}

// Snapshot is the configuration one order attempt is validated against.
type Snapshot struct {
	Tax      *TaxSettings
	Delivery *DeliverySettings
}

// Reader loads settings snapshots. Nil results mean the configuration is unavailable.
type Reader struct {
	repo *Repository
}

func NewReader(repo *Repository) (*Reader, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	return &Reader{repo: repo}, nil
}

// WithTx binds the reader to the order transaction.
func (r *Reader) WithTx(tx *gorm.DB) *Reader {
	return &Reader{repo: r.repo.WithTx(tx)}
}

func (r *Reader) LoadTaxSettings(ctx context.Context) (*TaxSettings, error) {
	row, err := r.repo.Find(ctx)
	if err != nil {
		return nil, err
	}
	return taxFromRow(row), nil
}

func (r *Reader) LoadDeliverySettings(ctx context.Context) (*DeliverySettings, error) {
	row, err := r.repo.Find(ctx)
	if err != nil {
		return nil, err
	}
	return deliveryFromRow(row), nil
}

// Load reads the singleton once and derives both views from it.
func (r *Reader) Load(ctx context.Context) (Snapshot, error) {
	row, err := r.repo.Find(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Tax: taxFromRow(row), Delivery: deliveryFromRow(row)}, nil
}

func taxFromRow(row *models.StoreSettings) *TaxSettings {
	if row == nil {
		return nil
	}
	if row.TaxPercentage.IsNegative() || row.TaxPercentage.GreaterThan(maxTaxPercentage) {
		return nil
	}
	return &TaxSettings{TaxPercentage: row.TaxPercentage, Enabled: row.TaxEnabled}
}

func deliveryFromRow(row *models.StoreSettings) *DeliverySettings {
	if row == nil {
		return nil
	}
	return &DeliverySettings{
		StoreEnabled: row.StoreEnabled,
		Methods: map[enums.DeliveryMethod]bool{
			enums.DeliveryPickup:            row.PickupEnabled,
			enums.DeliveryHomeDelivery:      row.HomeDeliveryEnabled,
			enums.DeliveryShipping:          row.ShippingEnabled,
			enums.DeliveryArrangeWithSeller: row.ArrangeWithSellerEnabled,
		},
	}
}

// ValidateDeliveryMethod returns a buyer-facing message when method cannot be used.
func ValidateDeliveryMethod(method enums.DeliveryMethod, s *DeliverySettings) (bool, string) {
	if s == nil {
		return false, "La configuración de entregas no está disponible. Intenta más tarde."
	}
	if !s.StoreEnabled {
		return false, "La tienda no está aceptando pedidos en este momento."
	}
	if s.Methods[method] {
		return true, ""
	}

	enabled := s.Enabled()
	if len(enabled) == 0 {
		return false, fmt.Sprintf("El método de entrega %q no está disponible y no hay métodos habilitados.", method)
	}
	labels := make([]string, 0, len(enabled))
	for _, m := range enabled {
		labels = append(labels, m.Label())
	}
	return false, fmt.Sprintf("El método de entrega %q no está disponible. Métodos disponibles: %s.", method, strings.Join(labels, ", "))
}

// TaxCheck is the outcome of ValidateTaxAmount. Field names the offending
// totals field when Valid is false.
type TaxCheck struct {
	Valid    bool
	Expected decimal.Decimal
	Field    string
	Message  string
}

// ValidateTaxAmount checks the submitted tax against the store rule.
func ValidateTaxAmount(subtotal, taxSent, pctSent decimal.Decimal, s *TaxSettings) TaxCheck {
	if s == nil {
		return TaxCheck{
			Field:   "totals.taxAmount",
			Message: "La configuración de impuestos no está disponible. Intenta más tarde.",
		}
	}

	if !money.WithinTolerance(pctSent, s.TaxPercentage) {
		return TaxCheck{
			Expected: expectedTax(subtotal, s),
			Field:    "totals.taxPercentage",
			Message: fmt.Sprintf("Porcentaje de impuesto incorrecto. Esperado: %s, recibido: %s",
				money.Format(s.TaxPercentage), money.Format(pctSent)),
		}
	}

	expected := expectedTax(subtotal, s)
	if !money.WithinTolerance(taxSent, expected) {
		return TaxCheck{
			Expected: expected,
			Field:    "totals.taxAmount",
			Message: fmt.Sprintf("Monto de impuesto incorrecto. Esperado: %s, recibido: %s",
				money.Format(expected), money.Format(taxSent)),
		}
	}
	return TaxCheck{Valid: true, Expected: expected}
}

func expectedTax(subtotal decimal.Decimal, s *TaxSettings) decimal.Decimal {
	if !s.Enabled {
		return decimal.Zero
	}
	return money.Percent(subtotal, s.TaxPercentage)
}
