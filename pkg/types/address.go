package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Address is the postal address attached to an order. It is stored as a JSON
// document so the order keeps the exact snapshot the buyer submitted.
type Address struct {
	Street       string  `json:"street" validate:"required,max=200"`
	Number       string  `json:"number,omitempty" validate:"omitempty,max=20"`
	Neighborhood string  `json:"neighborhood,omitempty" validate:"omitempty,max=120"`
	City         string  `json:"city" validate:"required,max=120"`
	State        string  `json:"state" validate:"required,max=120"`
	PostalCode   string  `json:"postalCode" validate:"required,max=20"`
	Country      string  `json:"country,omitempty" validate:"omitempty,max=60"`
	References   *string `json:"references,omitempty" validate:"omitempty,max=300"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,max=30"`
}

// Value encodes the address as JSON.
func (a Address) Value() (driver.Value, error) {
	if strings.TrimSpace(a.Street) == "" {
		return nil, fmt.Errorf("address: missing street")
	}
	if strings.TrimSpace(a.City) == "" {
		return nil, fmt.Errorf("address: missing city")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		return nil, fmt.Errorf("address: missing postalCode")
	}
	if strings.TrimSpace(a.Country) == "" {
		a.Country = "MX"
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}
	return string(raw), nil
}

// Scan decodes a JSON address column.
func (a *Address) Scan(value any) error {
	if value == nil {
		*a = Address{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("address: unsupported scan type %T", value)
	}
	if err := json.Unmarshal(raw, a); err != nil {
		return fmt.Errorf("address: %w", err)
	}
	return nil
}
