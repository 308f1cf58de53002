package enums

import "slices"

// ProductStatus is shared by products and their variants.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusPaused   ProductStatus = "paused"
	ProductStatusArchived ProductStatus = "archived"
)

var validProductStatuses = []ProductStatus{
	ProductStatusActive,
	ProductStatusPaused,
	ProductStatusArchived,
}

func (s ProductStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ProductStatus.
func (s ProductStatus) IsValid() bool {
	return slices.Contains(validProductStatuses, s)
}

// Purchasable reports whether an item in this status may be ordered.
func (s ProductStatus) Purchasable() bool {
	return s == ProductStatusActive
}

// CountsTowardStock reports whether the stock of an item in this status is
// part of the aggregate product stock. Paused items count, archived do not.
func (s ProductStatus) CountsTowardStock() bool {
	return s == ProductStatusActive || s == ProductStatusPaused
}

// ParseProductStatus converts raw input into a ProductStatus.
func ParseProductStatus(value string) (ProductStatus, error) {
	return parse(validProductStatuses, "product status", value)
}
