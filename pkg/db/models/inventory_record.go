package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryRecord tracks total/reserved counts per product.
// Invariant: 0 <= reserved_qty <= total_qty. Mutated only through the
// inventory ledger's guarded conditional updates.
type InventoryRecord struct {
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	TotalQty    int       `gorm:"column:total_qty;not null;default:0"`
	ReservedQty int       `gorm:"column:reserved_qty;not null;default:0"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// AvailableQty is the sellable count: total minus reserved.
func (r InventoryRecord) AvailableQty() int {
	return r.TotalQty - r.ReservedQty
}
