package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasrivero/storefront-backend/pkg/types"
)

// OrderLineItem is the immutable snapshot of one cart item at order-creation
// time. It holds no live reference back to Product or Cart; the product id is
// an identifier for lookups only.
type OrderLineItem struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID      `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID      `gorm:"column:product_id;type:uuid;not null"`
	Name           string         `gorm:"column:name;not null"`
	UnitPriceCents int            `gorm:"column:unit_price_cents;not null"`
	Qty            int            `gorm:"column:qty;not null"`
	MaxQty         int            `gorm:"column:max_qty;not null;default:0"`
	ImageURL       *string        `gorm:"column:image_url"`
	Variant        *types.Variant `gorm:"column:variant;type:jsonb;serializer:json"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// LineSubtotalCents is the snapshot price times quantity.
func (i OrderLineItem) LineSubtotalCents() int {
	return i.UnitPriceCents * i.Qty
}
