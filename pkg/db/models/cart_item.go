package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasrivero/storefront-backend/pkg/types"
)

// CartItem carries the product snapshot (name, price, image, variant) taken
// when the item was added, plus the per-order quantity ceiling recorded at
// that moment.
type CartItem struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID         uuid.UUID      `gorm:"column:cart_id;type:uuid;not null"`
	ProductID      uuid.UUID      `gorm:"column:product_id;type:uuid;not null"`
	ProductName    string         `gorm:"column:product_name;not null"`
	UnitPriceCents int            `gorm:"column:unit_price_cents;not null"`
	Qty            int            `gorm:"column:qty;not null"`
	MaxQty         int            `gorm:"column:max_qty;not null;default:0"`
	ImageURL       *string        `gorm:"column:image_url"`
	Variant        *types.Variant `gorm:"column:variant;type:jsonb;serializer:json"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
