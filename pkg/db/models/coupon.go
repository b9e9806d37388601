package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lucasrivero/storefront-backend/pkg/enums"
)

// Coupon defines a discount and the limits under which it may be redeemed.
// PerUserLimit/GlobalLimit of zero means unlimited.
type Coupon struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string             `gorm:"column:code;not null;uniqueIndex"`
	DiscountType     enums.DiscountType `gorm:"column:discount_type;not null"`
	DiscountValue    decimal.Decimal    `gorm:"column:discount_value;type:numeric;not null"`
	MinSubtotalCents int                `gorm:"column:min_subtotal_cents;not null;default:0"`
	PerUserLimit     int                `gorm:"column:per_user_limit;not null;default:0"`
	GlobalLimit      int                `gorm:"column:global_limit;not null;default:0"`
	StartsAt         *time.Time         `gorm:"column:starts_at"`
	EndsAt           *time.Time         `gorm:"column:ends_at"`
	Active           bool               `gorm:"column:active;not null;default:true"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// InWindow reports whether the coupon's date window covers now.
func (c Coupon) InWindow(now time.Time) bool {
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && now.After(*c.EndsAt) {
		return false
	}
	return true
}
