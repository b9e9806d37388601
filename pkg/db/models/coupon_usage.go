package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasrivero/storefront-backend/pkg/enums"
)

// CouponUsage is one consumed redemption slot: a row per (coupon, user,
// order). Non-void rows count against the coupon's per-user and global
// limits; voiding a row returns the slot.
type CouponUsage struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID      uuid.UUID               `gorm:"column:coupon_id;type:uuid;not null;index"`
	UserID        uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID       uuid.UUID               `gorm:"column:order_id;type:uuid;not null"`
	DiscountCents int                     `gorm:"column:discount_cents;not null"`
	Status        enums.CouponUsageStatus `gorm:"column:status;not null;default:'reserved'"`
	UsedAt        time.Time               `gorm:"column:used_at;not null"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
