package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasrivero/storefront-backend/pkg/enums"
)

// Order is the persisted result of a checkout. Line items are owned values
// snapshotted from the cart; quantities never change after creation, only
// status and fulfillment metadata do. Orders are never deleted; cancellation
// and return are statuses.
//
// Financial identity: total = subtotal + tax + shipping - discount.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status          enums.OrderStatus `gorm:"column:status;not null;default:'pending_payment'"`
	SubtotalCents   int               `gorm:"column:subtotal_cents;not null"`
	TaxCents        int               `gorm:"column:tax_cents;not null;default:0"`
	ShippingCents   int               `gorm:"column:shipping_cents;not null;default:0"`
	DiscountCents   int               `gorm:"column:discount_cents;not null;default:0"`
	TotalCents      int               `gorm:"column:total_cents;not null"`
	CouponCode      *string           `gorm:"column:coupon_code"`
	CouponUsageID   *uuid.UUID        `gorm:"column:coupon_usage_id;type:uuid"`
	PaymentRef      *string           `gorm:"column:payment_ref"`
	Items           []OrderLineItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusChangedAt time.Time         `gorm:"column:status_changed_at;not null"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
