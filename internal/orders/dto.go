package orders

import (
	"github.com/google/uuid"

	"github.com/lucasrivero/storefront-backend/pkg/enums"
)

// CreateInput starts a checkout for the user's active cart.
type CreateInput struct {
	UserID     uuid.UUID
	CouponCode *string
}

// ListFilters narrows and pages an order listing.
type ListFilters struct {
	Status *enums.OrderStatus
	Limit  int
	Offset int
}

// ReorderResult reports which products made it back into the cart. Products
// that went inactive since the original order are listed as skipped.
type ReorderResult struct {
	CartID          uuid.UUID   `json:"cart_id"`
	AddedProducts   []uuid.UUID `json:"added_products"`
	SkippedProducts []uuid.UUID `json:"skipped_products"`
}
