package inventory

import "github.com/google/uuid"

// ReserveRequest asks for qty units of a single product to be held.
type ReserveRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// ReservedLine reports one successful hold inside a Reserve call.
type ReservedLine struct {
	ReservationID uuid.UUID
	ProductID     uuid.UUID
	Qty           int
}

// Availability is the read-side view of a product's stock position.
type Availability struct {
	ProductID    uuid.UUID `json:"product_id"`
	TotalQty     int       `json:"total_qty"`
	ReservedQty  int       `json:"reserved_qty"`
	AvailableQty int       `json:"available_qty"`
}
