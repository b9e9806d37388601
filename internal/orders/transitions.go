package orders

import "github.com/lucasrivero/storefront-backend/pkg/enums"

// allowedNext is the full order status machine. Anything absent here is an
// invalid transition. Cancelled and refunded are terminal.
var allowedNext = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusCreated:         {enums.OrderStatusPendingPayment},
	enums.OrderStatusPendingPayment:  {enums.OrderStatusPaid, enums.OrderStatusCancelled},
	enums.OrderStatusPaid:            {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing:      {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:         {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:       {enums.OrderStatusReturnRequested},
	enums.OrderStatusReturnRequested: {enums.OrderStatusReturned},
	enums.OrderStatusReturned:        {enums.OrderStatusRefunded},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range allowedNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// fulfillmentNext is the forward chain a merchant advances an order along.
var fulfillmentNext = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusPaid:       enums.OrderStatusProcessing,
	enums.OrderStatusProcessing: enums.OrderStatusShipped,
	enums.OrderStatusShipped:    enums.OrderStatusDelivered,
}
