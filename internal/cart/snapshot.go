package cart

import (
	"fmt"

	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	apperrors "github.com/lucasrivero/storefront-backend/pkg/errors"
)

// Snapshot is a frozen copy of a cart: immutable line items plus the
// subtotal they imply. Later price or catalog changes cannot reach it.
type Snapshot struct {
	Lines         []models.OrderLineItem
	SubtotalCents int
}

// Freeze converts active cart items into order line items, enforcing the
// per-order quantity ceiling each item recorded when it was added. An empty
// cart and an over-ceiling quantity are both validation errors.
func Freeze(record *models.CartRecord) (*Snapshot, error) {
	if record == nil || len(record.Items) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "cart is empty")
	}

	snapshot := &Snapshot{Lines: make([]models.OrderLineItem, 0, len(record.Items))}
	for _, item := range record.Items {
		if item.Qty <= 0 {
			return nil, apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("invalid quantity %d for %s", item.Qty, item.ProductName))
		}
		if item.MaxQty > 0 && item.Qty > item.MaxQty {
			return nil, apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("quantity %d exceeds per-order limit %d for %s", item.Qty, item.MaxQty, item.ProductName)).
				WithDetails(map[string]any{
					"product_id": item.ProductID.String(),
					"qty":        item.Qty,
					"max_qty":    item.MaxQty,
				})
		}
		line := models.OrderLineItem{
			ProductID:      item.ProductID,
			Name:           item.ProductName,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			MaxQty:         item.MaxQty,
			ImageURL:       item.ImageURL,
			Variant:        item.Variant,
		}
		snapshot.Lines = append(snapshot.Lines, line)
		snapshot.SubtotalCents += line.LineSubtotalCents()
	}
	return snapshot, nil
}
