package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lucasrivero/storefront-backend/internal/orders"
	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	"github.com/lucasrivero/storefront-backend/pkg/enums"
	apperrors "github.com/lucasrivero/storefront-backend/pkg/errors"
)

// Notification is a payment outcome reported by the payment provider's
// webhook. Providers redeliver, so applying one must be idempotent.
type Notification struct {
	OrderID   uuid.UUID
	Outcome   enums.PaymentOutcome
	Reference string
}

// Reconciler maps provider notifications onto order lifecycle operations.
type Reconciler interface {
	Apply(ctx context.Context, notification Notification) (*models.Order, error)
}

type reconciler struct {
	orders orders.Service
}

func NewReconciler(orderSvc orders.Service) (Reconciler, error) {
	if orderSvc == nil {
		return nil, fmt.Errorf("payments: orders service is required")
	}
	return &reconciler{orders: orderSvc}, nil
}

func (r *reconciler) Apply(ctx context.Context, notification Notification) (*models.Order, error) {
	switch notification.Outcome {
	case enums.PaymentOutcomeSuccess:
		if notification.Reference == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "payment reference is required")
		}
		return r.orders.CompletePayment(ctx, notification.OrderID, notification.Reference)
	case enums.PaymentOutcomeFailure:
		return r.orders.FailPayment(ctx, notification.OrderID)
	default:
		return nil, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("unknown payment outcome %q", notification.Outcome))
	}
}
