package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lucasrivero/storefront-backend/api/responses"
	"github.com/lucasrivero/storefront-backend/api/validators"
	ordersvc "github.com/lucasrivero/storefront-backend/internal/orders"
	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	"github.com/lucasrivero/storefront-backend/pkg/enums"
	apperrors "github.com/lucasrivero/storefront-backend/pkg/errors"
	"github.com/lucasrivero/storefront-backend/pkg/logger"
	"github.com/lucasrivero/storefront-backend/pkg/types"
)

// Checkout converts the caller's active cart into an order.
func Checkout(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(r, logg, w, svc != nil, "order service unavailable")
		if !ok {
			return
		}

		var payload checkoutRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.Create(r.Context(), ordersvc.CreateInput{
			UserID:     userID,
			CouponCode: payload.CouponCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

// OrderList pages the caller's orders, newest first.
func OrderList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(r, logg, w, svc != nil, "order service unavailable")
		if !ok {
			return
		}

		status, err := validators.ParseOrderStatus(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, total, err := svc.List(r.Context(), userID, ordersvc.ListFilters{
			Status: status,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]orderResponse, len(records))
		for i := range records {
			items[i] = newOrderResponse(&records[i])
		}
		responses.WriteSuccess(w, map[string]any{"orders": items, "total": total})
	}
}

// OrderGet returns one of the caller's orders with its line items.
func OrderGet(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(r, logg, w, svc != nil, "order service unavailable")
		if !ok {
			return
		}

		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderCancel cancels one of the caller's orders when its status allows it.
func OrderCancel(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return ownedOrderAction(svc, logg, func(r *http.Request, orderID uuid.UUID) (*models.Order, error) {
		return svc.Cancel(r.Context(), orderID)
	})
}

// OrderReturn opens a return for a delivered order.
func OrderReturn(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(r, logg, w, svc != nil, "order service unavailable")
		if !ok {
			return
		}

		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.RequestReturn(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderReorder copies a past order's products back into the active cart.
func OrderReorder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(r, logg, w, svc != nil, "order service unavailable")
		if !ok {
			return
		}

		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Reorder(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// OrderAdvance moves an order one step along the fulfillment chain. The body
// names the status the caller expects to reach, so a stale or skipping
// request is rejected instead of applied. Meant for operational tooling, not
// buyers.
func OrderAdvance(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return ownedOrderAction(svc, logg, func(r *http.Request, orderID uuid.UUID) (*models.Order, error) {
		var payload advanceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		next, err := enums.ParseOrderStatus(payload.NextStatus)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid next_status")
		}
		return svc.Advance(r.Context(), orderID, next)
	})
}

// OrderReturnComplete records that returned goods arrived back in stock.
func OrderReturnComplete(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return ownedOrderAction(svc, logg, func(r *http.Request, orderID uuid.UUID) (*models.Order, error) {
		return svc.CompleteReturn(r.Context(), orderID)
	})
}

// OrderRefund settles a completed return.
func OrderRefund(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return ownedOrderAction(svc, logg, func(r *http.Request, orderID uuid.UUID) (*models.Order, error) {
		return svc.Refund(r.Context(), orderID)
	})
}

func ownedOrderAction(svc ordersvc.Service, logg *logger.Logger, action func(*http.Request, uuid.UUID) (*models.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(r, logg, w, svc != nil, "order service unavailable")
		if !ok {
			return
		}

		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// Ownership gate; other users' orders read as not found.
		if _, err := svc.Get(r.Context(), orderID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := action(r, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type checkoutRequest struct {
	CouponCode *string `json:"coupon_code,omitempty"`
}

type advanceRequest struct {
	NextStatus string `json:"next_status" validate:"required"`
}

type orderResponse struct {
	ID              uuid.UUID               `json:"id"`
	Status          string                  `json:"status"`
	SubtotalCents   int                     `json:"subtotal_cents"`
	TaxCents        int                     `json:"tax_cents"`
	ShippingCents   int                     `json:"shipping_cents"`
	DiscountCents   int                     `json:"discount_cents"`
	TotalCents      int                     `json:"total_cents"`
	CouponCode      *string                 `json:"coupon_code,omitempty"`
	PaymentRef      *string                 `json:"payment_ref,omitempty"`
	Items           []orderLineItemResponse `json:"items"`
	StatusChangedAt time.Time               `json:"status_changed_at"`
	CreatedAt       time.Time               `json:"created_at"`
}

type orderLineItemResponse struct {
	ID             uuid.UUID      `json:"id"`
	ProductID      uuid.UUID      `json:"product_id"`
	Name           string         `json:"name"`
	UnitPriceCents int            `json:"unit_price_cents"`
	Qty            int            `json:"qty"`
	LineCents      int            `json:"line_cents"`
	ImageURL       *string        `json:"image_url,omitempty"`
	Variant        *types.Variant `json:"variant,omitempty"`
}

func newOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:              order.ID,
		Status:          order.Status.String(),
		SubtotalCents:   order.SubtotalCents,
		TaxCents:        order.TaxCents,
		ShippingCents:   order.ShippingCents,
		DiscountCents:   order.DiscountCents,
		TotalCents:      order.TotalCents,
		CouponCode:      order.CouponCode,
		PaymentRef:      order.PaymentRef,
		Items:           make([]orderLineItemResponse, len(order.Items)),
		StatusChangedAt: order.StatusChangedAt,
		CreatedAt:       order.CreatedAt,
	}
	for i, item := range order.Items {
		resp.Items[i] = orderLineItemResponse{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			LineCents:      item.LineSubtotalCents(),
			ImageURL:       item.ImageURL,
			Variant:        item.Variant,
		}
	}
	return resp
}
