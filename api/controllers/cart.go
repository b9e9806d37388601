package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lucasrivero/storefront-backend/api/middleware"
	"github.com/lucasrivero/storefront-backend/api/responses"
	"github.com/lucasrivero/storefront-backend/api/validators"
	cartsvc "github.com/lucasrivero/storefront-backend/internal/cart"
	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	pkgerrors "github.com/lucasrivero/storefront-backend/pkg/errors"
	"github.com/lucasrivero/storefront-backend/pkg/logger"
	"github.com/lucasrivero/storefront-backend/pkg/types"
)

// CartGet returns the caller's active cart, creating one when none exists.
func CartGet(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(r, logg, w, svc != nil, "cart service unavailable")
		if !ok {
			return
		}

		record, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(record))
	}
}

// CartAddItem adds a product to the caller's cart or bumps its quantity.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(r, logg, w, svc != nil, "cart service unavailable")
		if !ok {
			return
		}

		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.AddItem(r.Context(), userID, payload.ProductID, payload.Qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(record))
	}
}

// CartUpdateItem sets the quantity of one cart line.
func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(r, logg, w, svc != nil, "cart service unavailable")
		if !ok {
			return
		}

		itemID, err := validators.ParsePathUUID(chi.URLParam(r, "itemID"), "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.UpdateItemQty(r.Context(), userID, itemID, payload.Qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(record))
	}
}

// CartRemoveItem deletes one line from the caller's cart.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(r, logg, w, svc != nil, "cart service unavailable")
		if !ok {
			return
		}

		itemID, err := validators.ParsePathUUID(chi.URLParam(r, "itemID"), "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.RemoveItem(r.Context(), userID, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(record))
	}
}

// CartClear empties the caller's active cart.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(r, logg, w, svc != nil, "cart service unavailable")
		if !ok {
			return
		}

		if err := svc.Clear(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

func requireUser(r *http.Request, logg *logger.Logger, w http.ResponseWriter, available bool, unavailableMsg string) (uuid.UUID, bool) {
	if !available {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, unavailableMsg))
		return uuid.Nil, false
	}
	userID, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return uuid.Nil, false
	}
	return userID, true
}

type addCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

type updateCartItemRequest struct {
	Qty int `json:"qty" validate:"required,min=1"`
}

type cartResponse struct {
	ID            uuid.UUID          `json:"id"`
	Status        string             `json:"status"`
	Items         []cartItemResponse `json:"items"`
	SubtotalCents int                `json:"subtotal_cents"`
}

type cartItemResponse struct {
	ID             uuid.UUID      `json:"id"`
	ProductID      uuid.UUID      `json:"product_id"`
	ProductName    string         `json:"product_name"`
	UnitPriceCents int            `json:"unit_price_cents"`
	Qty            int            `json:"qty"`
	LineCents      int            `json:"line_cents"`
	ImageURL       *string        `json:"image_url,omitempty"`
	Variant        *types.Variant `json:"variant,omitempty"`
}

func newCartResponse(record *models.CartRecord) cartResponse {
	resp := cartResponse{
		ID:     record.ID,
		Status: record.Status.String(),
		Items:  make([]cartItemResponse, len(record.Items)),
	}
	for i, item := range record.Items {
		lineCents := item.UnitPriceCents * item.Qty
		resp.Items[i] = cartItemResponse{
			ID:             item.ID,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			LineCents:      lineCents,
			ImageURL:       item.ImageURL,
			Variant:        item.Variant,
		}
		resp.SubtotalCents += lineCents
	}
	return resp
}
