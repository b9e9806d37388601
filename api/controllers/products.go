package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lucasrivero/storefront-backend/api/responses"
	"github.com/lucasrivero/storefront-backend/api/validators"
	"github.com/lucasrivero/storefront-backend/internal/inventory"
	"github.com/lucasrivero/storefront-backend/internal/products"
	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	pkgerrors "github.com/lucasrivero/storefront-backend/pkg/errors"
	"github.com/lucasrivero/storefront-backend/pkg/logger"
)

// ProductList returns the active catalog, paged.
func ProductList(repo products.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product repository unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := repo.ListActive(r.Context(), limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]productResponse, len(records))
		for i, record := range records {
			items[i] = newProductResponse(record)
		}
		responses.WriteSuccess(w, map[string]any{"products": items})
	}
}

// ProductAvailability exposes the uncommitted stock position for one product.
func ProductAvailability(ledger inventory.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger unavailable"))
			return
		}

		productID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		availability, err := ledger.Available(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, availability)
	}
}

type productResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	PriceCents  int     `json:"price_cents"`
	ImageURL    *string `json:"image_url,omitempty"`
	MaxQuantity int     `json:"max_quantity"`
}

func newProductResponse(record models.Product) productResponse {
	return productResponse{
		ID:          record.ID.String(),
		Name:        record.Name,
		PriceCents:  record.PriceCents,
		ImageURL:    record.ImageURL,
		MaxQuantity: record.MaxQuantity,
	}
}
