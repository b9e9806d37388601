package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasrivero/storefront-backend/internal/products"
	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	"github.com/lucasrivero/storefront-backend/pkg/enums"
	apperrors "github.com/lucasrivero/storefront-backend/pkg/errors"
)

// Service manages a user's active cart. Items carry a price and name
// snapshot taken at add time; checkout freezes those snapshots, it does not
// reprice.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Get(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.CartRecord, error)
	UpdateItemQty(ctx context.Context, userID, itemID uuid.UUID, qty int) (*models.CartRecord, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*models.CartRecord, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo     Repository
	products products.Repository
}

func NewService(repo Repository, products products.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart: repository is required")
	}
	if products == nil {
		return nil, fmt.Errorf("cart: products repository is required")
	}
	return &service{repo: repo, products: products}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx), products: s.products}
}

// Get returns the user's active cart, creating an empty one on first use.
func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	record, err := s.repo.FindActiveByUser(ctx, userID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	record = &models.CartRecord{
		ID:     uuid.New(),
		UserID: userID,
		Status: enums.CartStatusActive,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.CartRecord, error) {
	if qty <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "quantity must be positive")
	}
	record, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, err, "product not found")
		}
		return nil, err
	}
	if !product.Active {
		return nil, apperrors.New(apperrors.CodeValidation, "product is not available")
	}
	if product.MaxQuantity > 0 && qty > product.MaxQuantity {
		return nil, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("quantity %d exceeds per-order limit %d", qty, product.MaxQuantity))
	}

	item := &models.CartItem{
		ID:             uuid.New(),
		CartID:         record.ID,
		ProductID:      product.ID,
		ProductName:    product.Name,
		UnitPriceCents: product.PriceCents,
		Qty:            qty,
		MaxQty:         product.MaxQuantity,
		ImageURL:       product.ImageURL,
	}
	if err := s.repo.UpsertItem(ctx, item); err != nil {
		return nil, err
	}
	return s.repo.FindActiveByUser(ctx, userID)
}

func (s *service) UpdateItemQty(ctx context.Context, userID, itemID uuid.UUID, qty int) (*models.CartRecord, error) {
	if qty <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "quantity must be positive")
	}
	record, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, item := range record.Items {
		if item.ID != itemID {
			continue
		}
		if item.MaxQty > 0 && qty > item.MaxQty {
			return nil, apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("quantity %d exceeds per-order limit %d", qty, item.MaxQty))
		}
	}
	updated, err := s.repo.UpdateItemQty(ctx, record.ID, itemID, qty)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, apperrors.New(apperrors.CodeNotFound, "cart item not found")
	}
	return s.repo.FindActiveByUser(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*models.CartRecord, error) {
	record, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, record.ID, itemID); err != nil {
		return nil, err
	}
	return s.repo.FindActiveByUser(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	record, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	return s.repo.DeleteItems(ctx, record.ID)
}
