package cart

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasrivero/storefront-backend/internal/products"
	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	apperrors "github.com/lucasrivero/storefront-backend/pkg/errors"
)

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	tables := []string{`
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  image_url TEXT,
  max_quantity INTEGER NOT NULL DEFAULT 0,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS cart_records (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  max_qty INTEGER NOT NULL DEFAULT 0,
  image_url TEXT,
  variant TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`}
	for _, stmt := range tables {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, priceCents, maxQty int) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:          uuid.New(),
		Name:        name,
		PriceCents:  priceCents,
		MaxQuantity: maxQty,
		Active:      true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(NewRepository(db), products.NewRepository(db))
	require.NoError(t, err)
	return svc
}

func TestServiceGet_createsEmptyCart(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newTestService(t, db)
	userID := uuid.New()

	record, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, record.UserID)
	assert.Empty(t, record.Items)

	again, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, again.ID)
}

func TestServiceAddItem_snapshotsProduct(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	product := seedProduct(t, db, "Mug", 1200, 5)

	record, err := svc.AddItem(ctx, userID, product.ID, 2)
	require.NoError(t, err)
	require.Len(t, record.Items, 1)
	assert.Equal(t, "Mug", record.Items[0].ProductName)
	assert.Equal(t, 1200, record.Items[0].UnitPriceCents)
	assert.Equal(t, 5, record.Items[0].MaxQty)

	// adding the same product replaces the quantity
	record, err = svc.AddItem(ctx, userID, product.ID, 3)
	require.NoError(t, err)
	require.Len(t, record.Items, 1)
	assert.Equal(t, 3, record.Items[0].Qty)
}

func TestServiceAddItem_rejectsOverLimit(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newTestService(t, db)

	product := seedProduct(t, db, "Mug", 1200, 2)

	_, err := svc.AddItem(context.Background(), uuid.New(), product.ID, 3)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestServiceAddItem_unknownProduct(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.AddItem(context.Background(), uuid.New(), uuid.New(), 1)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestServiceUpdateAndRemoveItem(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	product := seedProduct(t, db, "Mug", 1200, 0)
	record, err := svc.AddItem(ctx, userID, product.ID, 1)
	require.NoError(t, err)
	itemID := record.Items[0].ID

	record, err = svc.UpdateItemQty(ctx, userID, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, record.Items[0].Qty)

	_, err = svc.UpdateItemQty(ctx, userID, uuid.New(), 1)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	record, err = svc.RemoveItem(ctx, userID, itemID)
	require.NoError(t, err)
	assert.Empty(t, record.Items)
}

func TestServiceClear(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	product := seedProduct(t, db, "Mug", 1200, 0)
	_, err := svc.AddItem(ctx, userID, product.ID, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, userID))

	record, err := svc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, record.Items)
}
