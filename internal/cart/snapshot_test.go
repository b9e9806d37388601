package cart

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	apperrors "github.com/lucasrivero/storefront-backend/pkg/errors"
)

func TestFreeze_snapshotsItems(t *testing.T) {
	productA := uuid.New()
	productB := uuid.New()
	record := &models.CartRecord{
		ID: uuid.New(),
		Items: []models.CartItem{
			{ProductID: productA, ProductName: "Mug", UnitPriceCents: 1200, Qty: 2, MaxQty: 5},
			{ProductID: productB, ProductName: "Poster", UnitPriceCents: 2500, Qty: 1},
		},
	}

	snapshot, err := Freeze(record)
	require.NoError(t, err)
	require.Len(t, snapshot.Lines, 2)
	assert.Equal(t, 2*1200+2500, snapshot.SubtotalCents)
	assert.Equal(t, "Mug", snapshot.Lines[0].Name)
	assert.Equal(t, 1200, snapshot.Lines[0].UnitPriceCents)
	assert.Equal(t, productB, snapshot.Lines[1].ProductID)
}

func TestFreeze_emptyCart(t *testing.T) {
	_, err := Freeze(&models.CartRecord{ID: uuid.New()})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = Freeze(nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestFreeze_quantityOverLimit(t *testing.T) {
	record := &models.CartRecord{
		ID: uuid.New(),
		Items: []models.CartItem{
			{ProductID: uuid.New(), ProductName: "Mug", UnitPriceCents: 1200, Qty: 6, MaxQty: 5},
		},
	}
	_, err := Freeze(record)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestFreeze_zeroQuantity(t *testing.T) {
	record := &models.CartRecord{
		ID: uuid.New(),
		Items: []models.CartItem{
			{ProductID: uuid.New(), ProductName: "Mug", UnitPriceCents: 1200, Qty: 0},
		},
	}
	_, err := Freeze(record)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}
