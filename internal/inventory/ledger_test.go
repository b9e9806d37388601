package inventory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	"github.com/lucasrivero/storefront-backend/pkg/enums"
	apperrors "github.com/lucasrivero/storefront-backend/pkg/errors"
)

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	records := `
CREATE TABLE IF NOT EXISTS inventory_records (
  product_id TEXT PRIMARY KEY,
  total_qty INTEGER NOT NULL,
  reserved_qty INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	reservations := `
CREATE TABLE IF NOT EXISTS stock_reservations (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  qty INTEGER NOT NULL,
  status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(records).Error)
	require.NoError(t, db.Exec(reservations).Error)

	// shared-cache sqlite returns SQLITE_LOCKED on concurrent writers, so
	// funnel everything through one connection
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	return db
}

func seedStock(t *testing.T, db *gorm.DB, total int) uuid.UUID {
	t.Helper()

	productID := uuid.New()
	require.NoError(t, db.Create(&models.InventoryRecord{
		ProductID: productID,
		TotalQty:  total,
	}).Error)
	return productID
}

func stockPosition(t *testing.T, db *gorm.DB, productID uuid.UUID) (total, reserved int) {
	t.Helper()

	var record models.InventoryRecord
	require.NoError(t, db.Where("product_id = ?", productID).First(&record).Error)
	return record.TotalQty, record.ReservedQty
}

func newTestLedger(t *testing.T, db *gorm.DB) Ledger {
	t.Helper()

	ledger, err := NewLedger(NewRepository(db))
	require.NoError(t, err)
	return ledger
}

func TestLedgerReserve_holdsStock(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()

	productID := seedStock(t, db, 10)

	lines, err := ledger.Reserve(ctx, uuid.New(), []ReserveRequest{{ProductID: productID, Qty: 4}})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 4, lines[0].Qty)

	total, reserved := stockPosition(t, db, productID)
	assert.Equal(t, 10, total)
	assert.Equal(t, 4, reserved)
}

func TestLedgerReserve_insufficientStock(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()

	productID := seedStock(t, db, 5)

	_, err := ledger.Reserve(ctx, uuid.New(), []ReserveRequest{{ProductID: productID, Qty: 3}})
	require.NoError(t, err)

	_, err = ledger.Reserve(ctx, uuid.New(), []ReserveRequest{{ProductID: productID, Qty: 3}})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientStock))

	total, reserved := stockPosition(t, db, productID)
	assert.Equal(t, 5, total)
	assert.Equal(t, 3, reserved)
}

func TestLedgerReserve_simultaneousOneWinner(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := newTestLedger(t, db)

	productID := seedStock(t, db, 5)

	const attempts = 4
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.Reserve(context.Background(), uuid.New(),
				[]ReserveRequest{{ProductID: productID, Qty: 3}})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientStock))
	}
	assert.Equal(t, 1, winners, "5 units cover exactly one hold of 3")

	total, reserved := stockPosition(t, db, productID)
	assert.Equal(t, 5, total)
	assert.Equal(t, 3, reserved)
}

func TestLedgerReserve_allOrNothing(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()

	plentiful := seedStock(t, db, 10)
	scarce := seedStock(t, db, 1)

	_, err := ledger.Reserve(ctx, uuid.New(), []ReserveRequest{
		{ProductID: plentiful, Qty: 2},
		{ProductID: scarce, Qty: 2},
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientStock))

	_, reserved := stockPosition(t, db, plentiful)
	assert.Equal(t, 0, reserved, "failed multi-line reserve must unwind earlier holds")
	_, reserved = stockPosition(t, db, scarce)
	assert.Equal(t, 0, reserved)
}

func TestLedgerReserve_rejectsInvalidQty(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := newTestLedger(t, db)

	_, err := ledger.Reserve(context.Background(), uuid.New(), []ReserveRequest{{ProductID: uuid.New(), Qty: 0}})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = ledger.Reserve(context.Background(), uuid.New(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestLedgerRelease_isIdempotent(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()

	productID := seedStock(t, db, 8)
	lines, err := ledger.Reserve(ctx, uuid.New(), []ReserveRequest{{ProductID: productID, Qty: 5}})
	require.NoError(t, err)

	require.NoError(t, ledger.Release(ctx, lines[0].ReservationID))
	require.NoError(t, ledger.Release(ctx, lines[0].ReservationID))

	total, reserved := stockPosition(t, db, productID)
	assert.Equal(t, 8, total)
	assert.Equal(t, 0, reserved, "double release must not free stock twice")
}

func TestLedgerCommit_deductsOnce(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()

	productID := seedStock(t, db, 8)
	lines, err := ledger.Reserve(ctx, uuid.New(), []ReserveRequest{{ProductID: productID, Qty: 5}})
	require.NoError(t, err)

	require.NoError(t, ledger.Commit(ctx, lines[0].ReservationID))
	require.NoError(t, ledger.Commit(ctx, lines[0].ReservationID))

	total, reserved := stockPosition(t, db, productID)
	assert.Equal(t, 3, total)
	assert.Equal(t, 0, reserved)
}

func TestLedgerRelease_afterCommitConflicts(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()

	productID := seedStock(t, db, 8)
	lines, err := ledger.Reserve(ctx, uuid.New(), []ReserveRequest{{ProductID: productID, Qty: 5}})
	require.NoError(t, err)
	require.NoError(t, ledger.Commit(ctx, lines[0].ReservationID))

	err = ledger.Release(ctx, lines[0].ReservationID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))
}

func TestLedgerRestock_returnsCommittedStock(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()

	productID := seedStock(t, db, 8)
	orderID := uuid.New()
	lines, err := ledger.Reserve(ctx, orderID, []ReserveRequest{{ProductID: productID, Qty: 5}})
	require.NoError(t, err)
	require.NoError(t, ledger.Commit(ctx, lines[0].ReservationID))

	require.NoError(t, ledger.Restock(ctx, lines[0].ReservationID))
	require.NoError(t, ledger.Restock(ctx, lines[0].ReservationID))

	total, reserved := stockPosition(t, db, productID)
	assert.Equal(t, 8, total)
	assert.Equal(t, 0, reserved)

	var reservation models.StockReservation
	require.NoError(t, db.Where("id = ?", lines[0].ReservationID).First(&reservation).Error)
	assert.Equal(t, enums.ReservationStatusRestocked, reservation.Status)
}

func TestLedgerRestock_activeReservationConflicts(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()

	productID := seedStock(t, db, 8)
	lines, err := ledger.Reserve(ctx, uuid.New(), []ReserveRequest{{ProductID: productID, Qty: 2}})
	require.NoError(t, err)

	err = ledger.Restock(ctx, lines[0].ReservationID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))
}

func TestLedgerOrderOperations(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()

	first := seedStock(t, db, 10)
	second := seedStock(t, db, 10)
	orderID := uuid.New()

	_, err := ledger.Reserve(ctx, orderID, []ReserveRequest{
		{ProductID: first, Qty: 3},
		{ProductID: second, Qty: 4},
	})
	require.NoError(t, err)

	require.NoError(t, ledger.CommitOrder(ctx, orderID))
	total, reserved := stockPosition(t, db, first)
	assert.Equal(t, 7, total)
	assert.Equal(t, 0, reserved)
	total, reserved = stockPosition(t, db, second)
	assert.Equal(t, 6, total)
	assert.Equal(t, 0, reserved)

	require.NoError(t, ledger.RestockOrder(ctx, orderID))
	total, _ = stockPosition(t, db, first)
	assert.Equal(t, 10, total)
	total, _ = stockPosition(t, db, second)
	assert.Equal(t, 10, total)
}

func TestLedgerAvailable(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()

	productID := seedStock(t, db, 12)
	_, err := ledger.Reserve(ctx, uuid.New(), []ReserveRequest{{ProductID: productID, Qty: 5}})
	require.NoError(t, err)

	availability, err := ledger.Available(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 12, availability.TotalQty)
	assert.Equal(t, 5, availability.ReservedQty)
	assert.Equal(t, 7, availability.AvailableQty)

	_, err = ledger.Available(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
