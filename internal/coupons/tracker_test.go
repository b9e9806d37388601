package coupons

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	"github.com/lucasrivero/storefront-backend/pkg/enums"
	apperrors "github.com/lucasrivero/storefront-backend/pkg/errors"
)

func setupCouponsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	coupons := `
CREATE TABLE IF NOT EXISTS coupons (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  discount_type TEXT NOT NULL,
  discount_value TEXT NOT NULL,
  min_subtotal_cents INTEGER NOT NULL DEFAULT 0,
  per_user_limit INTEGER NOT NULL DEFAULT 0,
  global_limit INTEGER NOT NULL DEFAULT 0,
  starts_at DATETIME,
  ends_at DATETIME,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	usages := `
CREATE TABLE IF NOT EXISTS coupon_usages (
  id TEXT PRIMARY KEY,
  coupon_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  discount_cents INTEGER NOT NULL,
  status TEXT NOT NULL,
  used_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(coupons).Error)
	require.NoError(t, db.Exec(usages).Error)

	// shared-cache sqlite returns SQLITE_LOCKED on concurrent writers, so
	// funnel everything through one connection
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	return db
}

func seedCoupon(t *testing.T, db *gorm.DB, mutate func(*models.Coupon)) *models.Coupon {
	t.Helper()

	coupon := &models.Coupon{
		ID:            uuid.New(),
		Code:          "SAVE10-" + uuid.NewString()[:8],
		DiscountType:  enums.DiscountTypePercent,
		DiscountValue: decimal.NewFromInt(10),
		Active:        true,
	}
	if mutate != nil {
		mutate(coupon)
	}
	require.NoError(t, db.Create(coupon).Error)
	return coupon
}

func newTestTracker(t *testing.T, db *gorm.DB) Tracker {
	t.Helper()

	tracker, err := NewTracker(NewRepository(db))
	require.NoError(t, err)
	return tracker
}

func TestTrackerValidate(t *testing.T) {
	db := setupCouponsTestDB(t)
	tracker := newTestTracker(t, db)
	ctx := context.Background()
	now := time.Now().UTC()

	coupon := seedCoupon(t, db, nil)

	got, discount, err := tracker.Validate(ctx, coupon.Code, uuid.New(), 10000, now)
	require.NoError(t, err)
	assert.Equal(t, coupon.ID, got.ID)
	assert.Equal(t, 1000, discount)

	_, _, err = tracker.Validate(ctx, "NO-SUCH-CODE", uuid.New(), 10000, now)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCouponInvalid))
}

func TestTrackerValidate_inactiveAndWindow(t *testing.T) {
	db := setupCouponsTestDB(t)
	tracker := newTestTracker(t, db)
	ctx := context.Background()
	now := time.Now().UTC()

	inactive := seedCoupon(t, db, func(c *models.Coupon) { c.Active = false })
	_, _, err := tracker.Validate(ctx, inactive.Code, uuid.New(), 10000, now)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCouponInvalid))

	expired := seedCoupon(t, db, func(c *models.Coupon) {
		ended := now.Add(-time.Hour)
		c.EndsAt = &ended
	})
	_, _, err = tracker.Validate(ctx, expired.Code, uuid.New(), 10000, now)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCouponInvalid))

	future := seedCoupon(t, db, func(c *models.Coupon) {
		starts := now.Add(time.Hour)
		c.StartsAt = &starts
	})
	_, _, err = tracker.Validate(ctx, future.Code, uuid.New(), 10000, now)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCouponInvalid))
}

func TestTrackerValidate_minSubtotal(t *testing.T) {
	db := setupCouponsTestDB(t)
	tracker := newTestTracker(t, db)

	coupon := seedCoupon(t, db, func(c *models.Coupon) { c.MinSubtotalCents = 5000 })

	_, _, err := tracker.Validate(context.Background(), coupon.Code, uuid.New(), 4999, time.Now().UTC())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCouponInvalid))

	_, discount, err := tracker.Validate(context.Background(), coupon.Code, uuid.New(), 5000, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 500, discount)
}

func TestTrackerValidate_limitsExhausted(t *testing.T) {
	db := setupCouponsTestDB(t)
	tracker := newTestTracker(t, db)
	ctx := context.Background()
	now := time.Now().UTC()

	coupon := seedCoupon(t, db, func(c *models.Coupon) {
		c.PerUserLimit = 1
		c.GlobalLimit = 2
	})
	userID := uuid.New()

	_, _, err := tracker.Validate(ctx, coupon.Code, userID, 10000, now)
	require.NoError(t, err)

	_, err = tracker.Reserve(ctx, coupon, userID, uuid.New(), 500)
	require.NoError(t, err)

	// the user's slot is gone; validation reports it without consuming
	_, _, err = tracker.Validate(ctx, coupon.Code, userID, 10000, now)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeLimitExceeded))

	// another user still fits under the global limit
	other := uuid.New()
	_, _, err = tracker.Validate(ctx, coupon.Code, other, 10000, now)
	require.NoError(t, err)
	_, err = tracker.Reserve(ctx, coupon, other, uuid.New(), 500)
	require.NoError(t, err)

	// now the global limit is spent for everyone
	_, _, err = tracker.Validate(ctx, coupon.Code, uuid.New(), 10000, now)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeLimitExceeded))

	var count int64
	require.NoError(t, db.Model(&models.CouponUsage{}).Where("coupon_id = ?", coupon.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count, "validation must not insert slots")
}

func TestComputeDiscountCents(t *testing.T) {
	percent := &models.Coupon{DiscountType: enums.DiscountTypePercent, DiscountValue: decimal.NewFromFloat(12.5)}
	assert.Equal(t, 1250, computeDiscountCents(percent, 10000))
	assert.Equal(t, 13, computeDiscountCents(percent, 101))

	fixed := &models.Coupon{DiscountType: enums.DiscountTypeFixed, DiscountValue: decimal.NewFromFloat(15.00)}
	assert.Equal(t, 1500, computeDiscountCents(fixed, 10000))
	assert.Equal(t, 800, computeDiscountCents(fixed, 800), "discount clamps to subtotal")
}

func TestTrackerReserve_perUserLimit(t *testing.T) {
	db := setupCouponsTestDB(t)
	tracker := newTestTracker(t, db)
	ctx := context.Background()

	coupon := seedCoupon(t, db, func(c *models.Coupon) { c.PerUserLimit = 1 })
	userID := uuid.New()

	usage, err := tracker.Reserve(ctx, coupon, userID, uuid.New(), 500)
	require.NoError(t, err)
	assert.Equal(t, enums.CouponUsageStatusReserved, usage.Status)

	_, err = tracker.Reserve(ctx, coupon, userID, uuid.New(), 500)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeLimitExceeded))

	// a different user still has a slot
	_, err = tracker.Reserve(ctx, coupon, uuid.New(), uuid.New(), 500)
	require.NoError(t, err)
}

func TestTrackerReserve_globalLimit(t *testing.T) {
	db := setupCouponsTestDB(t)
	tracker := newTestTracker(t, db)
	ctx := context.Background()

	coupon := seedCoupon(t, db, func(c *models.Coupon) { c.GlobalLimit = 2 })

	_, err := tracker.Reserve(ctx, coupon, uuid.New(), uuid.New(), 500)
	require.NoError(t, err)
	_, err = tracker.Reserve(ctx, coupon, uuid.New(), uuid.New(), 500)
	require.NoError(t, err)

	_, err = tracker.Reserve(ctx, coupon, uuid.New(), uuid.New(), 500)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeLimitExceeded))
}

func TestTrackerReserve_simultaneousOneWinner(t *testing.T) {
	db := setupCouponsTestDB(t)
	tracker := newTestTracker(t, db)

	coupon := seedCoupon(t, db, func(c *models.Coupon) { c.GlobalLimit = 1 })

	const attempts = 4
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = tracker.Reserve(context.Background(), coupon, uuid.New(), uuid.New(), 500)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, apperrors.HasCode(err, apperrors.CodeLimitExceeded))
	}
	assert.Equal(t, 1, winners)

	var count int64
	require.NoError(t, db.Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND status <> ?", coupon.ID, enums.CouponUsageStatusVoid).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestTrackerVoid_freesSlot(t *testing.T) {
	db := setupCouponsTestDB(t)
	tracker := newTestTracker(t, db)
	ctx := context.Background()

	coupon := seedCoupon(t, db, func(c *models.Coupon) { c.PerUserLimit = 1 })
	userID := uuid.New()

	usage, err := tracker.Reserve(ctx, coupon, userID, uuid.New(), 500)
	require.NoError(t, err)

	require.NoError(t, tracker.Void(ctx, usage.ID))
	require.NoError(t, tracker.Void(ctx, usage.ID))

	// slot freed, same user can redeem again
	_, err = tracker.Reserve(ctx, coupon, userID, uuid.New(), 500)
	require.NoError(t, err)
}

func TestTrackerFinalize(t *testing.T) {
	db := setupCouponsTestDB(t)
	tracker := newTestTracker(t, db)
	ctx := context.Background()

	coupon := seedCoupon(t, db, nil)
	usage, err := tracker.Reserve(ctx, coupon, uuid.New(), uuid.New(), 500)
	require.NoError(t, err)

	require.NoError(t, tracker.Finalize(ctx, usage.ID))
	require.NoError(t, tracker.Finalize(ctx, usage.ID))

	err = tracker.Void(ctx, usage.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))
}

func TestTrackerVoidByOrder(t *testing.T) {
	db := setupCouponsTestDB(t)
	tracker := newTestTracker(t, db)
	ctx := context.Background()

	coupon := seedCoupon(t, db, nil)
	orderID := uuid.New()
	usage, err := tracker.Reserve(ctx, coupon, uuid.New(), orderID, 500)
	require.NoError(t, err)

	require.NoError(t, tracker.VoidByOrder(ctx, orderID))

	var got models.CouponUsage
	require.NoError(t, db.Where("id = ?", usage.ID).First(&got).Error)
	assert.Equal(t, enums.CouponUsageStatusVoid, got.Status)

	// no usage for the order is not an error
	require.NoError(t, tracker.VoidByOrder(ctx, uuid.New()))
}
