package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	"github.com/lucasrivero/storefront-backend/pkg/enums"
	apperrors "github.com/lucasrivero/storefront-backend/pkg/errors"
)

// Tracker consumes and returns coupon redemption slots. A slot is reserved
// during checkout, finalized when the order is paid, and voided when the
// order fails or is cancelled before payment.
type Tracker interface {
	WithTx(tx *gorm.DB) Tracker
	Validate(ctx context.Context, code string, userID uuid.UUID, subtotalCents int, now time.Time) (*models.Coupon, int, error)
	Reserve(ctx context.Context, coupon *models.Coupon, userID, orderID uuid.UUID, discountCents int) (*models.CouponUsage, error)
	Finalize(ctx context.Context, usageID uuid.UUID) error
	Void(ctx context.Context, usageID uuid.UUID) error
	VoidByOrder(ctx context.Context, orderID uuid.UUID) error
	Clawback(ctx context.Context, usageID uuid.UUID) error
}

type tracker struct {
	repo Repository
}

func NewTracker(repo Repository) (Tracker, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupons: repository is required")
	}
	return &tracker{repo: repo}, nil
}

func (t *tracker) WithTx(tx *gorm.DB) Tracker {
	return &tracker{repo: t.repo.WithTx(tx)}
}

// Validate checks a coupon code against the cart subtotal and the user's
// remaining redemptions, and returns the coupon along with the discount it
// grants in cents. The limit checks here are advisory reads for early
// rejection; Reserve re-enforces them atomically when the slot is consumed.
func (t *tracker) Validate(ctx context.Context, code string, userID uuid.UUID, subtotalCents int, now time.Time) (*models.Coupon, int, error) {
	coupon, err := t.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, apperrors.Wrap(apperrors.CodeCouponInvalid, err, "coupon code not found")
		}
		return nil, 0, err
	}
	if !coupon.Active {
		return nil, 0, apperrors.New(apperrors.CodeCouponInvalid, "coupon is not active")
	}
	if !coupon.InWindow(now) {
		return nil, 0, apperrors.New(apperrors.CodeCouponInvalid, "coupon is outside its validity window")
	}
	if subtotalCents < coupon.MinSubtotalCents {
		return nil, 0, apperrors.New(apperrors.CodeCouponInvalid, "cart subtotal below coupon minimum").
			WithDetails(map[string]any{
				"min_subtotal_cents": coupon.MinSubtotalCents,
				"subtotal_cents":     subtotalCents,
			})
	}
	if coupon.GlobalLimit > 0 {
		used, err := t.repo.CountActiveUsages(ctx, coupon.ID, nil)
		if err != nil {
			return nil, 0, err
		}
		if used >= int64(coupon.GlobalLimit) {
			return nil, 0, apperrors.New(apperrors.CodeLimitExceeded, "coupon redemption limit reached").
				WithDetails(map[string]any{"coupon_code": coupon.Code})
		}
	}
	if coupon.PerUserLimit > 0 {
		used, err := t.repo.CountActiveUsages(ctx, coupon.ID, &userID)
		if err != nil {
			return nil, 0, err
		}
		if used >= int64(coupon.PerUserLimit) {
			return nil, 0, apperrors.New(apperrors.CodeLimitExceeded, "coupon redemption limit reached for this user").
				WithDetails(map[string]any{"coupon_code": coupon.Code})
		}
	}
	return coupon, computeDiscountCents(coupon, subtotalCents), nil
}

// Reserve consumes one redemption slot. Limit exhaustion surfaces as
// CodeLimitExceeded, which checkout treats as a retryable client error.
func (t *tracker) Reserve(ctx context.Context, coupon *models.Coupon, userID, orderID uuid.UUID, discountCents int) (*models.CouponUsage, error) {
	usage := &models.CouponUsage{
		CouponID:      coupon.ID,
		UserID:        userID,
		OrderID:       orderID,
		DiscountCents: discountCents,
	}
	inserted, err := t.repo.InsertUsageWithinLimits(ctx, usage, coupon.PerUserLimit, coupon.GlobalLimit)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, apperrors.New(apperrors.CodeLimitExceeded, "coupon redemption limit reached").
			WithDetails(map[string]any{"coupon_code": coupon.Code})
	}
	return usage, nil
}

// Finalize marks a reserved slot as permanently consumed. Finalizing twice
// is a no-op; finalizing a void slot is a state conflict.
func (t *tracker) Finalize(ctx context.Context, usageID uuid.UUID) error {
	flipped, err := t.repo.TransitionUsage(ctx, usageID,
		enums.CouponUsageStatusReserved, enums.CouponUsageStatusFinal)
	if err != nil {
		return err
	}
	if flipped {
		return nil
	}
	return t.noFlip(ctx, usageID, enums.CouponUsageStatusFinal)
}

// Void returns a slot so the limits free up again. Voiding twice is a
// no-op; voiding a finalized slot is a state conflict.
func (t *tracker) Void(ctx context.Context, usageID uuid.UUID) error {
	flipped, err := t.repo.TransitionUsage(ctx, usageID,
		enums.CouponUsageStatusReserved, enums.CouponUsageStatusVoid)
	if err != nil {
		return err
	}
	if flipped {
		return nil
	}
	return t.noFlip(ctx, usageID, enums.CouponUsageStatusVoid)
}

// Clawback voids a finalized slot after a completed return, so the
// redemption no longer counts against the coupon's limits.
func (t *tracker) Clawback(ctx context.Context, usageID uuid.UUID) error {
	flipped, err := t.repo.TransitionUsage(ctx, usageID,
		enums.CouponUsageStatusFinal, enums.CouponUsageStatusVoid)
	if err != nil {
		return err
	}
	if flipped {
		return nil
	}
	return t.noFlip(ctx, usageID, enums.CouponUsageStatusVoid)
}

// VoidByOrder voids the slot attached to an order, if any.
func (t *tracker) VoidByOrder(ctx context.Context, orderID uuid.UUID) error {
	usage, err := t.repo.FindUsageByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return t.Void(ctx, usage.ID)
}

func (t *tracker) noFlip(ctx context.Context, usageID uuid.UUID, want enums.CouponUsageStatus) error {
	usage, err := t.repo.FindUsage(ctx, usageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Wrap(apperrors.CodeNotFound, err, "coupon usage not found")
		}
		return err
	}
	if usage.Status == want {
		return nil
	}
	return apperrors.New(apperrors.CodeStateConflict,
		fmt.Sprintf("coupon usage %s is %s", usageID, usage.Status))
}

// computeDiscountCents applies the coupon to a subtotal. Percent values are
// rounded half up to whole cents; the result never exceeds the subtotal.
func computeDiscountCents(coupon *models.Coupon, subtotalCents int) int {
	var discount int
	switch coupon.DiscountType {
	case enums.DiscountTypePercent:
		discount = int(decimal.NewFromInt(int64(subtotalCents)).
			Mul(coupon.DiscountValue).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart())
	case enums.DiscountTypeFixed:
		discount = int(coupon.DiscountValue.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
