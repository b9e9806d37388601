package coupons

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	"github.com/lucasrivero/storefront-backend/pkg/enums"
)

// Repository persists coupons and their redemption slots. Slot insertion
// locks the coupon row and enforces per-user and global limits under that
// lock, so concurrent redemptions can never both slip under a limit.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindUsage(ctx context.Context, id uuid.UUID) (*models.CouponUsage, error)
	FindUsageByOrder(ctx context.Context, orderID uuid.UUID) (*models.CouponUsage, error)
	InsertUsageWithinLimits(ctx context.Context, usage *models.CouponUsage, perUserLimit, globalLimit int) (bool, error)
	TransitionUsage(ctx context.Context, id uuid.UUID, from, to enums.CouponUsageStatus) (bool, error)
	CountActiveUsages(ctx context.Context, couponID uuid.UUID, userID *uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) FindUsage(ctx context.Context, id uuid.UUID) (*models.CouponUsage, error) {
	var usage models.CouponUsage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&usage).Error
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

func (r *repository) FindUsageByOrder(ctx context.Context, orderID uuid.UUID) (*models.CouponUsage, error) {
	var usage models.CouponUsage
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&usage).Error
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

// InsertUsageWithinLimits inserts a redemption slot only while both limits
// still have headroom. Void slots do not count. A limit of zero means
// unlimited. Zero rows affected means a limit was hit.
func (r *repository) InsertUsageWithinLimits(ctx context.Context, usage *models.CouponUsage, perUserLimit, globalLimit int) (bool, error) {
	if usage.ID == uuid.Nil {
		usage.ID = uuid.New()
	}
	if usage.UsedAt.IsZero() {
		usage.UsedAt = time.Now().UTC()
	}
	now := time.Now().UTC()

	var inserted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The no-op update takes a row lock on the coupon, so concurrent
		// reservations serialize and the count guards below read a settled
		// state instead of a pre-insert snapshot.
		if err := tx.Exec(`UPDATE coupons SET updated_at = updated_at WHERE id = ?`, usage.CouponID).Error; err != nil {
			return err
		}
		res := tx.Exec(`
			INSERT INTO coupon_usages (id, coupon_id, user_id, order_id, discount_cents, status, used_at, created_at, updated_at)
			SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?
			WHERE (? = 0 OR (
				SELECT COUNT(*) FROM coupon_usages
				WHERE coupon_id = ? AND user_id = ? AND status <> ?
			) < ?)
			AND (? = 0 OR (
				SELECT COUNT(*) FROM coupon_usages
				WHERE coupon_id = ? AND status <> ?
			) < ?)
		`,
			usage.ID, usage.CouponID, usage.UserID, usage.OrderID, usage.DiscountCents,
			enums.CouponUsageStatusReserved, usage.UsedAt, now, now,
			perUserLimit, usage.CouponID, usage.UserID, enums.CouponUsageStatusVoid, perUserLimit,
			globalLimit, usage.CouponID, enums.CouponUsageStatusVoid, globalLimit,
		)
		if res.Error != nil {
			return res.Error
		}
		inserted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}
	usage.Status = enums.CouponUsageStatusReserved
	return true, nil
}

// TransitionUsage flips a slot's status only from the expected current one.
func (r *repository) TransitionUsage(ctx context.Context, id uuid.UUID, from, to enums.CouponUsageStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CouponUsage{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountActiveUsages counts non-void slots, optionally scoped to one user.
func (r *repository) CountActiveUsages(ctx context.Context, couponID uuid.UUID, userID *uuid.UUID) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND status <> ?", couponID, enums.CouponUsageStatusVoid)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
