package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lucasrivero/storefront-backend/internal/cart"
	"github.com/lucasrivero/storefront-backend/internal/coupons"
	"github.com/lucasrivero/storefront-backend/internal/inventory"
	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	"github.com/lucasrivero/storefront-backend/pkg/enums"
	apperrors "github.com/lucasrivero/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives the order lifecycle: checkout, payment settlement,
// fulfillment, cancellation, and returns. Checkout acquires coupon and
// inventory resources through their atomic guards and unwinds them in
// reverse order when a later step fails.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	CompletePayment(ctx context.Context, orderID uuid.UUID, paymentRef string) (*models.Order, error)
	FailPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	CancelIfPending(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Advance(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error)
	RequestReturn(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	CompleteReturn(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Refund(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Reorder(ctx context.Context, orderID, userID uuid.UUID) (*ReorderResult, error)
	Get(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID, filters ListFilters) ([]models.Order, int64, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	cartRepo cart.Repository
	carts    cart.Service
	ledger   inventory.Ledger
	coupons  coupons.Tracker
	pricing  Pricing
	clawback bool
}

// Options configures optional checkout behavior.
type Options struct {
	Pricing          Pricing
	ClawbackOnReturn bool
}

func NewService(repo Repository, tx txRunner, cartRepo cart.Repository, carts cart.Service, ledger inventory.Ledger, tracker coupons.Tracker, opts Options) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders: repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("orders: tx runner is required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("orders: cart repository is required")
	}
	if carts == nil {
		return nil, fmt.Errorf("orders: cart service is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("orders: inventory ledger is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("orders: coupon tracker is required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		cartRepo: cartRepo,
		carts:    carts,
		ledger:   ledger,
		coupons:  tracker,
		pricing:  opts.Pricing,
		clawback: opts.ClawbackOnReturn,
	}, nil
}

// Create runs the checkout saga: freeze the cart, reserve a coupon slot,
// reserve inventory, then persist the order and convert the cart in one
// transaction. Each acquisition is individually atomic; a failure after any
// of them runs the compensations accumulated so far in reverse order.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	record, err := s.cartRepo.FindActiveByUser(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeValidation, err, "cart is empty")
		}
		return nil, err
	}
	snapshot, err := cart.Freeze(record)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New()
	comp := &compensations{}

	var couponCode *string
	var couponUsageID *uuid.UUID
	discountCents := 0
	if input.CouponCode != nil && *input.CouponCode != "" {
		coupon, discount, err := s.coupons.Validate(ctx, *input.CouponCode, input.UserID, snapshot.SubtotalCents, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		usage, err := s.coupons.Reserve(ctx, coupon, input.UserID, orderID, discount)
		if err != nil {
			return nil, err
		}
		comp.add(func(ctx context.Context) error { return s.coupons.Void(ctx, usage.ID) })
		couponCode = &coupon.Code
		couponUsageID = &usage.ID
		discountCents = discount
	}

	requests := make([]inventory.ReserveRequest, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		requests = append(requests, inventory.ReserveRequest{ProductID: line.ProductID, Qty: line.Qty})
	}
	if _, err := s.ledger.Reserve(ctx, orderID, requests); err != nil {
		return nil, s.fail(ctx, comp, err)
	}
	comp.add(func(ctx context.Context) error { return s.ledger.ReleaseOrder(ctx, orderID) })

	totals := s.pricing.Compute(snapshot.SubtotalCents, discountCents)
	order := &models.Order{
		ID:              orderID,
		UserID:          input.UserID,
		Status:          enums.OrderStatusPendingPayment,
		SubtotalCents:   totals.SubtotalCents,
		TaxCents:        totals.TaxCents,
		ShippingCents:   totals.ShippingCents,
		DiscountCents:   totals.DiscountCents,
		TotalCents:      totals.TotalCents,
		CouponCode:      couponCode,
		CouponUsageID:   couponUsageID,
		Items:           snapshot.Lines,
		StatusChangedAt: time.Now().UTC(),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		converted, err := s.cartRepo.WithTx(tx).MarkConverted(ctx, record.ID)
		if err != nil {
			return err
		}
		if !converted {
			return apperrors.New(apperrors.CodeConflict, "cart was already checked out")
		}
		if err := s.cartRepo.WithTx(tx).DeleteItems(ctx, record.ID); err != nil {
			return err
		}
		return s.repo.WithTx(tx).Create(ctx, order)
	})
	if err != nil {
		return nil, s.fail(ctx, comp, err)
	}
	return order, nil
}

func (s *service) fail(ctx context.Context, comp *compensations, cause error) error {
	if compErr := comp.run(ctx); compErr != nil {
		return multierr.Append(cause, compErr)
	}
	return cause
}

// errStatusRaced aborts a transaction whose guarded status flip lost to a
// concurrent writer, so the caller can reload and dispatch on the new status.
var errStatusRaced = errors.New("orders: lost the status race")

// CompletePayment settles a pending order. The status flip, stock commit,
// coupon finalization, and payment reference land in one transaction, so a
// failure leaves the order pending and retryable. Replaying the same payment
// reference returns the order unchanged; a different reference against an
// already paid order is rejected.
func (s *service) CompletePayment(ctx context.Context, orderID uuid.UUID, paymentRef string) (*models.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case enums.OrderStatusPaid:
		if order.PaymentRef == nil {
			// Paid without a reference means an earlier settlement was cut
			// short. The stock and coupon guards tolerate replays, so run
			// the settlement again without the status flip.
			return s.settle(ctx, order, paymentRef, false)
		}
		return s.replayPaid(order, paymentRef)

	case enums.OrderStatusPendingPayment:
		return s.settle(ctx, order, paymentRef, true)

	default:
		return nil, apperrors.New(apperrors.CodeStateConflict,
			fmt.Sprintf("cannot pay order in status %s", order.Status))
	}
}

func (s *service) settle(ctx context.Context, order *models.Order, paymentRef string, flip bool) (*models.Order, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if flip {
			flipped, err := s.repo.WithTx(tx).UpdateStatusIf(ctx, order.ID, enums.OrderStatusPendingPayment, enums.OrderStatusPaid)
			if err != nil {
				return err
			}
			if !flipped {
				return errStatusRaced
			}
		}
		if err := s.ledger.WithTx(tx).CommitOrder(ctx, order.ID); err != nil {
			return err
		}
		if order.CouponUsageID != nil {
			if err := s.coupons.WithTx(tx).Finalize(ctx, *order.CouponUsageID); err != nil {
				return err
			}
		}
		return s.repo.WithTx(tx).SetPaymentRef(ctx, order.ID, paymentRef)
	})
	if errors.Is(err, errStatusRaced) {
		return s.CompletePayment(ctx, order.ID, paymentRef)
	}
	if err != nil {
		return nil, err
	}
	return s.findOrder(ctx, order.ID)
}

func (s *service) replayPaid(order *models.Order, paymentRef string) (*models.Order, error) {
	if order.PaymentRef != nil && *order.PaymentRef == paymentRef {
		return order, nil
	}
	return nil, apperrors.New(apperrors.CodeIdempotency,
		"order already paid with a different payment reference")
}

// FailPayment cancels an order after a failed payment attempt. A failure
// notice that races or replays against an already settled order is
// rejected rather than unwinding paid state; a repeat against an already
// cancelled order is a no-op.
func (s *service) FailPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case enums.OrderStatusCancelled:
		return order, nil
	case enums.OrderStatusPendingPayment:
		return s.CancelIfPending(ctx, orderID)
	default:
		return nil, apperrors.New(apperrors.CodeIdempotency,
			fmt.Sprintf("payment failure does not apply to order in status %s", order.Status))
	}
}

// Cancel voids an order. Before payment the holds are released and the
// coupon slot returned; after payment the committed stock is restocked and
// the coupon stays consumed. Cancelling a cancelled order is a no-op.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case enums.OrderStatusCancelled:
		return order, nil

	case enums.OrderStatusPendingPayment:
		cancelled, err := s.CancelIfPending(ctx, orderID)
		if apperrors.HasCode(err, apperrors.CodeStateConflict) {
			return s.Cancel(ctx, orderID)
		}
		if err != nil {
			return nil, err
		}
		return cancelled, nil

	case enums.OrderStatusPaid, enums.OrderStatusProcessing:
		flipped, err := s.repo.UpdateStatusIf(ctx, orderID, order.Status, enums.OrderStatusCancelled)
		if err != nil {
			return nil, err
		}
		if !flipped {
			return s.Cancel(ctx, orderID)
		}
		if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.ledger.WithTx(tx).RestockOrder(ctx, orderID)
		}); err != nil {
			return nil, err
		}

	default:
		return nil, apperrors.New(apperrors.CodeStateConflict,
			fmt.Sprintf("cannot cancel order in status %s", order.Status))
	}

	return s.findOrder(ctx, orderID)
}

// CancelIfPending cancels an order only while it still awaits payment. The
// guarded flip and the resource unwind share one transaction, so a payment
// that lands first wins: the order stays paid and the caller gets a state
// conflict. Expiry sweeps and payment failures route through here.
func (s *service) CancelIfPending(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		flipped, err := s.repo.WithTx(tx).UpdateStatusIf(ctx, orderID, enums.OrderStatusPendingPayment, enums.OrderStatusCancelled)
		if err != nil {
			return err
		}
		if !flipped {
			return errStatusRaced
		}
		if err := s.ledger.WithTx(tx).ReleaseOrder(ctx, orderID); err != nil {
			return err
		}
		return s.coupons.WithTx(tx).VoidByOrder(ctx, orderID)
	})
	if errors.Is(err, errStatusRaced) {
		order, err := s.findOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order.Status == enums.OrderStatusCancelled {
			return order, nil
		}
		return nil, apperrors.New(apperrors.CodeStateConflict,
			fmt.Sprintf("order is %s, not awaiting payment", order.Status))
	}
	if err != nil {
		return nil, err
	}
	return s.findOrder(ctx, orderID)
}

// Advance moves a paid order along the fulfillment chain
// (paid -> processing -> shipped -> delivered). The caller names the status
// it expects to reach; skipping a step or naming a non-fulfillment status is
// rejected against the order's current state.
func (s *service) Advance(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, next) {
		return nil, apperrors.New(apperrors.CodeStateConflict,
			fmt.Sprintf("order in status %s cannot move to %s", order.Status, next))
	}
	if step, ok := fulfillmentNext[order.Status]; !ok || step != next {
		return nil, apperrors.New(apperrors.CodeStateConflict,
			fmt.Sprintf("%s is not a fulfillment step from %s", next, order.Status))
	}
	if err := s.transition(ctx, orderID, order.Status, next); err != nil {
		return nil, err
	}
	return s.findOrder(ctx, orderID)
}

func (s *service) RequestReturn(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, err, "order not found")
		}
		return nil, err
	}
	if err := s.transition(ctx, order.ID, enums.OrderStatusDelivered, enums.OrderStatusReturnRequested); err != nil {
		return nil, err
	}
	return s.findOrder(ctx, orderID)
}

// CompleteReturn accepts returned goods back into stock. Whether the coupon
// redemption is clawed back is a deployment choice.
func (s *service) CompleteReturn(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, orderID, enums.OrderStatusReturnRequested, enums.OrderStatusReturned); err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.ledger.WithTx(tx).RestockOrder(ctx, orderID); err != nil {
			return err
		}
		if s.clawback && order.CouponUsageID != nil {
			return s.coupons.WithTx(tx).Clawback(ctx, *order.CouponUsageID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.findOrder(ctx, orderID)
}

func (s *service) Refund(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if err := s.transition(ctx, orderID, enums.OrderStatusReturned, enums.OrderStatusRefunded); err != nil {
		return nil, err
	}
	return s.findOrder(ctx, orderID)
}

// Reorder copies an order's products back into the user's active cart at
// current prices. Products no longer purchasable or without enough stock to
// cover the line are skipped, not failed.
func (s *service) Reorder(ctx context.Context, orderID, userID uuid.UUID) (*ReorderResult, error) {
	order, err := s.repo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, err, "order not found")
		}
		return nil, err
	}

	result := &ReorderResult{}
	for _, item := range order.Items {
		avail, err := s.ledger.Available(ctx, item.ProductID)
		if err != nil {
			if apperrors.HasCode(err, apperrors.CodeNotFound) {
				result.SkippedProducts = append(result.SkippedProducts, item.ProductID)
				continue
			}
			return nil, err
		}
		if avail.AvailableQty < item.Qty {
			result.SkippedProducts = append(result.SkippedProducts, item.ProductID)
			continue
		}
		_, err = s.carts.AddItem(ctx, userID, item.ProductID, item.Qty)
		if err != nil {
			if apperrors.HasCode(err, apperrors.CodeNotFound) || apperrors.HasCode(err, apperrors.CodeValidation) {
				result.SkippedProducts = append(result.SkippedProducts, item.ProductID)
				continue
			}
			return nil, err
		}
		result.AddedProducts = append(result.AddedProducts, item.ProductID)
	}

	record, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	result.CartID = record.ID
	return result, nil
}

func (s *service) Get(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, err, "order not found")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, filters ListFilters) ([]models.Order, int64, error) {
	return s.repo.List(ctx, userID, filters)
}

func (s *service) findOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, err, "order not found")
		}
		return nil, err
	}
	return order, nil
}

// transition performs one guarded status flip, treating an already-applied
// flip as success.
func (s *service) transition(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) error {
	flipped, err := s.repo.UpdateStatusIf(ctx, orderID, from, to)
	if err != nil {
		return err
	}
	if flipped {
		return nil
	}
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == to {
		return nil
	}
	return apperrors.New(apperrors.CodeStateConflict,
		fmt.Sprintf("order is %s, expected %s", order.Status, from))
}
