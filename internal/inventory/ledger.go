package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	"github.com/lucasrivero/storefront-backend/pkg/enums"
	apperrors "github.com/lucasrivero/storefront-backend/pkg/errors"
)

// Ledger tracks stock holds across the order lifecycle. Holds are recorded
// as reservations so that every later release, commit, or restock operates
// on a durable token rather than on recomputed quantities.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	Reserve(ctx context.Context, orderID uuid.UUID, requests []ReserveRequest) ([]ReservedLine, error)
	Release(ctx context.Context, reservationID uuid.UUID) error
	Commit(ctx context.Context, reservationID uuid.UUID) error
	Restock(ctx context.Context, reservationID uuid.UUID) error
	ReleaseOrder(ctx context.Context, orderID uuid.UUID) error
	CommitOrder(ctx context.Context, orderID uuid.UUID) error
	RestockOrder(ctx context.Context, orderID uuid.UUID) error
	Available(ctx context.Context, productID uuid.UUID) (*Availability, error)
}

type ledger struct {
	repo Repository
}

// NewLedger wires the inventory ledger over its repository.
func NewLedger(repo Repository) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory: repository is required")
	}
	return &ledger{repo: repo}, nil
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	return &ledger{repo: l.repo.WithTx(tx)}
}

// Reserve holds stock for every request or for none of them. On a failed
// hold the lines already held are unwound in reverse order before the
// insufficient-stock error is returned.
func (l *ledger) Reserve(ctx context.Context, orderID uuid.UUID, requests []ReserveRequest) ([]ReservedLine, error) {
	if len(requests) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "no lines to reserve")
	}
	for _, req := range requests {
		if req.Qty <= 0 {
			return nil, apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("invalid quantity %d for product %s", req.Qty, req.ProductID))
		}
	}

	lines := make([]ReservedLine, 0, len(requests))
	for _, req := range requests {
		ok, err := l.repo.HoldStock(ctx, req.ProductID, req.Qty)
		if err == nil && !ok {
			err = apperrors.New(apperrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{
					"product_id":    req.ProductID.String(),
					"requested_qty": req.Qty,
				})
		}
		if err != nil {
			if unwindErr := l.unwind(ctx, lines); unwindErr != nil {
				err = multierr.Append(err, unwindErr)
			}
			return nil, err
		}

		reservation := &models.StockReservation{
			ID:        uuid.New(),
			OrderID:   orderID,
			ProductID: req.ProductID,
			Qty:       req.Qty,
			Status:    enums.ReservationStatusActive,
		}
		if err := l.repo.CreateReservation(ctx, reservation); err != nil {
			if _, unholdErr := l.repo.UnholdStock(ctx, req.ProductID, req.Qty); unholdErr != nil {
				err = multierr.Append(err, unholdErr)
			}
			if unwindErr := l.unwind(ctx, lines); unwindErr != nil {
				err = multierr.Append(err, unwindErr)
			}
			return nil, err
		}
		lines = append(lines, ReservedLine{
			ReservationID: reservation.ID,
			ProductID:     req.ProductID,
			Qty:           req.Qty,
		})
	}
	return lines, nil
}

func (l *ledger) unwind(ctx context.Context, lines []ReservedLine) error {
	var unwindErr error
	for i := len(lines) - 1; i >= 0; i-- {
		if err := l.Release(ctx, lines[i].ReservationID); err != nil {
			unwindErr = multierr.Append(unwindErr, err)
		}
	}
	return unwindErr
}

// Release returns an active hold to the available pool. Calling it again
// for an already released reservation is a no-op; releasing a committed
// reservation is a state conflict.
func (l *ledger) Release(ctx context.Context, reservationID uuid.UUID) error {
	reservation, err := l.findReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	flipped, err := l.repo.TransitionReservation(ctx, reservationID,
		enums.ReservationStatusActive, enums.ReservationStatusReleased)
	if err != nil {
		return err
	}
	if !flipped {
		return l.noFlip(ctx, reservationID, reservation.Status,
			enums.ReservationStatusReleased, enums.ReservationStatusRestocked)
	}
	ok, err := l.repo.UnholdStock(ctx, reservation.ProductID, reservation.Qty)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.New(apperrors.CodeInternal,
			fmt.Sprintf("reserved quantity below hold for product %s", reservation.ProductID))
	}
	return nil
}

// Commit converts an active hold into a permanent stock deduction.
// Committing twice is a no-op; committing a released reservation is a
// state conflict.
func (l *ledger) Commit(ctx context.Context, reservationID uuid.UUID) error {
	reservation, err := l.findReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	flipped, err := l.repo.TransitionReservation(ctx, reservationID,
		enums.ReservationStatusActive, enums.ReservationStatusCommitted)
	if err != nil {
		return err
	}
	if !flipped {
		return l.noFlip(ctx, reservationID, reservation.Status, enums.ReservationStatusCommitted)
	}
	ok, err := l.repo.CommitStock(ctx, reservation.ProductID, reservation.Qty)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.New(apperrors.CodeInternal,
			fmt.Sprintf("reserved quantity below hold for product %s", reservation.ProductID))
	}
	return nil
}

// Restock returns committed stock to the sellable pool, e.g. after a
// completed return. Restocking twice is a no-op.
func (l *ledger) Restock(ctx context.Context, reservationID uuid.UUID) error {
	reservation, err := l.findReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	flipped, err := l.repo.TransitionReservation(ctx, reservationID,
		enums.ReservationStatusCommitted, enums.ReservationStatusRestocked)
	if err != nil {
		return err
	}
	if !flipped {
		return l.noFlip(ctx, reservationID, reservation.Status, enums.ReservationStatusRestocked)
	}
	return l.repo.RestockStock(ctx, reservation.ProductID, reservation.Qty)
}

// ReleaseOrder releases every reservation attached to an order.
func (l *ledger) ReleaseOrder(ctx context.Context, orderID uuid.UUID) error {
	return l.forOrder(ctx, orderID, l.Release)
}

// CommitOrder commits every reservation attached to an order.
func (l *ledger) CommitOrder(ctx context.Context, orderID uuid.UUID) error {
	return l.forOrder(ctx, orderID, l.Commit)
}

// RestockOrder restocks every committed reservation attached to an order.
func (l *ledger) RestockOrder(ctx context.Context, orderID uuid.UUID) error {
	return l.forOrder(ctx, orderID, l.Restock)
}

func (l *ledger) forOrder(ctx context.Context, orderID uuid.UUID, op func(context.Context, uuid.UUID) error) error {
	reservations, err := l.repo.ListReservationsByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	var opErr error
	for _, reservation := range reservations {
		if err := op(ctx, reservation.ID); err != nil {
			opErr = multierr.Append(opErr, err)
		}
	}
	return opErr
}

func (l *ledger) Available(ctx context.Context, productID uuid.UUID) (*Availability, error) {
	record, err := l.repo.FindRecord(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, err, "inventory record not found")
		}
		return nil, err
	}
	return &Availability{
		ProductID:    record.ProductID,
		TotalQty:     record.TotalQty,
		ReservedQty:  record.ReservedQty,
		AvailableQty: record.AvailableQty(),
	}, nil
}

func (l *ledger) findReservation(ctx context.Context, reservationID uuid.UUID) (*models.StockReservation, error) {
	reservation, err := l.repo.FindReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, err, "reservation not found")
		}
		return nil, err
	}
	return reservation, nil
}

// noFlip classifies a failed status transition. Statuses listed in benign
// mean the desired outcome already holds, so the call is idempotent.
func (l *ledger) noFlip(ctx context.Context, reservationID uuid.UUID, observed enums.ReservationStatus, benign ...enums.ReservationStatus) error {
	current, err := l.repo.FindReservation(ctx, reservationID)
	if err == nil {
		observed = current.Status
	}
	for _, status := range benign {
		if observed == status {
			return nil
		}
	}
	return apperrors.New(apperrors.CodeStateConflict,
		fmt.Sprintf("reservation %s is %s", reservationID, observed))
}
