package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	apperrors "github.com/lucasrivero/storefront-backend/pkg/errors"
	"github.com/lucasrivero/storefront-backend/pkg/logger"
)

const defaultPendingTTL = 24 * time.Hour

type pendingOrderReader interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type orderCanceller interface {
	CancelIfPending(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// PendingOrderJobParams configure the stale-order sweep.
type PendingOrderJobParams struct {
	Logger     *logger.Logger
	Reader     pendingOrderReader
	Canceller  orderCanceller
	PendingTTL time.Duration
}

type pendingOrderJob struct {
	logg      *logger.Logger
	reader    pendingOrderReader
	canceller orderCanceller
	ttl       time.Duration
}

// NewPendingOrderJob builds the job that cancels orders stuck awaiting
// payment past their TTL. Cancellation releases their stock holds and
// returns any coupon slot.
func NewPendingOrderJob(params PendingOrderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("pending orders reader required")
	}
	if params.Canceller == nil {
		return nil, fmt.Errorf("order canceller required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &pendingOrderJob{
		logg:      params.Logger,
		reader:    params.Reader,
		canceller: params.Canceller,
		ttl:       ttl,
	}, nil
}

func (j *pendingOrderJob) Name() string {
	return "pending_order_expiry"
}

func (j *pendingOrderJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.ttl)
	stale, err := j.reader.FindPendingBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list pending orders: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	var sweepErr error
	expired := 0
	for _, order := range stale {
		orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
		if _, err := j.canceller.CancelIfPending(orderCtx, order.ID); err != nil {
			// a payment that lands mid-sweep moves the order on; skip it
			if apperrors.HasCode(err, apperrors.CodeStateConflict) {
				j.logg.Info(orderCtx, "order settled during sweep; skipping")
				continue
			}
			j.logg.Error(orderCtx, "failed to expire pending order", err)
			sweepErr = multierr.Append(sweepErr, err)
			continue
		}
		expired++
	}

	j.logg.Info(j.logg.WithField(ctx, "expired", expired), "pending order sweep complete")
	return sweepErr
}
