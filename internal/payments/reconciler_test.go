package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasrivero/storefront-backend/internal/orders"
	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	"github.com/lucasrivero/storefront-backend/pkg/enums"
	apperrors "github.com/lucasrivero/storefront-backend/pkg/errors"
)

type stubOrderService struct {
	orders.Service

	completedID  uuid.UUID
	completedRef string
	failedID     uuid.UUID
}

func (s *stubOrderService) CompletePayment(ctx context.Context, orderID uuid.UUID, paymentRef string) (*models.Order, error) {
	s.completedID = orderID
	s.completedRef = paymentRef
	return &models.Order{ID: orderID, Status: enums.OrderStatusPaid}, nil
}

func (s *stubOrderService) FailPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	s.failedID = orderID
	return &models.Order{ID: orderID, Status: enums.OrderStatusCancelled}, nil
}

func TestReconcilerApply_success(t *testing.T) {
	stub := &stubOrderService{}
	reconciler, err := NewReconciler(stub)
	require.NoError(t, err)

	orderID := uuid.New()
	order, err := reconciler.Apply(context.Background(), Notification{
		OrderID:   orderID,
		Outcome:   enums.PaymentOutcomeSuccess,
		Reference: "pay_abc",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, order.Status)
	assert.Equal(t, orderID, stub.completedID)
	assert.Equal(t, "pay_abc", stub.completedRef)
}

func TestReconcilerApply_successWithoutReference(t *testing.T) {
	reconciler, err := NewReconciler(&stubOrderService{})
	require.NoError(t, err)

	_, err = reconciler.Apply(context.Background(), Notification{
		OrderID: uuid.New(),
		Outcome: enums.PaymentOutcomeSuccess,
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestReconcilerApply_failure(t *testing.T) {
	stub := &stubOrderService{}
	reconciler, err := NewReconciler(stub)
	require.NoError(t, err)

	orderID := uuid.New()
	order, err := reconciler.Apply(context.Background(), Notification{
		OrderID: orderID,
		Outcome: enums.PaymentOutcomeFailure,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	assert.Equal(t, orderID, stub.failedID)
}

func TestReconcilerApply_unknownOutcome(t *testing.T) {
	reconciler, err := NewReconciler(&stubOrderService{})
	require.NoError(t, err)

	_, err = reconciler.Apply(context.Background(), Notification{
		OrderID: uuid.New(),
		Outcome: enums.PaymentOutcome("chargeback"),
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}
