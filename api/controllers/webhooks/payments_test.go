package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasrivero/storefront-backend/internal/payments"
	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	"github.com/lucasrivero/storefront-backend/pkg/enums"
	pkgerrors "github.com/lucasrivero/storefront-backend/pkg/errors"
	pkgredis "github.com/lucasrivero/storefront-backend/pkg/redis"
)

type fakeReconciler struct {
	calls int
	err   error
}

func (f *fakeReconciler) Apply(_ context.Context, notification payments.Notification) (*models.Order, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.Order{ID: notification.OrderID, Status: enums.OrderStatusPaid}, nil
}

type memoryStore struct {
	values map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return value, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.values[key] = value.(string)
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func buildEvent(t *testing.T, outcome string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]string{
		"event_id":  "evt_" + uuid.NewString(),
		"order_id":  uuid.NewString(),
		"outcome":   outcome,
		"reference": "pay_" + uuid.NewString(),
	})
	require.NoError(t, err)
	return payload
}

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func newGuard(t *testing.T) *payments.IdempotencyGuard {
	t.Helper()
	guard, err := payments.NewIdempotencyGuard(newMemoryStore(), time.Minute, "payment-webhook")
	require.NoError(t, err)
	return guard
}

func postEvent(handler http.HandlerFunc, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestPaymentNotification(t *testing.T) {
	t.Run("appliesAndDedupes", func(t *testing.T) {
		reconciler := &fakeReconciler{}
		handler := PaymentNotification(reconciler, newGuard(t), "secret", nil)

		payload := buildEvent(t, "success")
		signature := signPayload(payload, "secret")

		first := postEvent(handler, payload, signature)
		require.Equal(t, http.StatusOK, first.Code, first.Body.String())
		assert.Equal(t, 1, reconciler.calls)

		second := postEvent(handler, payload, signature)
		require.Equal(t, http.StatusOK, second.Code)
		assert.Equal(t, 1, reconciler.calls)
		assert.Contains(t, second.Body.String(), "duplicate")
	})

	t.Run("rejectsBadSignature", func(t *testing.T) {
		reconciler := &fakeReconciler{}
		handler := PaymentNotification(reconciler, newGuard(t), "secret", nil)

		payload := buildEvent(t, "success")
		rec := postEvent(handler, payload, "deadbeef")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Zero(t, reconciler.calls)
	})

	t.Run("rejectsMissingSignature", func(t *testing.T) {
		reconciler := &fakeReconciler{}
		handler := PaymentNotification(reconciler, newGuard(t), "secret", nil)

		rec := postEvent(handler, buildEvent(t, "failure"), "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejectsUnknownOutcome", func(t *testing.T) {
		reconciler := &fakeReconciler{}
		handler := PaymentNotification(reconciler, newGuard(t), "secret", nil)

		payload := buildEvent(t, "maybe")
		rec := postEvent(handler, payload, signPayload(payload, "secret"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, reconciler.calls)
	})

	t.Run("transientFailureFreesEvent", func(t *testing.T) {
		reconciler := &fakeReconciler{err: pkgerrors.New(pkgerrors.CodeDependency, "gateway hiccup")}
		handler := PaymentNotification(reconciler, newGuard(t), "secret", nil)

		payload := buildEvent(t, "success")
		signature := signPayload(payload, "secret")

		first := postEvent(handler, payload, signature)
		require.NotEqual(t, http.StatusOK, first.Code)

		reconciler.err = nil
		second := postEvent(handler, payload, signature)
		require.Equal(t, http.StatusOK, second.Code, second.Body.String())
		assert.Equal(t, 2, reconciler.calls)
	})

	t.Run("replayConflictStaysMarked", func(t *testing.T) {
		reconciler := &fakeReconciler{err: pkgerrors.New(pkgerrors.CodeIdempotency, "payment reference mismatch")}
		handler := PaymentNotification(reconciler, newGuard(t), "secret", nil)

		payload := buildEvent(t, "success")
		signature := signPayload(payload, "secret")

		first := postEvent(handler, payload, signature)
		require.Equal(t, http.StatusConflict, first.Code)

		second := postEvent(handler, payload, signature)
		require.Equal(t, http.StatusOK, second.Code)
		assert.Contains(t, second.Body.String(), "duplicate")
		assert.Equal(t, 1, reconciler.calls)
	})
}
