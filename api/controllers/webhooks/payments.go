package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lucasrivero/storefront-backend/api/responses"
	"github.com/lucasrivero/storefront-backend/internal/payments"
	"github.com/lucasrivero/storefront-backend/pkg/db/models"
	"github.com/lucasrivero/storefront-backend/pkg/enums"
	pkgerrors "github.com/lucasrivero/storefront-backend/pkg/errors"
	"github.com/lucasrivero/storefront-backend/pkg/logger"
)

const signatureHeader = "X-Payment-Signature"

type paymentReconciler interface {
	Apply(ctx context.Context, notification payments.Notification) (*models.Order, error)
}

type paymentGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type paymentEvent struct {
	EventID   string `json:"event_id"`
	OrderID   string `json:"order_id"`
	Outcome   string `json:"outcome"`
	Reference string `json:"reference"`
}

// PaymentNotification handles gateway settlement callbacks.
func PaymentNotification(reconciler paymentReconciler, guard paymentGuard, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if reconciler == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get(signatureHeader)
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment signature missing"))
			return
		}
		if !validateSignature(payload, secret, sigHeader) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid payment signature"))
			return
		}

		var event paymentEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode notification"))
			return
		}

		notification, err := event.toNotification()
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		eventID := strings.TrimSpace(event.EventID)
		if eventID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id is required"))
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, map[string]string{"status": "duplicate"})
			return
		}

		order, err := reconciler.Apply(ctx, notification)
		if err != nil {
			// Replay conflicts stay marked; transient failures free the
			// event id so the gateway can retry.
			if !pkgerrors.HasCode(err, pkgerrors.CodeIdempotency) {
				_ = guard.Delete(ctx, eventID)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"order_id": order.ID,
			"status":   order.Status.String(),
		})
	}
}

func (e paymentEvent) toNotification() (payments.Notification, error) {
	orderID, err := uuid.Parse(strings.TrimSpace(e.OrderID))
	if err != nil {
		return payments.Notification{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	outcome, err := enums.ParsePaymentOutcome(strings.TrimSpace(e.Outcome))
	if err != nil {
		return payments.Notification{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment outcome")
	}
	return payments.Notification{
		OrderID:   orderID,
		Outcome:   outcome,
		Reference: strings.TrimSpace(e.Reference),
	}, nil
}

func validateSignature(payload []byte, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
