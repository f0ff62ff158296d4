package square

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/towdesk/backoffice-api/internal/common"
	"github.com/towdesk/backoffice-api/internal/ledger"
	"github.com/towdesk/backoffice-api/internal/obs"
)

// SignatureHeader carries Square's HMAC signature of the notification.
const SignatureHeader = "x-square-hmacsha256-signature"

const replayKeyPrefix = "towdesk:sqevent:"

// Verifier checks webhook signatures. Square signs the concatenation of the
// notification URL and the raw request body with the webhook signature key.
type Verifier struct {
	SignatureKey    string
	NotificationURL string
}

// Verify reports whether the provided signature matches the payload.
func (v Verifier) Verify(body []byte, signature string) bool {
	key := strings.TrimSpace(v.SignatureKey)
	provided := strings.TrimSpace(signature)
	if key == "" || provided == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(v.NotificationURL))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(provided))
}

// StatusApplier updates ledger records when Square reports a status change.
type StatusApplier interface {
	ApplyPaymentStatus(ctx context.Context, squarePaymentID string, status ledger.Status) error
	ApplyRefundStatus(ctx context.Context, squareRefundID string, status ledger.Status) error
}

// Webhook handles Square notification callbacks, including signature
// verification and replay suppression.
type Webhook struct {
	Verifier  Verifier
	Replay    *redis.Client
	ReplayTTL time.Duration
	Ledger    StatusApplier
	Logger    zerolog.Logger
}

type webhookEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    struct {
		Object struct {
			Payment *Payment `json:"payment"`
			Refund  *Refund  `json:"refund"`
		} `json:"object"`
	} `json:"data"`
}

// Handle processes a Square webhook delivery. Replayed and unrecognised
// events are acknowledged with 200 so Square stops redelivering them.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Ledger == nil {
		common.JSONError(w, http.StatusInternalServerError, "WEBHOOK_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if !h.Verifier.Verify(body, r.Header.Get(SignatureHeader)) {
		h.countResult("unknown", "invalid_signature")
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.countResult("unknown", "malformed")
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", "malformed payload", nil)
		return
	}

	if h.Replay != nil && h.ReplayTTL > 0 && event.EventID != "" {
		ok, err := h.Replay.SetNX(r.Context(), replayKeyPrefix+event.EventID, "1", h.ReplayTTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", err.Error(), nil)
			return
		}
		if !ok {
			h.countResult(event.Type, "replay")
			common.JSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
	}

	ctx := r.Context()
	switch event.Type {
	case "payment.updated", "payment.created":
		payment := event.Data.Object.Payment
		if payment == nil || payment.ID == "" {
			h.countResult(event.Type, "malformed")
			common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", "missing payment object", nil)
			return
		}
		status := ledger.StatusFromSquare(payment.Status)
		if err := h.Ledger.ApplyPaymentStatus(ctx, payment.ID, status); err != nil {
			h.countResult(event.Type, "error")
			h.Logger.Error().Err(err).Str("square_payment_id", payment.ID).Msg("apply payment status")
			common.JSONError(w, http.StatusInternalServerError, "PAYMENT_UPDATE_ERROR", err.Error(), nil)
			return
		}
	case "refund.updated", "refund.created":
		refund := event.Data.Object.Refund
		if refund == nil || refund.ID == "" {
			h.countResult(event.Type, "malformed")
			common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", "missing refund object", nil)
			return
		}
		status := ledger.StatusFromSquare(refund.Status)
		if err := h.Ledger.ApplyRefundStatus(ctx, refund.ID, status); err != nil {
			h.countResult(event.Type, "error")
			h.Logger.Error().Err(err).Str("square_refund_id", refund.ID).Msg("apply refund status")
			common.JSONError(w, http.StatusInternalServerError, "REFUND_UPDATE_ERROR", err.Error(), nil)
			return
		}
	default:
		h.countResult(event.Type, "ignored")
		common.JSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	h.countResult(event.Type, "applied")
	common.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h Webhook) countResult(event, result string) {
	if obs.SquareWebhookTotal == nil {
		return
	}
	if event == "" {
		event = "unknown"
	}
	obs.SquareWebhookTotal.WithLabelValues(event, result).Inc()
}
