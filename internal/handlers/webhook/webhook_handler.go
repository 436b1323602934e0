// Package webhook exposes the HTTP endpoint that receives payment-state
// notifications from the gateway.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/stenbridge/settlement-service/internal/domain"
)

// maxBodyBytes bounds webhook payload size
const maxBodyBytes = 1 << 20

// signatureHeader carries the gateway's HMAC-SHA256 hex digest of the raw body
const signatureHeader = "X-Reepay-Signature"

// Reconciler applies a verified webhook event to the order ledger
type Reconciler interface {
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

// Handler receives gateway webhook deliveries. The signature is verified over
// the raw body before any decoding; an unverifiable request is rejected
// without touching order state.
type Handler struct {
	reconciler Reconciler
	secret     []byte
	logger     *zap.Logger
}

// NewHandler creates a webhook handler verifying against secret
func NewHandler(reconciler Reconciler, secret string, logger *zap.Logger) *Handler {
	return &Handler{
		reconciler: reconciler,
		secret:     []byte(secret),
		logger:     logger,
	}
}

// ServeHTTP handles POST deliveries from the gateway.
//
// Responses steer the gateway's retry behavior: 200 acknowledges receipt even
// when the order is unknown (the gateway would otherwise retry forever), 401
// rejects bad signatures, 400 rejects malformed payloads, and 500 asks for a
// redelivery after a transient failure.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Warn("failed to read webhook body", zap.Error(err))
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !h.verifySignature(body, r.Header.Get(signatureHeader)) {
		h.logger.Warn("webhook signature verification failed",
			zap.String("remote_addr", r.RemoteAddr),
		)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var event domain.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Warn("failed to decode webhook payload", zap.Error(err))
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := event.Validate(); err != nil {
		h.logger.Warn("webhook payload failed validation",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.reconciler.Handle(r.Context(), &event); err != nil {
		if domain.IsInvalidTransition(err) || domain.IsValidationError(err) {
			// A stale or inconsistent event will never become applicable;
			// acknowledging stops the redelivery loop.
			h.logger.Warn("webhook event rejected",
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
			w.WriteHeader(http.StatusOK)
			return
		}
		h.logger.Error("webhook event processing failed",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
