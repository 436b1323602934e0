// Package tokens exposes the stored-credential HTTP surface the checkout
// integration calls: store a gateway token, bind it to an order, claim an
// anonymous token after login, list and delete a customer's credentials.
package tokens

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/stenbridge/settlement-service/internal/domain"
	"github.com/stenbridge/settlement-service/internal/domain/ports"
)

// maxBodyBytes bounds request payload size
const maxBodyBytes = 64 << 10

// TokenService is the slice of the token service this handler drives
type TokenService interface {
	AddPaymentTokenToCustomer(ctx context.Context, customerID, gatewayTokenID string) (*domain.PaymentToken, error)
	AssignPaymentToken(ctx context.Context, handle, ref string) (*domain.PaymentToken, error)
	ClaimAnonymousToken(ctx context.Context, tokenID, customerID string) error
	DeleteCard(ctx context.Context, token *domain.PaymentToken) (bool, error)
}

// Handler serves the /tokens routes:
//
//	POST   /tokens          store a gateway token for a customer
//	POST   /tokens/assign   bind a stored token to an order
//	POST   /tokens/claim    move an anonymous token to a customer
//	GET    /tokens?customer_id=  list a customer's tokens
//	DELETE /tokens/{id}     delete a stored credential (gateway first)
type Handler struct {
	svc    TokenService
	tokens ports.TokenRepository
	logger *zap.Logger
}

// NewHandler creates a token handler
func NewHandler(svc TokenService, tokens ports.TokenRepository, logger *zap.Logger) *Handler {
	return &Handler{
		svc:    svc,
		tokens: tokens,
		logger: logger,
	}
}

type tokenResponse struct {
	ID             string `json:"id"`
	CustomerID     string `json:"customer_id"`
	GatewayTokenID string `json:"gateway_token_id"`
	Type           string `json:"type"`
	MaskedCard     string `json:"masked_card,omitempty"`
	CardType       string `json:"card_type,omitempty"`
	ExpMonth       int    `json:"exp_month,omitempty"`
	ExpYear        int    `json:"exp_year,omitempty"`
	IsDefault      bool   `json:"is_default"`
}

// ServeHTTP dispatches on the path below /tokens
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/tokens"), "/")

	switch {
	case rest == "" && r.Method == http.MethodPost:
		h.add(w, r)
	case rest == "" && r.Method == http.MethodGet:
		h.list(w, r)
	case rest == "assign" && r.Method == http.MethodPost:
		h.assign(w, r)
	case rest == "claim" && r.Method == http.MethodPost:
		h.claim(w, r)
	case rest != "" && !strings.Contains(rest, "/") && r.Method == http.MethodDelete:
		h.delete(w, r, rest)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID   string `json:"customer_id"`
		GatewayToken string `json:"gateway_token"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.CustomerID == "" {
		req.CustomerID = domain.AnonymousCustomerID
	}

	token, err := h.svc.AddPaymentTokenToCustomer(r.Context(), req.CustomerID, req.GatewayToken)
	if err != nil {
		h.writeError(w, err, "store token")
		return
	}
	h.writeJSON(w, http.StatusCreated, toResponse(token))
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderHandle string `json:"order_handle"`
		TokenRef    string `json:"token_ref"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.OrderHandle == "" {
		http.Error(w, "order_handle is required", http.StatusBadRequest)
		return
	}

	token, err := h.svc.AssignPaymentToken(r.Context(), req.OrderHandle, req.TokenRef)
	if err != nil {
		h.writeError(w, err, "assign token")
		return
	}
	h.writeJSON(w, http.StatusOK, toResponse(token))
}

func (h *Handler) claim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TokenID    string `json:"token_id"`
		CustomerID string `json:"customer_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.TokenID == "" || req.CustomerID == "" {
		http.Error(w, "token_id and customer_id are required", http.StatusBadRequest)
		return
	}

	if err := h.svc.ClaimAnonymousToken(r.Context(), req.TokenID, req.CustomerID); err != nil {
		h.writeError(w, err, "claim token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		http.Error(w, "customer_id is required", http.StatusBadRequest)
		return
	}

	stored, err := h.tokens.ListByCustomer(r.Context(), nil, customerID)
	if err != nil {
		h.writeError(w, err, "list tokens")
		return
	}

	resp := make([]tokenResponse, 0, len(stored))
	for _, token := range stored {
		resp = append(resp, toResponse(token))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, id string) {
	token, err := h.tokens.GetByID(r.Context(), nil, id)
	if err != nil {
		h.writeError(w, err, "load token")
		return
	}

	if _, err := h.svc.DeleteCard(r.Context(), token); err != nil {
		// The local record is kept; the caller retries against the gateway.
		h.writeError(w, err, "delete card")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(into); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode token response", zap.Error(err))
	}
}

// writeError maps domain error codes onto HTTP statuses
func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case domain.IsNotFoundError(err):
		http.Error(w, "not found", http.StatusNotFound)
	case domain.IsValidationError(err), domain.IsDomainError(err, domain.ErrorCodeTokenInvalidFields):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case domain.IsGatewayError(err):
		h.logger.Warn("gateway call failed", zap.String("op", op), zap.Error(err))
		http.Error(w, "gateway unavailable", http.StatusBadGateway)
	default:
		h.logger.Error("token operation failed", zap.String("op", op), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toResponse(token *domain.PaymentToken) tokenResponse {
	return tokenResponse{
		ID:             token.ID,
		CustomerID:     token.CustomerID,
		GatewayTokenID: token.GatewayTokenID,
		Type:           string(token.Type),
		MaskedCard:     token.MaskedCard,
		CardType:       token.CardType,
		ExpMonth:       token.ExpMonth,
		ExpYear:        token.ExpYear,
		IsDefault:      token.IsDefault,
	}
}
