// Package orders exposes a read-only HTTP endpoint for order settlement state.
package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stenbridge/settlement-service/internal/domain"
	"github.com/stenbridge/settlement-service/internal/domain/ports"
)

// Handler serves GET /orders/{handle}. Reads go through the order cache; a
// miss falls back to the repository and populates the cache. Writers
// invalidate on every ledger mutation, so a hit is never staler than the last
// applied event.
type Handler struct {
	orders ports.OrderRepository
	cache  ports.OrderCache
	logger *zap.Logger
}

// NewHandler creates an order read handler. cache may be nil.
func NewHandler(orders ports.OrderRepository, cache ports.OrderCache, logger *zap.Logger) *Handler {
	return &Handler{
		orders: orders,
		cache:  cache,
		logger: logger,
	}
}

type lineResponse struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	AmountMinor   int64  `json:"amount_minor"`
	Settled       bool   `json:"settled"`
	SettledAmount string `json:"settled_amount,omitempty"`
}

type orderResponse struct {
	Handle          string         `json:"handle"`
	Currency        string         `json:"currency"`
	Status          string         `json:"status"`
	Cancelled       bool           `json:"cancelled"`
	AuthorizedMinor int64          `json:"authorized_minor"`
	SettledMinor    int64          `json:"settled_minor"`
	RefundedMinor   int64          `json:"refunded_minor"`
	Authorized      string         `json:"authorized"`
	Settled         string         `json:"settled"`
	Refunded        string         `json:"refunded"`
	Lines           []lineResponse `json:"lines"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ServeHTTP handles GET /orders/{handle}
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	handle := strings.TrimPrefix(r.URL.Path, "/orders/")
	if handle == "" || strings.Contains(handle, "/") {
		http.Error(w, "missing order handle", http.StatusBadRequest)
		return
	}

	order, err := h.load(r.Context(), handle)
	if err != nil {
		if domain.IsNotFoundError(err) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load order",
			zap.String("handle", handle),
			zap.Error(err),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(toResponse(order)); err != nil {
		h.logger.Error("failed to encode order response",
			zap.String("handle", handle),
			zap.Error(err),
		)
	}
}

func (h *Handler) load(ctx context.Context, handle string) (*domain.Order, error) {
	if h.cache != nil {
		cached, hit, err := h.cache.Get(ctx, handle)
		if err != nil {
			h.logger.Warn("order cache read failed",
				zap.String("handle", handle),
				zap.Error(err),
			)
		} else if hit {
			return cached, nil
		}
	}

	order, err := h.orders.GetByHandle(ctx, nil, handle)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, order, 0); err != nil {
			h.logger.Warn("order cache write failed",
				zap.String("handle", handle),
				zap.Error(err),
			)
		}
	}
	return order, nil
}

func toResponse(order *domain.Order) orderResponse {
	resp := orderResponse{
		Handle:          order.Handle,
		Currency:        order.Currency,
		Status:          string(order.Status),
		Cancelled:       order.Cancelled,
		AuthorizedMinor: order.AuthorizedAmount,
		SettledMinor:    order.SettledAmount,
		RefundedMinor:   order.RefundedAmount,
		Authorized:      domain.ToMajorUnits(order.AuthorizedAmount, order.Currency).String(),
		Settled:         domain.ToMajorUnits(order.SettledAmount, order.Currency).String(),
		Refunded:        domain.ToMajorUnits(order.RefundedAmount, order.Currency).String(),
		UpdatedAt:       order.UpdatedAt,
	}
	for _, li := range order.Lines {
		line := lineResponse{
			ID:          li.ID,
			Kind:        string(li.Kind),
			AmountMinor: li.TotalAmount(),
			Settled:     li.Settled,
		}
		if li.Settled {
			line.SettledAmount = li.SettledAmount.String()
		}
		resp.Lines = append(resp.Lines, line)
	}
	return resp
}
