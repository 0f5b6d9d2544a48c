package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"calzados-be/internal/catalog"
	"calzados-be/internal/inventory"
	"calzados-be/internal/logger"
	"calzados-be/internal/order"
	"calzados-be/internal/payment"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors onto HTTP statuses. Anything unmapped is a
// 500 with a generic message; the real error only goes to the log.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		stockErr *inventory.InsufficientStockError
		sizeErr  *inventory.UnknownSizeError
	)

	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrOwnershipMismatch),
		errors.Is(err, catalog.ErrShoeNotFound):
		// Ownership mismatches look identical to a missing order so the
		// response leaks nothing about other shoppers' codes.
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})

	case errors.Is(err, order.ErrSessionExpired):
		writeJSON(w, http.StatusGone, errorResponse{Error: "checkout session expired"})

	case errors.Is(err, order.ErrPaymentWindowExpired):
		writeJSON(w, http.StatusGone, errorResponse{Error: "payment window expired"})

	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: "insufficient stock",
			Details: map[string]any{
				"shoe_id":   stockErr.ShoeID,
				"size":      stockErr.Size,
				"available": stockErr.Available,
				"requested": stockErr.Requested,
			},
		})

	case errors.As(err, &sizeErr):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: "unknown size",
			Details: map[string]any{
				"shoe_id": sizeErr.ShoeID,
				"size":    sizeErr.Size,
			},
		})

	case errors.Is(err, order.ErrInvalidState),
		errors.Is(err, order.ErrAlreadyPaid):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})

	case errors.Is(err, order.ErrInvalidForm),
		errors.Is(err, order.ErrInvalidPayment),
		errors.Is(err, inventory.ErrEmptyCart),
		errors.Is(err, inventory.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

	case errors.Is(err, payment.ErrGatewayUnreachable):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "payment gateway unavailable"})

	default:
		logger.FromCtx(ctx).Error("unhandled request error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
