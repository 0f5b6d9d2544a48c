package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"calzados-be/internal/inventory"
	"calzados-be/internal/logger"
	"calzados-be/internal/middleware"
	"calzados-be/internal/order"
	"calzados-be/internal/payment/confirm"
	"calzados-be/internal/sweeper"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies; carts and forms are small.
const maxBodyBytes = 64 << 10

// PaymentConfirmer is the slice of the confirmation coordinator the HTTP
// surface needs.
type PaymentConfirmer interface {
	HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (confirm.Outcome, error)
	ConfirmFromReturn(ctx context.Context, sessionID string) (confirm.Outcome, string, error)
}

// SweepRunner triggers one cleanup pass.
type SweepRunner interface {
	Sweep(ctx context.Context) (*sweeper.Summary, error)
}

type Handler struct {
	checkout order.CheckoutService
	confirm  PaymentConfirmer
	sweeper  SweepRunner
}

func NewHandler(checkout order.CheckoutService, confirmer PaymentConfirmer, sw SweepRunner) *Handler {
	return &Handler{
		checkout: checkout,
		confirm:  confirmer,
		sweeper:  sw,
	}
}

// orderView is the wire shape of an order.
type orderView struct {
	Code          string          `json:"code"`
	State         string          `json:"state"`
	Paid          bool            `json:"paid"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Subtotal      int64           `json:"subtotal"`
	Discount      int64           `json:"discount"`
	Tax           int64           `json:"tax"`
	DeliveryCost  int64           `json:"delivery_cost"`
	Total         int64           `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []orderItemView `json:"items"`
}

type orderItemView struct {
	ShoeID    uint   `json:"shoe_id"`
	ShoeName  string `json:"shoe_name"`
	Size      int    `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Total     int64  `json:"total"`
}

func viewOf(o *order.Order) orderView {
	v := orderView{
		Code:          o.Code,
		State:         string(o.State()),
		Paid:          o.Paid,
		PaymentMethod: string(o.PaymentMethod),
		Subtotal:      o.Subtotal,
		Discount:      o.Discount,
		Tax:           o.Tax,
		DeliveryCost:  o.DeliveryCost,
		Total:         o.Total,
		CreatedAt:     o.CreatedAt,
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, orderItemView{
			ShoeID:    it.ShoeID,
			ShoeName:  it.ShoeName,
			Size:      it.Size,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Total:     it.Total,
		})
	}
	return v
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

type startCheckoutRequest struct {
	Items []struct {
		ShoeID   uint `json:"shoe_id"`
		Size     int  `json:"size"`
		Quantity int  `json:"quantity"`
	} `json:"items"`
}

// StartCheckout reserves stock and opens a checkout session. The returned
// order code is the session token for every later step.
func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	var req startCheckoutRequest
	if !decodeBody(w, r, &req) {
		return
	}

	lines := make([]inventory.CartLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, inventory.CartLine{
			ShoeID:   it.ShoeID,
			Size:     it.Size,
			Quantity: it.Quantity,
		})
	}

	o, err := h.checkout.Start(r.Context(), lines, middleware.CallerID(r.Context()))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, viewOf(o))
}

func (h *Handler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var f order.ContactForm
	if !decodeBody(w, r, &f) {
		return
	}

	code := chi.URLParam(r, "code")
	if err := h.checkout.SubmitContact(r.Context(), code, middleware.CallerID(r.Context()), f); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) SubmitShipping(w http.ResponseWriter, r *http.Request) {
	var f order.AddressForm
	if !decodeBody(w, r, &f) {
		return
	}

	code := chi.URLParam(r, "code")
	if err := h.checkout.SubmitShipping(r.Context(), code, middleware.CallerID(r.Context()), f); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) SubmitBilling(w http.ResponseWriter, r *http.Request) {
	var f order.AddressForm
	if !decodeBody(w, r, &f) {
		return
	}

	code := chi.URLParam(r, "code")
	if err := h.checkout.SubmitBilling(r.Context(), code, middleware.CallerID(r.Context()), f); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type selectPaymentRequest struct {
	Method string `json:"method"`
}

func (h *Handler) SelectPayment(w http.ResponseWriter, r *http.Request) {
	var req selectPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	code := chi.URLParam(r, "code")
	step, err := h.checkout.SelectPayment(r.Context(), code, middleware.CallerID(r.Context()), order.PaymentMethod(req.Method))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, step)
}

// StripeReturn handles the browser coming back from the gateway. The
// session id in the query string is never trusted; the coordinator
// re-queries the gateway before confirming anything.
func (h *Handler) StripeReturn(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing session_id"})
		return
	}

	outcome, orderCode, err := h.confirm.ConfirmFromReturn(r.Context(), sessionID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	switch outcome {
	case confirm.OutcomeConfirmed, confirm.OutcomeAlreadyPaid:
		writeJSON(w, http.StatusOK, map[string]string{
			"status":     "paid",
			"order_code": orderCode,
		})
	default:
		// The webhook may still be on its way; the page can poll the
		// order endpoint in the meantime.
		writeJSON(w, http.StatusOK, map[string]string{
			"status":     "validating",
			"order_code": orderCode,
		})
	}
}

func (h *Handler) StripeCancel(w http.ResponseWriter, r *http.Request) {
	// Nothing to undo: the reservation stands until it is paid or swept.
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// StripeWebhook is the push path. An invalid signature is the only
// rejection; everything the coordinator swallows is acknowledged with a
// 200 so the gateway stops retrying.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read body"})
		return
	}
	defer r.Body.Close()

	outcome, err := h.confirm.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if outcome == confirm.OutcomeRejected {
		logger.FromCtx(r.Context()).Warn("webhook rejected", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "webhook rejected"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// GetOrder is the public tracking endpoint, reachable by code alone.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	o, err := h.checkout.Lookup(r.Context(), code, middleware.CallerID(r.Context()))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewOf(o))
}

// Sweep triggers one cleanup pass on demand, in addition to the periodic
// background passes.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	sum, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, sum)
}
