package confirm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"calzados-be/internal/logger"
	"calzados-be/internal/order"
	"calzados-be/internal/payment"

	"go.uber.org/zap"
)

// Outcome classifies a confirmation attempt for the caller. Everything
// except OutcomeRejected is a success from the gateway's point of view:
// retries for vanished or already-paid orders are expected traffic.
type Outcome string

const (
	// OutcomeConfirmed: this call performed the unpaid -> paid transition.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeAlreadyPaid: the other signal got there first; pure no-op.
	OutcomeAlreadyPaid Outcome = "already_paid"
	// OutcomeOrderGone: the order was swept or never existed; swallowed.
	OutcomeOrderGone Outcome = "order_gone"
	// OutcomeStillValidating: payment not (yet) settled; the UI can poll.
	OutcomeStillValidating Outcome = "still_validating"
	// OutcomeIgnored: an event type or status we do not act on.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeRejected: signature or integrity failure; nothing changed.
	OutcomeRejected Outcome = "rejected"
)

// ErrAmountMismatch: the gateway reports a different amount than the order
// total. Treated as a hard failure needing manual reconciliation, never as
// a successful payment.
var ErrAmountMismatch = errors.New("gateway amount does not match order total")

// Coordinator reconciles the two independent "order is paid" signals into
// a single idempotent transition. Both paths lock the order row first, so
// a push and a pull racing each other serialize on the row: exactly one
// performs the transition and sends the one confirmation email.
type Coordinator struct {
	db       *sql.DB
	orders   order.Repository
	gateway  payment.Gateway
	notifier order.Notifier
}

func NewCoordinator(db *sql.DB, orders order.Repository, gateway payment.Gateway, notifier order.Notifier) *Coordinator {
	return &Coordinator{
		db:       db,
		orders:   orders,
		gateway:  gateway,
		notifier: notifier,
	}
}

// HandleWebhook is the push path: verify the signature before touching
// anything, then apply the idempotent transition.
func (c *Coordinator) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (Outcome, error) {
	log := logger.FromCtx(ctx).With(zap.String("signal", "webhook"))

	if err := c.gateway.VerifySignature(payload, sigHeader); err != nil {
		log.Warn("webhook signature rejected", zap.Error(err))
		return OutcomeRejected, err
	}

	ev, err := payment.ParseEvent(payload)
	if err != nil {
		return OutcomeRejected, err
	}

	if ev.Type != payment.EventCheckoutCompleted || !ev.Session.Paid() {
		log.Debug("webhook event ignored", zap.String("type", ev.Type))
		return OutcomeIgnored, nil
	}
	if ev.Session.OrderID == 0 {
		log.Warn("webhook event without order metadata", zap.String("session_id", ev.Session.ID))
		return OutcomeIgnored, nil
	}

	return c.confirmPaid(ctx, ev.Session.OrderID, ev.Session.AmountTotal, true)
}

// ConfirmFromReturn is the pull path: the session reference from the query
// string is never trusted by itself, the gateway is re-queried for the
// session's actual status. Anything short of a settled payment, including
// an unreachable gateway, degrades to "still validating" because the
// webhook may yet arrive independently.
func (c *Coordinator) ConfirmFromReturn(ctx context.Context, sessionID string) (Outcome, string, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("signal", "return"),
		zap.String("session_id", sessionID),
	)

	sess, err := c.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		log.Warn("gateway session lookup failed, deferring to webhook", zap.Error(err))
		return OutcomeStillValidating, "", nil
	}

	if !sess.Paid() {
		log.Info("gateway session not settled",
			zap.String("status", sess.Status),
			zap.String("payment_status", sess.PaymentStatus),
		)
		return OutcomeStillValidating, sess.OrderCode, nil
	}

	if sess.OrderID == 0 {
		return OutcomeStillValidating, sess.OrderCode, nil
	}

	outcome, err := c.confirmPaid(ctx, sess.OrderID, sess.AmountTotal, true)
	if errors.Is(err, ErrAmountMismatch) {
		// Already logged for reconciliation; the shopper just keeps
		// seeing the validating page, never a false "paid".
		return OutcomeStillValidating, sess.OrderCode, nil
	}
	return outcome, sess.OrderCode, err
}

// ConfirmCashOnDelivery settles an order with no gateway involved. The
// checkout service calls this for the cash-on-delivery method.
func (c *Coordinator) ConfirmCashOnDelivery(ctx context.Context, orderID uint) error {
	outcome, err := c.confirmPaid(ctx, orderID, 0, false)
	if err != nil {
		return err
	}
	if outcome == OutcomeOrderGone {
		// The sweep won the race while the shopper sat on the last step.
		return order.ErrSessionExpired
	}
	return nil
}

// confirmPaid is the single idempotent transition. The already-paid check
// and the transition run under the same order row lock, so two
// near-simultaneous signals cannot both observe "unpaid": the second
// blocks on the lock and then sees the first one's commit.
func (c *Coordinator) confirmPaid(ctx context.Context, orderID uint, amount int64, checkAmount bool) (Outcome, error) {
	log := logger.FromCtx(ctx).With(zap.Uint("order_id", orderID))

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return OutcomeRejected, fmt.Errorf("begin confirm: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	o, err := c.orders.GetForUpdateTx(ctx, tx, orderID)
	if errors.Is(err, order.ErrOrderNotFound) {
		// Swept away or never existed; gateway retries for vanished
		// orders are expected and must not alarm anyone.
		log.Info("confirmation for vanished order, ignoring")
		return OutcomeOrderGone, nil
	}
	if err != nil {
		return OutcomeRejected, err
	}

	if o.Paid {
		log.Info("order already paid, skipping")
		return OutcomeAlreadyPaid, nil
	}

	if checkAmount && amount != o.Total {
		log.Error("gateway amount mismatch, refusing confirmation",
			zap.Int64("order_total", o.Total),
			zap.Int64("gateway_amount", amount),
		)
		return OutcomeRejected, ErrAmountMismatch
	}

	if err := c.orders.MarkPaidTx(ctx, tx, orderID); err != nil {
		return OutcomeRejected, err
	}

	if err := tx.Commit(); err != nil {
		return OutcomeRejected, fmt.Errorf("commit confirm: %w", err)
	}
	committed = true

	o.Paid = true
	if err := c.notifier.SendConfirmation(ctx, o); err != nil {
		// The payment stands; the email is best-effort.
		log.Warn("confirmation email failed", zap.Error(err))
	}

	log.Info("order confirmed paid", zap.String("code", o.Code))
	return OutcomeConfirmed, nil
}
