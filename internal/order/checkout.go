package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"calzados-be/internal/catalog"
	"calzados-be/internal/config"
	"calzados-be/internal/inventory"
	"calzados-be/internal/logger"
	"calzados-be/internal/payment"
	"calzados-be/internal/pricing"

	"go.uber.org/zap"
)

// Notifier sends order emails. Failures never roll back state transitions;
// callers log a warning and move on.
type Notifier interface {
	SendConfirmation(ctx context.Context, o *Order) error
	SendStatusUpdate(ctx context.Context, o *Order) error
}

// Confirmer applies the idempotent paid transition for payments that do not
// go through the gateway (cash on delivery). Implemented by the payment
// confirmation coordinator.
type Confirmer interface {
	ConfirmCashOnDelivery(ctx context.Context, orderID uint) error
}

// PaymentStep is the outcome of the payment-method step: either the order
// is settled immediately (cash on delivery) or the shopper is redirected
// to the gateway.
type PaymentStep struct {
	Paid        bool   `json:"paid"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// CheckoutService drives a shopper through the checkout steps. The session
// token is the order code handed out at Start; every step re-resolves the
// order and re-checks ownership and the time windows against the wall
// clock.
type CheckoutService interface {
	Start(ctx context.Context, lines []inventory.CartLine, callerID *uint) (*Order, error)
	SubmitContact(ctx context.Context, code string, callerID *uint, f ContactForm) error
	SubmitShipping(ctx context.Context, code string, callerID *uint, f AddressForm) error
	SubmitBilling(ctx context.Context, code string, callerID *uint, f AddressForm) error
	SelectPayment(ctx context.Context, code string, callerID *uint, method PaymentMethod) (*PaymentStep, error)
	Lookup(ctx context.Context, code string, callerID *uint) (*Order, error)
}

type checkoutService struct {
	repo      Repository
	catalog   catalog.Repository
	gateway   payment.Gateway
	confirmer Confirmer
	cfg       *config.Config
	now       func() time.Time
}

func NewCheckoutService(
	repo Repository,
	cat catalog.Repository,
	gateway payment.Gateway,
	confirmer Confirmer,
	cfg *config.Config,
) CheckoutService {
	return &checkoutService{
		repo:      repo,
		catalog:   cat,
		gateway:   gateway,
		confirmer: confirmer,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *checkoutService) Start(ctx context.Context, lines []inventory.CartLine, callerID *uint) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CheckoutStart"),
		zap.Int("line_count", len(lines)),
	)

	if len(lines) == 0 {
		return nil, inventory.ErrEmptyCart
	}

	// Snapshot prices from the live catalog exactly once, now. The order
	// items keep these values regardless of later catalog changes.
	var (
		priceLines []pricing.Line
		items      []OrderItem
	)
	for _, line := range lines {
		shoe, err := s.catalog.GetShoe(ctx, line.ShoeID)
		if err != nil {
			return nil, err
		}
		if !shoe.Available {
			return nil, fmt.Errorf("shoe %d: %w", line.ShoeID, catalog.ErrShoeNotFound)
		}

		unit := shoe.UnitPrice()
		qty := int64(line.Quantity)
		priceLines = append(priceLines, pricing.Line{
			UnitPrice:    unit,
			RegularPrice: shoe.Price,
			Quantity:     line.Quantity,
		})
		items = append(items, OrderItem{
			ShoeID:    shoe.ID,
			ShoeName:  shoe.Name,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: unit,
			Total:     unit * qty,
			Discount:  shoe.DiscountPerUnit() * qty,
		})
	}

	prices := pricing.Calculate(priceLines, s.cfg.TaxRateBps, s.cfg.DeliveryCost)

	o := &Order{
		UserID:       callerID,
		Subtotal:     prices.Subtotal,
		Tax:          prices.Tax,
		DeliveryCost: prices.DeliveryCost,
		Total:        prices.Total,
		Discount:     prices.Discount,
		Items:        items,
	}

	created, err := s.repo.CreateOrder(ctx, o, lines)
	if err != nil {
		return nil, err
	}

	log.Info("checkout started",
		zap.String("code", created.Code),
		zap.Int64("total", created.Total),
	)
	return created, nil
}

func (s *checkoutService) SubmitContact(ctx context.Context, code string, callerID *uint, f ContactForm) error {
	if err := f.Validate(); err != nil {
		return err
	}

	o, err := s.session(ctx, code, callerID)
	if err != nil {
		return err
	}

	return s.repo.UpdateContact(ctx, o.ID, f)
}

func (s *checkoutService) SubmitShipping(ctx context.Context, code string, callerID *uint, f AddressForm) error {
	if err := f.Validate(); err != nil {
		return err
	}

	o, err := s.session(ctx, code, callerID)
	if err != nil {
		return err
	}
	if o.Email == "" {
		return ErrInvalidState
	}

	return s.repo.UpdateShipping(ctx, o.ID, f)
}

func (s *checkoutService) SubmitBilling(ctx context.Context, code string, callerID *uint, f AddressForm) error {
	if err := f.Validate(); err != nil {
		return err
	}

	o, err := s.session(ctx, code, callerID)
	if err != nil {
		return err
	}
	if o.ShippingAddress == "" {
		return ErrInvalidState
	}

	return s.repo.UpdateBilling(ctx, o.ID, f)
}

func (s *checkoutService) SelectPayment(ctx context.Context, code string, callerID *uint, method PaymentMethod) (*PaymentStep, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "SelectPayment"),
		zap.String("code", code),
	)

	if method != PaymentCard && method != PaymentCashOnDelivery {
		return nil, ErrInvalidPayment
	}

	o, err := s.resolve(ctx, code, callerID)
	if err != nil {
		return nil, err
	}
	if o.BillingAddress == "" {
		return nil, ErrInvalidState
	}

	// The payment attempt gets the extended window; past it the attempt
	// fails even if the gateway would have accepted the charge.
	if o.Age(s.now()) > s.cfg.FormWindow+s.cfg.PaymentWindow {
		return nil, ErrPaymentWindowExpired
	}

	if err := s.repo.UpdatePaymentMethod(ctx, o.ID, method); err != nil {
		return nil, err
	}

	if method == PaymentCashOnDelivery {
		if err := s.confirmer.ConfirmCashOnDelivery(ctx, o.ID); err != nil {
			return nil, err
		}
		log.Info("order settled cash on delivery", zap.Uint("order_id", o.ID))
		return &PaymentStep{Paid: true}, nil
	}

	sess, err := s.gateway.CreateSession(ctx, payment.CreateSessionParams{
		Amount:        o.Total,
		Currency:      "eur",
		OrderID:       o.ID,
		OrderCode:     o.Code,
		CustomerEmail: o.Email,
		SuccessURL:    s.cfg.WebsiteURL + "/checkout/stripe/return?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.WebsiteURL + "/checkout/stripe/cancel",
	})
	if err != nil {
		log.Error("gateway session creation failed", zap.Error(err))
		return nil, err
	}

	log.Info("gateway session created",
		zap.Uint("order_id", o.ID),
		zap.String("gateway_session", sess.ID),
	)
	return &PaymentStep{RedirectURL: sess.URL}, nil
}

// Lookup is the tracking view: paid orders included, reachable by code
// alone for guests. Orders with an owner stay invisible to a different
// authenticated caller.
func (s *checkoutService) Lookup(ctx context.Context, code string, callerID *uint) (*Order, error) {
	o, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if o.UserID != nil && callerID != nil && *o.UserID != *callerID {
		return nil, ErrOwnershipMismatch
	}
	return o, nil
}

// session resolves the order and enforces the form window; steps past the
// window fail with ErrSessionExpired and the shopper restarts.
func (s *checkoutService) session(ctx context.Context, code string, callerID *uint) (*Order, error) {
	o, err := s.resolve(ctx, code, callerID)
	if err != nil {
		return nil, err
	}
	if o.Age(s.now()) > s.cfg.FormWindow {
		return nil, ErrSessionExpired
	}
	return o, nil
}

// resolve maps a vanished order (swept away, or never existed) to
// ErrSessionExpired: from the shopper's point of view the session is gone
// either way. Ownership violations surface as their own error.
func (s *checkoutService) resolve(ctx context.Context, code string, callerID *uint) (*Order, error) {
	o, err := s.repo.FindForSession(ctx, code, callerID)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}
