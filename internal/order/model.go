package order

import (
	"strings"
	"time"
)

type PaymentMethod string

const (
	// PaymentCard goes through the gateway redirect flow.
	PaymentCard PaymentMethod = "card"
	// PaymentCashOnDelivery is settled at the door; no gateway involved.
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// CheckoutState is derived from which fields the shopper has filled so far.
// It is never stored; the Order row is the single source of truth.
type CheckoutState string

const (
	StateCreated         CheckoutState = "created"
	StateContactFilled   CheckoutState = "contact_filled"
	StateShippingFilled  CheckoutState = "shipping_filled"
	StateBillingFilled   CheckoutState = "billing_filled"
	StateAwaitingPayment CheckoutState = "awaiting_payment"
	StatePaid            CheckoutState = "paid"
)

// Order is the aggregate root for a checkout. While unpaid and younger than
// the reservation window it holds exactly one outstanding stock
// reservation; once paid the reservation is permanent. Monetary fields are
// minor currency units snapshotted at creation.
type Order struct {
	ID        uint
	Code      string
	UserID    *uint // nil for guest checkouts
	CreatedAt time.Time
	UpdatedAt time.Time

	Paid          bool
	PaymentMethod PaymentMethod

	Subtotal     int64
	Tax          int64
	DeliveryCost int64
	Total        int64
	Discount     int64

	FirstName string
	LastName  string
	Email     string
	Phone     string

	ShippingAddress    string
	ShippingCity       string
	ShippingPostalCode string

	BillingAddress    string
	BillingCity       string
	BillingPostalCode string

	Items []OrderItem
}

// OrderItem snapshots price and discount at order creation. It is never
// recomputed from the live catalog, so historical orders keep their value
// even when prices change.
type OrderItem struct {
	ID        uint
	OrderID   uint
	ShoeID    uint
	ShoeName  string
	Size      int
	Quantity  int
	UnitPrice int64
	Total     int64
	Discount  int64
}

// State derives the checkout position from the filled fields.
func (o *Order) State() CheckoutState {
	switch {
	case o.Paid:
		return StatePaid
	case o.PaymentMethod != "":
		return StateAwaitingPayment
	case o.BillingAddress != "":
		return StateBillingFilled
	case o.ShippingAddress != "":
		return StateShippingFilled
	case o.Email != "":
		return StateContactFilled
	default:
		return StateCreated
	}
}

// Age is the wall-clock time since the order was created; all expiration
// decisions are predicates over this value, not timers.
func (o *Order) Age(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}

// ContactForm is step 1 of the checkout.
type ContactForm struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (f *ContactForm) Validate() error {
	if strings.TrimSpace(f.FirstName) == "" || strings.TrimSpace(f.LastName) == "" {
		return ErrInvalidForm
	}
	email := strings.TrimSpace(f.Email)
	if email == "" || !strings.Contains(email, "@") {
		return ErrInvalidForm
	}
	if strings.TrimSpace(f.Phone) == "" {
		return ErrInvalidForm
	}
	return nil
}

// AddressForm serves both the shipping and the billing step.
type AddressForm struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

func (f *AddressForm) Validate() error {
	if strings.TrimSpace(f.Address) == "" ||
		strings.TrimSpace(f.City) == "" ||
		strings.TrimSpace(f.PostalCode) == "" {
		return ErrInvalidForm
	}
	return nil
}
