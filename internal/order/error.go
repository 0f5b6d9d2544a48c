package order

import "errors"

var (
	ErrOrderNotFound = errors.New("order not found")

	// ErrOwnershipMismatch: the order belongs to a different authenticated
	// user; the session reference is treated as invalid.
	ErrOwnershipMismatch = errors.New("order belongs to another user")

	// ErrCodeGenerationExhausted: five consecutive order-code collisions.
	// Fatal to order creation, never retried further.
	ErrCodeGenerationExhausted = errors.New("could not generate a unique order code")

	// ErrSessionExpired: the form window elapsed; the shopper must restart
	// checkout from the beginning.
	ErrSessionExpired = errors.New("checkout session expired")

	// ErrPaymentWindowExpired: the total form+payment window elapsed before
	// the payment attempt.
	ErrPaymentWindowExpired = errors.New("payment window expired")

	ErrInvalidForm    = errors.New("invalid form input")
	ErrInvalidState   = errors.New("checkout step out of order")
	ErrAlreadyPaid    = errors.New("order already paid")
	ErrInvalidPayment = errors.New("unknown payment method")
)
