package payment

import "errors"

var (
	// ErrGatewaySignatureInvalid is a security-relevant rejection: the
	// webhook payload must be dropped with no state change.
	ErrGatewaySignatureInvalid = errors.New("gateway signature invalid")

	// ErrGatewayUnreachable covers network failures and an open circuit
	// breaker. The browser-pull path degrades to "still validating" on it.
	ErrGatewayUnreachable = errors.New("payment gateway unreachable")
)

// Gateway session statuses as the gateway reports them.
const (
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"
	SessionStatusOpen     = "open"

	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

// CreateSessionParams describes one outbound "create payment session"
// call: the amount in minor currency units plus the order identity passed
// through as opaque metadata.
type CreateSessionParams struct {
	Amount        int64
	Currency      string
	OrderID       uint
	OrderCode     string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// Session is the gateway's view of a checkout session. OrderID and
// OrderCode are echoed back from the metadata we attached at creation.
type Session struct {
	ID            string
	Status        string
	PaymentStatus string
	AmountTotal   int64
	Currency      string
	URL           string
	OrderID       uint
	OrderCode     string
}

// Paid reports whether the gateway considers this session settled.
func (s *Session) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}
