package payment

import "context"

// Gateway is the payment-provider capability. The production implementation
// talks to Stripe; tests substitute a double. Business logic never branches
// on which one it holds.
type Gateway interface {
	// CreateSession opens a hosted checkout session and returns the
	// redirect URL for the shopper's browser.
	CreateSession(ctx context.Context, p CreateSessionParams) (*Session, error)

	// RetrieveSession re-queries the gateway for a session's current
	// status. The browser-return path never trusts the query string alone.
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)

	// VerifySignature checks a webhook payload against its signature
	// header before any of the payload is acted on.
	VerifySignature(payload []byte, sigHeader string) error
}
