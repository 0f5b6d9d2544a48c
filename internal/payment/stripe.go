package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"calzados-be/internal/logger"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const stripeBaseURL = "https://api.stripe.com"

type stripeGateway struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
	breaker       *gobreaker.CircuitBreaker[[]byte]
	now           func() time.Time
}

// NewStripeGateway builds the production gateway. Outbound calls run
// through a circuit breaker so a dead gateway fails fast instead of tying
// up checkout workers for the full client timeout each time.
func NewStripeGateway(secretKey, webhookSecret string) Gateway {
	if secretKey == "" {
		logger.L().Warn("Stripe secret key is empty")
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "stripe",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &stripeGateway{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       stripeBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		breaker: breaker,
		now:     time.Now,
	}
}

// stripeSession mirrors the fields of a Stripe checkout session object we
// consume.
type stripeSession struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	URL           string            `json:"url"`
	Metadata      map[string]string `json:"metadata"`
}

func (g *stripeGateway) CreateSession(ctx context.Context, p CreateSessionParams) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("order_code", p.OrderCode),
		zap.Int64("amount", p.Amount),
	)

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	if p.CustomerEmail != "" {
		form.Set("customer_email", p.CustomerEmail)
	}
	form.Set("line_items[0][price_data][currency]", p.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(p.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", "Pedido "+p.OrderCode)
	form.Set("line_items[0][quantity]", "1")
	form.Set("metadata[order_id]", strconv.FormatUint(uint64(p.OrderID), 10))
	form.Set("metadata[order_code]", p.OrderCode)

	log.Info("creating gateway checkout session")

	body, err := g.do(ctx, http.MethodPost, "/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	var raw stripeSession
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode gateway session: %w", err)
	}

	sess := raw.toSession()
	log.Info("gateway checkout session created",
		zap.String("session_id", sess.ID),
		zap.String("status", sess.Status),
	)
	return sess, nil
}

func (g *stripeGateway) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	body, err := g.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, err
	}

	var raw stripeSession
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode gateway session: %w", err)
	}
	return raw.toSession(), nil
}

func (g *stripeGateway) VerifySignature(payload []byte, sigHeader string) error {
	return verifyStripeSignature(payload, sigHeader, g.webhookSecret, g.now())
}

func (g *stripeGateway) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	out, err := g.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(g.secretKey, "")
		if method == http.MethodPost {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read gateway response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			logger.L().Error("gateway returned non-success status",
				zap.Int("status", resp.StatusCode),
				zap.ByteString("response", raw),
			)
			return nil, fmt.Errorf("gateway error status %d", resp.StatusCode)
		}

		return raw, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: circuit open", ErrGatewayUnreachable)
	}
	return out, err
}

func (s *stripeSession) toSession() *Session {
	out := &Session{
		ID:            s.ID,
		Status:        s.Status,
		PaymentStatus: s.PaymentStatus,
		AmountTotal:   s.AmountTotal,
		Currency:      s.Currency,
		URL:           s.URL,
		OrderCode:     s.Metadata["order_code"],
	}
	if id, err := strconv.ParseUint(s.Metadata["order_id"], 10, 64); err == nil {
		out.OrderID = uint(id)
	}
	return out
}
