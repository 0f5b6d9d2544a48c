package notification

import (
	"context"
	"fmt"
	"strings"

	"calzados-be/internal/config"
	"calzados-be/internal/logger"
	"calzados-be/internal/order"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Mailer sends order emails through SendGrid. It implements order.Notifier;
// callers already treat failures as warnings, so Mailer only reports them.
type Mailer struct {
	apiKey     string
	fromEmail  string
	websiteURL string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		apiKey:     cfg.SendGridAPIKey,
		fromEmail:  cfg.FromEmail,
		websiteURL: cfg.WebsiteURL,
	}
}

func (m *Mailer) SendConfirmation(ctx context.Context, o *order.Order) error {
	subject := fmt.Sprintf("Confirmación de Pedido #%s", o.Code)
	return m.send(ctx, o.Email, subject, confirmationBody(o, m.websiteURL))
}

func (m *Mailer) SendStatusUpdate(ctx context.Context, o *order.Order) error {
	subject := fmt.Sprintf("Actualización de Pedido #%s", o.Code)
	body := fmt.Sprintf(
		"Hola %s,\n\nTu pedido #%s ha sido actualizado.\n\nPuedes consultarlo aquí: %s/orders/%s/\n",
		o.FirstName, o.Code, m.websiteURL, o.Code,
	)
	return m.send(ctx, o.Email, subject, body)
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "notification"),
		zap.String("subject", subject),
	)

	if m.apiKey == "" {
		return fmt.Errorf("sendgrid api key is empty")
	}
	if to == "" {
		return fmt.Errorf("recipient address is empty")
	}

	message := mail.NewSingleEmail(
		mail.NewEmail("Calzados Mariló", m.fromEmail),
		subject,
		mail.NewEmail("", to),
		body,
		fmt.Sprintf("<pre>%s</pre>", body),
	)

	client := sendgrid.NewSendClient(m.apiKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d body=%s", response.StatusCode, response.Body)
	}

	log.Info("mail sent", zap.Int("status", response.StatusCode))
	return nil
}

func confirmationBody(o *order.Order, websiteURL string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Hola %s,\n\n", o.FirstName)
	fmt.Fprintf(&b, "Hemos recibido tu pedido #%s. ¡Gracias por tu compra!\n\n", o.Code)

	for _, it := range o.Items {
		fmt.Fprintf(&b, "  %s (talla %d) x%d — %s\n", it.ShoeName, it.Size, it.Quantity, euros(it.Total))
	}

	fmt.Fprintf(&b, "\nSubtotal: %s\n", euros(o.Subtotal))
	if o.Discount > 0 {
		fmt.Fprintf(&b, "Descuento aplicado: %s\n", euros(o.Discount))
	}
	fmt.Fprintf(&b, "Envío: %s\n", euros(o.DeliveryCost))
	fmt.Fprintf(&b, "IVA: %s\n", euros(o.Tax))
	fmt.Fprintf(&b, "Total: %s\n\n", euros(o.Total))

	fmt.Fprintf(&b, "Puedes seguir tu pedido aquí: %s/orders/%s/\n", websiteURL, o.Code)

	return b.String()
}

// euros renders minor units as a decimal amount.
func euros(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d,%02d €", sign, cents/100, cents%100)
}
