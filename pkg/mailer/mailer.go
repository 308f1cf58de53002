package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

var (
	errAPIKeyRequired   = errors.New("sendgrid api key is required")
	errFromRequired     = errors.New("sendgrid from address is required")
	errTemplateRequired = errors.New("sendgrid order template id is required")
	errRecipient        = errors.New("recipient email is required")
)

// OrderLine is one row in the confirmation email.
type OrderLine struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	Total     string `json:"total"`
}

// OrderConfirmation carries the dynamic template data of the confirmation email.
type OrderConfirmation struct {
	ToEmail        string      `json:"-"`
	ToName         string      `json:"customerName"`
	OrderNumber    int64       `json:"orderNumber"`
	Items          []OrderLine `json:"items"`
	Subtotal       string      `json:"subtotal"`
	TaxAmount      string      `json:"taxAmount"`
	ShippingCost   string      `json:"shippingCost"`
	Total          string      `json:"total"`
	DeliveryMethod string      `json:"deliveryMethod"`
	PaymentMethod  string      `json:"paymentMethod"`
}

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Mailer sends transactional email through SendGrid dynamic templates.
type Mailer struct {
	client     sender
	from       *mail.Email
	templateID string
}

func New(cfg config.SendgridConfig) (*Mailer, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	from := strings.TrimSpace(cfg.DefaultFrom)
	if from == "" {
		return nil, errFromRequired
	}
	templateID := strings.TrimSpace(cfg.OrderConfirmationTemplateID)
	if templateID == "" {
		return nil, errTemplateRequired
	}

	return &Mailer{
		client:     sendgrid.NewSendClient(key),
		from:       mail.NewEmail(cfg.FromName, from),
		templateID: templateID,
	}, nil
}

// SendOrderConfirmation delivers the order summary to the customer.
func (m *Mailer) SendOrderConfirmation(ctx context.Context, msg OrderConfirmation) error {
	message, err := m.build(msg)
	if err != nil {
		return err
	}

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, truncate(resp.Body, 256))
	}
	return nil
}

func (m *Mailer) build(msg OrderConfirmation) (*mail.SGMailV3, error) {
	to := strings.TrimSpace(msg.ToEmail)
	if to == "" {
		return nil, errRecipient
	}

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, to))
	p.SetDynamicTemplateData("customerName", msg.ToName)
	p.SetDynamicTemplateData("orderNumber", msg.OrderNumber)
	p.SetDynamicTemplateData("items", msg.Items)
	p.SetDynamicTemplateData("subtotal", msg.Subtotal)
	p.SetDynamicTemplateData("taxAmount", msg.TaxAmount)
	p.SetDynamicTemplateData("shippingCost", msg.ShippingCost)
	p.SetDynamicTemplateData("total", msg.Total)
	p.SetDynamicTemplateData("deliveryMethod", msg.DeliveryMethod)
	p.SetDynamicTemplateData("paymentMethod", msg.PaymentMethod)

	message := mail.NewV3Mail()
	message.SetFrom(m.from)
	message.SetTemplateID(m.templateID)
	message.AddPersonalizations(p)
	return message, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
