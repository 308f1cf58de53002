package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (f *fakeSender) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, email)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status, Body: strings.Repeat("x", 300)}, nil
}

func testMailer(s sender) *Mailer {
	return &Mailer{client: s, from: mail.NewEmail("Tienda", "ventas@example.com"), templateID: "d-123"}
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(config.SendgridConfig{DefaultFrom: "a@b.c", OrderConfirmationTemplateID: "d-1"})
	require.ErrorIs(t, err, errAPIKeyRequired)

	_, err = New(config.SendgridConfig{APIKey: "k", OrderConfirmationTemplateID: "d-1"})
	require.ErrorIs(t, err, errFromRequired)

	_, err = New(config.SendgridConfig{APIKey: "k", DefaultFrom: "a@b.c"})
	require.ErrorIs(t, err, errTemplateRequired)

	m, err := New(config.SendgridConfig{APIKey: "k", DefaultFrom: "a@b.c", FromName: "Tienda", OrderConfirmationTemplateID: "d-1"})
	require.NoError(t, err)
	require.Equal(t, "a@b.c", m.from.Address)
}

func TestSendOrderConfirmationBuildsTemplateMail(t *testing.T) {
	s := &fakeSender{status: 202}
	m := testMailer(s)

	err := m.SendOrderConfirmation(context.Background(), OrderConfirmation{
		ToEmail:     "ana@example.com",
		ToName:      "Ana Pérez",
		OrderNumber: 7,
		Items:       []OrderLine{{Name: "Taza", Quantity: 2, UnitPrice: "$25.00", Total: "$50.00"}},
		Total:       "$58.00",
	})
	require.NoError(t, err)
	require.Len(t, s.sent, 1)

	sent := s.sent[0]
	require.Equal(t, "d-123", sent.TemplateID)
	require.Len(t, sent.Personalizations, 1)
	p := sent.Personalizations[0]
	require.Equal(t, "ana@example.com", p.To[0].Address)
	require.Equal(t, int64(7), p.DynamicTemplateData["orderNumber"])
	require.Equal(t, "$58.00", p.DynamicTemplateData["total"])
}

func TestSendOrderConfirmationErrors(t *testing.T) {
	m := testMailer(&fakeSender{status: 202})
	require.ErrorIs(t, m.SendOrderConfirmation(context.Background(), OrderConfirmation{}), errRecipient)

	m = testMailer(&fakeSender{status: 400})
	err := m.SendOrderConfirmation(context.Background(), OrderConfirmation{ToEmail: "a@b.c"})
	require.ErrorContains(t, err, "status 400")
	require.Less(t, len(err.Error()), 300)

	m = testMailer(&fakeSender{err: errors.New("dial tcp")})
	require.ErrorContains(t, m.SendOrderConfirmation(context.Background(), OrderConfirmation{ToEmail: "a@b.c"}), "dial tcp")
}
