package email

import (
	"context"
	"errors"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electronicjova/storefront-backend/pkg/config"
	"github.com/electronicjova/storefront-backend/pkg/logger"
)

type fakeTransport struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (f *fakeTransport) SendWithContext(_ context.Context, msg *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status, Body: "body"}, nil
}

func TestSendGridSend(t *testing.T) {
	ft := &fakeTransport{status: 202}
	s := &SendGrid{client: ft, from: mail.NewEmail("Jova", "pedidos@example.com")}

	require.NoError(t, s.Send(context.Background(), Message{
		To:      "ana@example.com",
		Subject: "Pedido confirmado",
		HTML:    "<p>Gracias &amp; saludos</p>",
		Text:    "Gracias & saludos",
	}))
	require.Len(t, ft.sent, 1)
	assert.Equal(t, "Pedido confirmado", ft.sent[0].Subject)
	require.Len(t, ft.sent[0].Personalizations, 1)
	assert.Equal(t, "ana@example.com", ft.sent[0].Personalizations[0].To[0].Address)

	bodies := map[string]string{}
	for _, c := range ft.sent[0].Content {
		bodies[c.Type] = c.Value
	}
	assert.Equal(t, "Gracias & saludos", bodies["text/plain"])
	assert.Equal(t, "<p>Gracias &amp; saludos</p>", bodies["text/html"])
}

func TestSendGridSendFailures(t *testing.T) {
	s := &SendGrid{client: &fakeTransport{status: 401}, from: mail.NewEmail("", "a@b.c")}
	msg := Message{To: "x@y.z", Subject: "s", Text: "b"}
	require.Error(t, s.Send(context.Background(), msg))

	ft := &fakeTransport{err: errors.New("dial")}
	s = &SendGrid{client: ft, from: mail.NewEmail("", "a@b.c")}
	require.Error(t, s.Send(context.Background(), msg))

	require.Error(t, s.Send(context.Background(), Message{To: " ", Subject: "s", Text: "b"}))
	require.Error(t, s.Send(context.Background(), Message{To: "x@y.z", Subject: "s"}))
	assert.Len(t, ft.sent, 1)
}

func TestNewWithoutKeyLogsOnly(t *testing.T) {
	sender := New(config.SendgridConfig{}, logger.Nop())
	_, ok := sender.(*LogSender)
	require.True(t, ok)
	assert.NoError(t, sender.Send(context.Background(), Message{To: "a@b.c", Subject: "s", HTML: "<b>x</b>"}))
}
