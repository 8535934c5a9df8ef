package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/electronicjova/storefront-backend/pkg/email"
	"github.com/electronicjova/storefront-backend/pkg/enums"
)

var emailTemplates = template.Must(template.New("orders").Parse(`
{{define "approved"}}<h2>¡Gracias por tu compra, {{.Name}}!</h2>
<p>Recibimos el pago de tu pedido <strong>{{.OrderID}}</strong> por <strong>${{.Total}}</strong>.</p>
<p><a href="{{.OrderURL}}">Ver el estado de tu pedido</a></p>{{end}}
{{define "shipped"}}<h2>Tu pedido va en camino</h2>
<p>El pedido <strong>{{.OrderID}}</strong> fue enviado con {{.Carrier}}.</p>
<p>Número de guía: <strong>{{.Tracking}}</strong></p>
<p><a href="{{.OrderURL}}">Seguir mi pedido</a></p>{{end}}
{{define "cancelled"}}<h2>Tu pedido fue cancelado</h2>
<p>El pedido <strong>{{.OrderID}}</strong> fue cancelado.</p>
{{if .Refunded}}<p>El reembolso de <strong>${{.Total}}</strong> fue solicitado a tu método de pago.</p>{{end}}{{end}}
`))

var textTemplates = texttemplate.Must(texttemplate.New("orders").Parse(`
{{define "approved"}}¡Gracias por tu compra, {{.Name}}!

Recibimos el pago de tu pedido {{.OrderID}} por ${{.Total}}.
Ver el estado de tu pedido: {{.OrderURL}}{{end}}
{{define "shipped"}}Tu pedido va en camino

El pedido {{.OrderID}} fue enviado con {{.Carrier}}.
Número de guía: {{.Tracking}}
Seguir mi pedido: {{.OrderURL}}{{end}}
{{define "cancelled"}}Tu pedido fue cancelado

El pedido {{.OrderID}} fue cancelado.{{if .Refunded}}
El reembolso de ${{.Total}} fue solicitado a tu método de pago.{{end}}{{end}}
`))

var emailSubjects = map[enums.OrderStatus]string{
	enums.OrderStatusApproved:  "Confirmación de pedido",
	enums.OrderStatusShipped:   "Tu pedido fue enviado",
	enums.OrderStatusCancelled: "Pedido cancelado",
}

type emailData struct {
	Name     string
	OrderID  string
	Total    string
	Carrier  string
	Tracking string
	OrderURL string
	Refunded bool
}

// EmailHook notifies the customer about approvals, shipments and cancellations.
type EmailHook struct {
	sender  email.Sender
	baseURL string
}

func NewEmailHook(sender email.Sender, baseURL string) *EmailHook {
	return &EmailHook{sender: sender, baseURL: strings.TrimRight(baseURL, "/")}
}

func (h *EmailHook) Name() string { return "email" }

func (h *EmailHook) Run(ctx context.Context, change Change) error {
	subject, ok := emailSubjects[change.To]
	if !ok || h.sender == nil {
		return nil
	}
	if strings.TrimSpace(change.Order.Email) == "" {
		return nil
	}

	data := emailData{
		Name:     change.Order.Name,
		OrderID:  change.Order.ID.String(),
		Total:    change.Order.OrderTotal.StringFixed(2),
		OrderURL: fmt.Sprintf("%s/orders/%s", h.baseURL, change.Order.ID),
		Refunded: change.Refunded,
	}
	if change.Order.Carrier != nil {
		data.Carrier = *change.Order.Carrier
	}
	if change.Order.TrackingNumber != nil {
		data.Tracking = *change.Order.TrackingNumber
	}

	var html, text bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&html, change.To.String(), data); err != nil {
		return fmt.Errorf("render %s email: %w", change.To, err)
	}
	if err := textTemplates.ExecuteTemplate(&text, change.To.String(), data); err != nil {
		return fmt.Errorf("render %s text email: %w", change.To, err)
	}
	return h.sender.Send(ctx, email.Message{
		To:      change.Order.Email,
		Subject: subject,
		HTML:    html.String(),
		Text:    text.String(),
	})
}
