package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"storefront/internal/models"
)

const confirmationText = `Hi {{.CustomerName}},

Thank you for your order {{.OrderID}}.
{{range .Items}}
- {{.Name}}{{if .Weight}} ({{.Weight}}){{end}} x{{.Quantity}}: ${{.LineTotal.StringFixed 2}}{{end}}

Subtotal: ${{.Subtotal.StringFixed 2}}{{if .DiscountCode}}
Discount ({{.DiscountCode}}): -${{.Discount.StringFixed 2}}{{end}}
Shipping: ${{.Shipping.StringFixed 2}}
Total: ${{.Total.StringFixed 2}}

Payment: {{.PaymentMethod}} ({{.PaymentStatus}})
Ship to: {{.ShippingAddress}}
`

const confirmationHTML = `<p>Hi {{.CustomerName}},</p>
<p>Thank you for your order <strong>{{.OrderID}}</strong>.</p>
<table>
{{range .Items}}<tr><td>{{.Name}}{{if .Weight}} ({{.Weight}}){{end}}</td><td>x{{.Quantity}}</td><td>${{.LineTotal.StringFixed 2}}</td></tr>
{{end}}</table>
<p>Subtotal: ${{.Subtotal.StringFixed 2}}<br>{{if .DiscountCode}}
Discount ({{.DiscountCode}}): -${{.Discount.StringFixed 2}}<br>{{end}}
Shipping: ${{.Shipping.StringFixed 2}}<br>
<strong>Total: ${{.Total.StringFixed 2}}</strong></p>
<p>Payment: {{.PaymentMethod}} ({{.PaymentStatus}})<br>Ship to: {{.ShippingAddress}}</p>
`

var (
	confirmationTextTmpl = texttemplate.Must(texttemplate.New("confirmation.txt").Parse(confirmationText))
	confirmationHTMLTmpl = htmltemplate.Must(htmltemplate.New("confirmation.html").Parse(confirmationHTML))
)

// OrderConfirmation renders the confirmation email for an order.
func OrderConfirmation(evt models.OrderCreatedEvent) (Message, error) {
	var text, html bytes.Buffer
	if err := confirmationTextTmpl.Execute(&text, evt); err != nil {
		return Message{}, fmt.Errorf("render confirmation text: %w", err)
	}
	if err := confirmationHTMLTmpl.Execute(&html, evt); err != nil {
		return Message{}, fmt.Errorf("render confirmation html: %w", err)
	}
	return Message{
		ToName:    evt.CustomerName,
		ToAddress: evt.Email,
		Subject:   fmt.Sprintf("Order confirmation %s", evt.OrderID),
		PlainText: text.String(),
		HTML:      html.String(),
	}, nil
}
