package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/example/storefront/pkg/models"
	"github.com/shopspring/decimal"
)

var funcs = template.FuncMap{
	"euros": FormatEuros,
	"label": func(s models.OrderStatus) string { return s.Label() },
	"short": ShortID,
}

var (
	confirmationTmpl = template.Must(template.New("confirmation").Funcs(funcs).Parse(`
<p>Bonjour {{.Order.CustomerName}},</p>
<p>Merci pour votre commande <strong>n° {{short .Order.ID}}</strong>. Le paiement a bien été reçu.</p>
<table>
{{range .Order.Items}}<tr><td>{{.ProductName}}{{if .VariantName}} ({{.VariantName}}){{end}}</td><td>× {{.Quantity}}</td><td>{{euros .LineTotal}}</td></tr>
{{end}}</table>
<p>Livraison : {{euros .Order.ShippingCost}}{{if .Order.DiscountAmount.IsPositive}}<br>Réduction : −{{euros .Order.DiscountAmount}}{{end}}<br>
<strong>Total : {{euros .Order.TotalAmount}}</strong></p>
<p><a href="{{.TrackURL}}">Suivre ma commande</a></p>`))

	statusTmpl = template.Must(template.New("status").Funcs(funcs).Parse(`
<p>Bonjour {{.Order.CustomerName}},</p>
<p>{{.Intro}}</p>
{{if and .Order.TrackingNumber (eq .Order.Status "SHIPPED")}}<p>Numéro de suivi : {{.Order.TrackingNumber}}{{if .Order.TrackingCarrier}} ({{.Order.TrackingCarrier}}){{end}}
{{if .Order.TrackingURL}}<br><a href="{{.Order.TrackingURL}}">Suivre le colis</a>{{end}}</p>{{end}}
<p><a href="{{.TrackURL}}">Voir ma commande</a></p>`))
)

var statusIntro = map[models.OrderStatus]string{
	models.OrderStatusProcessing: "Votre commande est en cours de préparation.",
	models.OrderStatusShipped:    "Bonne nouvelle : votre commande a été expédiée.",
	models.OrderStatusDelivered:  "Votre commande a été livrée. Merci pour votre confiance !",
	models.OrderStatusCancelled:  "Votre commande a été annulée. Pour toute question, répondez simplement à cet e-mail.",
}

// NotifiesCustomer reports whether moving an order to s sends an e-mail.
func NotifiesCustomer(s models.OrderStatus) bool {
	_, ok := statusIntro[s]
	return ok
}

func OrderConfirmation(order *models.Order, trackURL string) (Message, error) {
	body, err := render(confirmationTmpl, map[string]interface{}{"Order": order, "TrackURL": trackURL})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      order.CustomerEmail,
		Subject: fmt.Sprintf("Confirmation de votre commande n° %s", ShortID(order.ID)),
		HTML:    body,
	}, nil
}

func StatusUpdate(order *models.Order, trackURL string) (Message, error) {
	intro, ok := statusIntro[order.Status]
	if !ok {
		return Message{}, fmt.Errorf("no notification for status %s", order.Status)
	}
	body, err := render(statusTmpl, map[string]interface{}{"Order": order, "Intro": intro, "TrackURL": trackURL})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      order.CustomerEmail,
		Subject: fmt.Sprintf("Commande n° %s : %s", ShortID(order.ID), strings.ToLower(order.Status.Label())),
		HTML:    body,
	}, nil
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// FormatEuros renders 1234.5 as "1234,50 €".
func FormatEuros(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1) + " €"
}

// ShortID is the order reference shown to customers.
func ShortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return strings.ToUpper(id)
}
