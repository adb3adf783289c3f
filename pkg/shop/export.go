package shop

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/shopspring/decimal"
)

const (
	exportDateLayout = "02/01/2006 15:04"
	isoDateLayout    = "2006-01-02"
	utf8BOM          = "\ufeff"
)

var exportLocation = loadExportLocation()

func loadExportLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		return time.UTC
	}
	return loc
}

var exportHeader = []string{
	"Commande", "Date", "Client", "E-mail", "Téléphone", "Mode de livraison", "Adresse",
	"Statut", "Articles", "Sous-total", "Livraison", "Réduction", "Total", "Code promo",
	"Transporteur", "Numéro de suivi",
}

// ParseExportFilter reads the export query. An empty status or ALL keeps
// every status; from and to are inclusive calendar days.
func ParseExportFilter(status, from, to string) (repository.OrderFilter, error) {
	var f repository.OrderFilter

	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" && status != "ALL" {
		st := models.OrderStatus(status)
		if !st.IsValid() {
			return f, invalid("status", "Statut inconnu : %s", status)
		}
		f.Status = &st
	}

	if from = strings.TrimSpace(from); from != "" {
		t, err := time.ParseInLocation(isoDateLayout, from, exportLocation)
		if err != nil {
			return f, &ValidationError{Field: "from", Message: "Date de début invalide", Err: err}
		}
		t = t.UTC()
		f.From = &t
	}
	if to = strings.TrimSpace(to); to != "" {
		t, err := time.ParseInLocation(isoDateLayout, to, exportLocation)
		if err != nil {
			return f, &ValidationError{Field: "to", Message: "Date de fin invalide", Err: err}
		}
		end := t.AddDate(0, 0, 1).UTC()
		f.To = &end
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return f, invalid("to", "La date de fin doit suivre la date de début")
	}
	return f, nil
}

// ExportCSV writes the matching orders as a semicolon separated sheet that
// spreadsheet software opens with French conventions.
func (s *OrderService) ExportCSV(ctx context.Context, w io.Writer, f repository.OrderFilter) (int, error) {
	f.Limit, f.Offset = 0, 0
	orders, _, err := s.List(ctx, f)
	if err != nil {
		return 0, err
	}

	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return 0, fmt.Errorf("failed to write export: %w", err)
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	cw.UseCRLF = true

	if err := cw.Write(exportHeader); err != nil {
		return 0, fmt.Errorf("failed to write export: %w", err)
	}
	for i := range orders {
		if err := cw.Write(exportRow(&orders[i])); err != nil {
			return 0, fmt.Errorf("failed to write export: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to write export: %w", err)
	}
	return len(orders), nil
}

func exportRow(o *models.Order) []string {
	items := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		name := it.ProductName
		if it.VariantName != "" {
			name += " (" + it.VariantName + ")"
		}
		items = append(items, fmt.Sprintf("%s x%d", name, it.Quantity))
	}

	return []string{
		o.ID,
		o.CreatedAt.In(exportLocation).Format(exportDateLayout),
		o.CustomerName,
		o.CustomerEmail,
		o.CustomerPhone,
		o.ShippingMethod.Label(),
		o.ShippingAddress,
		o.Status.Label(),
		strings.Join(items, " | "),
		frenchAmount(o.Subtotal),
		frenchAmount(o.ShippingCost),
		frenchAmount(o.DiscountAmount),
		frenchAmount(o.TotalAmount),
		deref(o.CouponCode),
		deref(o.TrackingCarrier),
		deref(o.TrackingNumber),
	}
}

func frenchAmount(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
