// Package payment opens hosted checkout sessions and reads their webhooks.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type LineItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

type SessionRequest struct {
	OrderID       string
	CustomerEmail string
	Lines         []LineItem
	Shipping      decimal.Decimal
	Discount      decimal.Decimal
	SuccessURL    string
	CancelURL     string
}

type Session struct {
	ID  string
	URL string
}

// Event is the subset of a provider webhook the shop acts on.
type Event struct {
	Type      string
	SessionID string
	OrderID   string
	Paid      bool
}

const EventCheckoutCompleted = "checkout.session.completed"

type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// Cents converts an amount to the smallest currency unit.
func Cents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
