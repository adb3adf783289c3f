package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// AllowedTransitions is the admin workflow. PENDING -> PAID is absent on
// purpose: only a confirmed payment moves an order there.
var AllowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) IsValid() bool {
	_, ok := AllowedTransitions[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether the admin workflow allows s -> to.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, allowed := range AllowedTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Label is the French wording shown to customers and in exports.
func (s OrderStatus) Label() string {
	switch s {
	case OrderStatusPending:
		return "En attente"
	case OrderStatusPaid:
		return "Payée"
	case OrderStatusProcessing:
		return "En préparation"
	case OrderStatusShipped:
		return "Expédiée"
	case OrderStatusDelivered:
		return "Livrée"
	case OrderStatusCancelled:
		return "Annulée"
	default:
		return string(s)
	}
}

type ShippingMethod string

const (
	ShippingDelivery ShippingMethod = "DELIVERY"
	ShippingPickup   ShippingMethod = "PICKUP"
)

func (m ShippingMethod) IsValid() bool {
	return m == ShippingDelivery || m == ShippingPickup
}

func (m ShippingMethod) Label() string {
	if m == ShippingPickup {
		return "Retrait en boutique"
	}
	return "Livraison"
}

type Order struct {
	ID               string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID           *string         `gorm:"type:varchar(64);index" json:"user_id,omitempty"`
	CustomerName     string          `gorm:"type:varchar(200);not null" json:"customer_name"`
	CustomerEmail    string          `gorm:"type:varchar(200);not null;index" json:"customer_email"`
	CustomerPhone    string          `gorm:"type:varchar(40)" json:"customer_phone,omitempty"`
	ShippingMethod   ShippingMethod  `gorm:"type:varchar(20);not null" json:"shipping_method"`
	ShippingAddress  string          `gorm:"type:text" json:"shipping_address,omitempty"`
	Status           OrderStatus     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	ShippingCost     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"shipping_cost"`
	DiscountAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"discount_amount"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	CouponCode       *string         `gorm:"type:varchar(50)" json:"coupon_code,omitempty"`
	PaymentSessionID *string         `gorm:"type:varchar(255);index" json:"payment_session_id,omitempty"`
	TrackingNumber   *string         `gorm:"type:varchar(100)" json:"tracking_number,omitempty"`
	TrackingCarrier  *string         `gorm:"type:varchar(100)" json:"tracking_carrier,omitempty"`
	TrackingURL      *string         `gorm:"type:varchar(500)" json:"tracking_url,omitempty"`
	Items            []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt        time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem keeps a frozen copy of name and unit price at purchase time.
// StockTaken is set when the line was taken out of stock at payment.
type OrderItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderID     string          `gorm:"type:varchar(36);not null;index" json:"order_id"`
	ProductID   string          `gorm:"type:varchar(36);not null;index" json:"product_id"`
	VariantID   *string         `gorm:"type:varchar(36)" json:"variant_id,omitempty"`
	ProductName string          `gorm:"type:varchar(200);not null" json:"product_name"`
	VariantName string          `gorm:"type:varchar(200)" json:"variant_name,omitempty"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	StockTaken  bool            `gorm:"not null;default:false" json:"-"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
