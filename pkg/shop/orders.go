package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/storefront/pkg/mail"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const auditTimeout = 5 * time.Second

// OrderService drives orders after checkout: payment confirmation, the admin
// status workflow, tracking and customer lookups.
type OrderService struct {
	orders   OrderRepository
	notifier Notifier
	audit    AuditLogger
	baseURL  string
	logger   *zap.Logger
}

func NewOrderService(orders OrderRepository, notifier Notifier, audit AuditLogger, baseURL string, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders:   orders,
		notifier: notifier,
		audit:    audit,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger.Named("orders"),
	}
}

func (s *OrderService) Get(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orders.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("Commande")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}
	return order, nil
}

func (s *OrderService) List(ctx context.Context, f repository.OrderFilter) ([]models.Order, int64, error) {
	orders, total, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// Track is the customer lookup: the e-mail must match the order's.
func (s *OrderService) Track(ctx context.Context, id, email string) (*models.Order, error) {
	id = strings.TrimSpace(id)
	email = strings.TrimSpace(email)
	if id == "" || email == "" {
		return nil, invalid("commande", "Numéro de commande et adresse e-mail requis")
	}
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(order.CustomerEmail, email) {
		return nil, notFound("Commande")
	}
	return order, nil
}

// Transition applies an admin status change. The stored status must allow
// the move and must not change between the check and the write.
func (s *OrderService) Transition(ctx context.Context, id string, to models.OrderStatus, actor string) (*models.Order, error) {
	if !to.IsValid() {
		return nil, invalid("status", "Statut inconnu : %s", to)
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if !from.CanTransitionTo(to) {
		return nil, &InvalidTransitionError{From: from, To: to}
	}

	restock := to == models.OrderStatusCancelled && from != models.OrderStatusPending
	if err := s.updateStatus(ctx, order, to, restock); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, conflict("La commande a été modifiée entre-temps, veuillez recharger la page")
		}
		return nil, fmt.Errorf("failed to update order %s: %w", id, err)
	}
	order.Status = to

	s.logger.Info("Order status changed",
		zap.String("order_id", id),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Bool("restocked", restock))

	s.recordAudit(id, actor, "status_changed", bson.M{"from": from, "to": to, "restocked": restock})
	if mail.NotifiesCustomer(to) {
		s.notify(order, mail.StatusUpdate)
	}
	return order, nil
}

// updateStatus writes the transition. A PENDING order cancelled by hand gives
// back the coupon use taken when it was placed.
func (s *OrderService) updateStatus(ctx context.Context, order *models.Order, to models.OrderStatus, restock bool) error {
	if order.Status == models.OrderStatusPending && to == models.OrderStatusCancelled && order.CouponCode != nil {
		return s.orders.Abandon(ctx, order.ID, order.CouponCode)
	}
	return s.orders.UpdateStatus(ctx, order.ID, order.Status, to, restock)
}

// MarkPaid records a confirmed payment. Deliveries for an order that already
// left PENDING are ignored.
func (s *OrderService) MarkPaid(ctx context.Context, id, sessionID string) error {
	order, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPending {
		s.logger.Info("Payment already recorded",
			zap.String("order_id", id),
			zap.String("status", order.Status.String()))
		return nil
	}
	if sessionID != "" && order.PaymentSessionID != nil && *order.PaymentSessionID != sessionID {
		return conflict("Session de paiement inattendue pour la commande %s", id)
	}

	shortfalls, err := s.orders.MarkPaid(ctx, id)
	if errors.Is(err, repository.ErrStatusChanged) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark order %s paid: %w", id, err)
	}
	order.Status = models.OrderStatusPaid

	for _, sf := range shortfalls {
		fields := []zap.Field{
			zap.String("order_id", id),
			zap.String("product_id", sf.ProductID),
			zap.Int("quantity", sf.Quantity),
		}
		if sf.VariantID != nil {
			fields = append(fields, zap.String("variant_id", *sf.VariantID))
		}
		s.logger.Warn("Paid order exceeds stock", fields...)
	}
	s.logger.Info("Order paid", zap.String("order_id", id))

	s.recordAudit(id, "payment", "paid", bson.M{"session_id": sessionID, "shortfalls": len(shortfalls)})
	s.notify(order, mail.OrderConfirmation)
	return nil
}

type TrackingInput struct {
	Number  string `json:"trackingNumber" validate:"required,max=100"`
	Carrier string `json:"trackingCarrier,omitempty" validate:"max=100"`
	URL     string `json:"trackingUrl,omitempty" validate:"omitempty,url,max=500"`
}

func (s *OrderService) UpdateTracking(ctx context.Context, id string, in *TrackingInput, actor string) error {
	in.Number = strings.TrimSpace(in.Number)
	in.Carrier = strings.TrimSpace(in.Carrier)
	in.URL = strings.TrimSpace(in.URL)
	if err := validateInput(in); err != nil {
		return err
	}

	err := s.orders.UpdateTracking(ctx, id, in.Number, in.Carrier, in.URL)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("Commande")
	}
	if err != nil {
		return fmt.Errorf("failed to update tracking of order %s: %w", id, err)
	}

	s.recordAudit(id, actor, "tracking_updated", bson.M{"number": in.Number, "carrier": in.Carrier})
	return nil
}

type messageBuilder func(order *models.Order, trackURL string) (mail.Message, error)

func (s *OrderService) notify(order *models.Order, build messageBuilder) {
	msg, err := build(order, TrackURL(s.baseURL, order.ID))
	if err != nil {
		s.logger.Error("Failed to build email", zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	s.notifier.Notify(msg)
}

// recordAudit writes the audit entry in the background.
func (s *OrderService) recordAudit(orderID, actor, action string, data bson.M) {
	if s.audit == nil {
		return
	}
	entry := &repository.AuditLog{
		Service:  "order",
		Action:   action,
		EntityID: orderID,
		Actor:    actor,
		Data:     data,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("Failed to write audit log",
				zap.String("order_id", orderID),
				zap.String("action", action),
				zap.Error(err))
		}
	}()
}
