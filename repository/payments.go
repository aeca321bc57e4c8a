package repository

import (
	"context"
	"time"

	"food-order/models"

	"gorm.io/gorm"
)

// PaymentFilter narrows List; zero fields are ignored
type PaymentFilter struct {
	CustomerID uint
	OwnerID    uint // restaurant owner
}

type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	Get(ctx context.Context, id uint) (*models.Payment, error)
	GetByOrder(ctx context.Context, orderID uint) (*models.Payment, error)
	GetByIntent(ctx context.Context, intentID string) (*models.Payment, error)
	List(ctx context.Context, f PaymentFilter) ([]models.Payment, error)
	UpdateStatusGuard(ctx context.Context, id uint, from, to models.PaymentStatus, extra map[string]interface{}) (bool, error)
	// MarkRefunded flips refunded once; false means it was already set.
	MarkRefunded(ctx context.Context, id uint, at time.Time) (bool, error)
	CreateRefund(ctx context.Context, rf *models.Refund) error
	// AttachProviderRefund names a refund row recorded without a provider id; false when it already has one.
	AttachProviderRefund(ctx context.Context, refundID uint, providerRefundID, reason string) (bool, error)
}

type paymentRepo struct {
	db *gorm.DB
}

func (r *paymentRepo) Create(ctx context.Context, p *models.Payment) error {
	return translate(r.db.WithContext(ctx).Omit("Order").Create(p).Error)
}

// Get loads the payment with its refunds
func (r *paymentRepo) Get(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.WithContext(ctx).Preload("Refunds").First(&p, id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *paymentRepo) GetByOrder(ctx context.Context, orderID uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.WithContext(ctx).Preload("Refunds").Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *paymentRepo) GetByIntent(ctx context.Context, intentID string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.WithContext(ctx).Preload("Refunds").Where("provider_intent_id = ?", intentID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *paymentRepo) List(ctx context.Context, f PaymentFilter) ([]models.Payment, error) {
	var out []models.Payment
	q := r.db.WithContext(ctx).
		Preload("Refunds").
		Preload("Order.Items").
		Preload("Order.Restaurant").
		Joins("JOIN orders ON orders.id = payments.order_id").
		Order("payments.created_at desc, payments.id desc")
	if f.CustomerID != 0 {
		q = q.Where("orders.customer_id = ?", f.CustomerID)
	}
	if f.OwnerID != 0 {
		q = q.Joins("JOIN restaurants ON restaurants.id = orders.restaurant_id").
			Where("restaurants.owner_id = ?", f.OwnerID)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (r *paymentRepo) UpdateStatusGuard(ctx context.Context, id uint, from, to models.PaymentStatus, extra map[string]interface{}) (bool, error) {
	fields := map[string]interface{}{"status": to}
	for k, v := range extra {
		fields[k] = v
	}
	return guarded(r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields))
}

func (r *paymentRepo) MarkRefunded(ctx context.Context, id uint, at time.Time) (bool, error) {
	return guarded(r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND refunded = ?", id, false).
		Updates(map[string]interface{}{"refunded": true, "refunded_at": at}))
}

func (r *paymentRepo) CreateRefund(ctx context.Context, rf *models.Refund) error {
	return translate(r.db.WithContext(ctx).Create(rf).Error)
}

func (r *paymentRepo) AttachProviderRefund(ctx context.Context, refundID uint, providerRefundID, reason string) (bool, error) {
	fields := map[string]interface{}{"provider_refund_id": providerRefundID}
	if reason != "" {
		fields["reason"] = reason
	}
	return guarded(r.db.WithContext(ctx).Model(&models.Refund{}).
		Where("id = ? AND provider_refund_id IS NULL", refundID).
		Updates(fields))
}
