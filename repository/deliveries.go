package repository

import (
	"context"

	"food-order/models"

	"gorm.io/gorm"
)

type DeliveryRepository interface {
	// Create fails with ErrDuplicate when the order already has a delivery row.
	Create(ctx context.Context, d *models.Delivery) error
	Get(ctx context.Context, id uint) (*models.Delivery, error)
	GetByOrder(ctx context.Context, orderID uint) (*models.Delivery, error)
	GetDetail(ctx context.Context, id uint) (*models.Delivery, error)
	List(ctx context.Context, driverID uint) ([]models.Delivery, error)
	UpdateStatusGuard(ctx context.Context, id uint, from, to models.DeliveryStatus, extra map[string]interface{}) (bool, error)
}

type deliveryRepo struct {
	db *gorm.DB
}

func (r *deliveryRepo) Create(ctx context.Context, d *models.Delivery) error {
	return translate(r.db.WithContext(ctx).Omit("Order", "Driver").Create(d).Error)
}

func (r *deliveryRepo) Get(ctx context.Context, id uint) (*models.Delivery, error) {
	var d models.Delivery
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (r *deliveryRepo) GetByOrder(ctx context.Context, orderID uint) (*models.Delivery, error) {
	var d models.Delivery
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&d).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (r *deliveryRepo) GetDetail(ctx context.Context, id uint) (*models.Delivery, error) {
	var d models.Delivery
	err := r.db.WithContext(ctx).
		Preload("Order.Items").
		Preload("Order.Restaurant").
		Preload("Order.Customer").
		Preload("Driver").
		First(&d, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

// List returns deliveries newest first; driverID 0 lists every driver's
func (r *deliveryRepo) List(ctx context.Context, driverID uint) ([]models.Delivery, error) {
	var out []models.Delivery
	q := r.db.WithContext(ctx).
		Preload("Order.Restaurant").
		Preload("Order.Customer").
		Preload("Driver").
		Order("assigned_at desc, id desc")
	if driverID != 0 {
		q = q.Where("driver_id = ?", driverID)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (r *deliveryRepo) UpdateStatusGuard(ctx context.Context, id uint, from, to models.DeliveryStatus, extra map[string]interface{}) (bool, error) {
	fields := map[string]interface{}{"status": to}
	for k, v := range extra {
		fields[k] = v
	}
	return guarded(r.db.WithContext(ctx).Model(&models.Delivery{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields))
}
