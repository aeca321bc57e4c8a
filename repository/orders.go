package repository

import (
	"context"

	"food-order/models"

	"gorm.io/gorm"
)

// OrderFilter narrows List; zero fields are ignored
type OrderFilter struct {
	CustomerID   uint
	RestaurantID uint
	DriverID     uint
	Status       models.OrderStatus
}

type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, id uint) (*models.Order, error)
	GetDetail(ctx context.Context, id uint) (*models.Order, error)
	List(ctx context.Context, f OrderFilter) ([]models.Order, error)
	// UpdateStatusGuard moves the order from → to only if it is still in from.
	UpdateStatusGuard(ctx context.Context, id uint, from, to models.OrderStatus, extra map[string]interface{}) (bool, error)
	AppendHistory(ctx context.Context, h *models.OrderStatusHistory) error
	History(ctx context.Context, orderID uint) ([]models.OrderStatusHistory, error)
}

type orderRepo struct {
	db *gorm.DB
}

// Create inserts the order together with its line items
func (r *orderRepo) Create(ctx context.Context, o *models.Order) error {
	return translate(r.db.WithContext(ctx).Omit("Restaurant", "Customer").Create(o).Error)
}

func (r *orderRepo) Get(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).Preload("Items").Preload("Restaurant").First(&o, id).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *orderRepo) GetDetail(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).
		Preload("Items.MenuItem", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Restaurant").
		Preload("Customer").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Delivery.Driver").
		Preload("Payment.Refunds").
		First(&o, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *orderRepo) List(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	var orders []models.Order
	q := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Restaurant").
		Preload("Delivery").
		Preload("Payment").
		Order("orders.created_at desc, orders.id desc")
	if f.CustomerID != 0 {
		q = q.Where("orders.customer_id = ?", f.CustomerID)
	}
	if f.RestaurantID != 0 {
		q = q.Where("orders.restaurant_id = ?", f.RestaurantID)
	}
	if f.DriverID != 0 {
		q = q.Joins("JOIN deliveries ON deliveries.order_id = orders.id").
			Where("deliveries.driver_id = ?", f.DriverID)
	}
	if f.Status != "" {
		q = q.Where("orders.status = ?", f.Status)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, translate(err)
	}
	return orders, nil
}

func (r *orderRepo) UpdateStatusGuard(ctx context.Context, id uint, from, to models.OrderStatus, extra map[string]interface{}) (bool, error) {
	fields := map[string]interface{}{"status": to}
	for k, v := range extra {
		fields[k] = v
	}
	return guarded(r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields))
}

func (r *orderRepo) AppendHistory(ctx context.Context, h *models.OrderStatusHistory) error {
	return translate(r.db.WithContext(ctx).Create(h).Error)
}

func (r *orderRepo) History(ctx context.Context, orderID uint) ([]models.OrderStatusHistory, error) {
	var rows []models.OrderStatusHistory
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}
