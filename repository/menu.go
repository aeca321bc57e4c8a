package repository

import (
	"context"

	"food-order/models"

	"gorm.io/gorm"
)

type MenuFilter struct {
	Category string
	VegOnly  bool
}

type MenuItemRepository interface {
	Get(ctx context.Context, id uint) (*models.MenuItem, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.MenuItem, error)
	ListByRestaurant(ctx context.Context, restaurantID uint, f MenuFilter) ([]models.MenuItem, error)
	Create(ctx context.Context, item *models.MenuItem) error
	Update(ctx context.Context, item *models.MenuItem, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
	PurgeByRestaurant(ctx context.Context, restaurantID uint) error
}

type menuItemRepo struct {
	db *gorm.DB
}

func (r *menuItemRepo) Get(ctx context.Context, id uint) (*models.MenuItem, error) {
	var item models.MenuItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *menuItemRepo) FindByIDs(ctx context.Context, ids []uint) ([]models.MenuItem, error) {
	var items []models.MenuItem
	if len(ids) == 0 {
		return items, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, translate(err)
	}
	return items, nil
}

func (r *menuItemRepo) ListByRestaurant(ctx context.Context, restaurantID uint, f MenuFilter) ([]models.MenuItem, error) {
	var items []models.MenuItem
	q := r.db.WithContext(ctx).Where("restaurant_id = ?", restaurantID).Order("id asc")
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.VegOnly {
		q = q.Where("is_veg = ?", true)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, translate(err)
	}
	return items, nil
}

func (r *menuItemRepo) Create(ctx context.Context, item *models.MenuItem) error {
	return translate(r.db.WithContext(ctx).Create(item).Error)
}

func (r *menuItemRepo) Update(ctx context.Context, item *models.MenuItem, fields map[string]interface{}) error {
	return translate(r.db.WithContext(ctx).Model(item).Updates(fields).Error)
}

// Delete hides the item from menus and new orders; past orders still resolve it
func (r *menuItemRepo) Delete(ctx context.Context, id uint) error {
	return translate(r.db.WithContext(ctx).Delete(&models.MenuItem{}, id).Error)
}

// PurgeByRestaurant removes every item of a restaurant, soft-deleted ones included
func (r *menuItemRepo) PurgeByRestaurant(ctx context.Context, restaurantID uint) error {
	return translate(r.db.WithContext(ctx).Unscoped().Where("restaurant_id = ?", restaurantID).Delete(&models.MenuItem{}).Error)
}
