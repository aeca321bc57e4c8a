package repository

import (
	"context"

	"food-order/models"

	"gorm.io/gorm"
)

type RestaurantFilter struct {
	Cuisine  string
	Search   string
	OpenOnly bool
}

type RestaurantRepository interface {
	Get(ctx context.Context, id uint) (*models.Restaurant, error)
	GetByOwner(ctx context.Context, ownerID uint) (*models.Restaurant, error)
	GetWithMenu(ctx context.Context, id uint) (*models.Restaurant, error)
	Create(ctx context.Context, r *models.Restaurant) error
	Update(ctx context.Context, r *models.Restaurant, fields map[string]interface{}) error
	List(ctx context.Context, f RestaurantFilter) ([]models.Restaurant, error)
	HasOrders(ctx context.Context, id uint) (bool, error)
	Delete(ctx context.Context, id uint) error
}

type restaurantRepo struct {
	db *gorm.DB
}

func (r *restaurantRepo) Get(ctx context.Context, id uint) (*models.Restaurant, error) {
	var rest models.Restaurant
	if err := r.db.WithContext(ctx).First(&rest, id).Error; err != nil {
		return nil, translate(err)
	}
	return &rest, nil
}

func (r *restaurantRepo) GetByOwner(ctx context.Context, ownerID uint) (*models.Restaurant, error) {
	var rest models.Restaurant
	if err := r.db.WithContext(ctx).Preload("MenuItems").Where("owner_id = ?", ownerID).First(&rest).Error; err != nil {
		return nil, translate(err)
	}
	return &rest, nil
}

func (r *restaurantRepo) GetWithMenu(ctx context.Context, id uint) (*models.Restaurant, error) {
	var rest models.Restaurant
	if err := r.db.WithContext(ctx).Preload("MenuItems").First(&rest, id).Error; err != nil {
		return nil, translate(err)
	}
	return &rest, nil
}

func (r *restaurantRepo) Create(ctx context.Context, rest *models.Restaurant) error {
	return translate(r.db.WithContext(ctx).Create(rest).Error)
}

func (r *restaurantRepo) Update(ctx context.Context, rest *models.Restaurant, fields map[string]interface{}) error {
	return translate(r.db.WithContext(ctx).Model(rest).Updates(fields).Error)
}

func (r *restaurantRepo) List(ctx context.Context, f RestaurantFilter) ([]models.Restaurant, error) {
	var out []models.Restaurant
	q := r.db.WithContext(ctx).Order("id asc")
	if f.Cuisine != "" {
		q = q.Where("cuisine LIKE ?", "%"+f.Cuisine+"%")
	}
	if f.Search != "" {
		q = q.Where("name LIKE ?", "%"+f.Search+"%")
	}
	if f.OpenOnly {
		q = q.Where("is_open = ?", true)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (r *restaurantRepo) HasOrders(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("restaurant_id = ?", id).Count(&n).Error; err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

func (r *restaurantRepo) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Restaurant{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
