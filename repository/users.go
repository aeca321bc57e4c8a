package repository

import (
	"context"

	"food-order/models"

	"gorm.io/gorm"
)

type UserRepository interface {
	Get(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	List(ctx context.Context, role models.UserRole) ([]models.User, error)
	UpdateRole(ctx context.Context, id uint, role models.UserRole) error
	UpdateProfile(ctx context.Context, id uint, fields map[string]interface{}) error
}

type userRepo struct {
	db *gorm.DB
}

func (r *userRepo) Get(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	return translate(r.db.WithContext(ctx).Create(u).Error)
}

// List returns all users, or only those with role when it is non-empty
func (r *userRepo) List(ctx context.Context, role models.UserRole) ([]models.User, error) {
	var users []models.User
	q := r.db.WithContext(ctx).Order("id asc")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, translate(err)
	}
	return users, nil
}

func (r *userRepo) UpdateRole(ctx context.Context, id uint, role models.UserRole) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile writes the given columns; a taken email comes back as ErrDuplicate
func (r *userRepo) UpdateProfile(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
