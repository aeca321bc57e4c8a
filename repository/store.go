// Package repository is the gorm-backed entity store.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"food-order/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Repositories groups every entity repository bound to the same connection or transaction
type Repositories struct {
	Users       UserRepository
	Restaurants RestaurantRepository
	Menu        MenuItemRepository
	Orders      OrderRepository
	Deliveries  DeliveryRepository
	Payments    PaymentRepository
	Events      EventRepository
}

// Store is the unit of work. Repos reads outside a transaction; Transaction runs fn
// atomically and rolls back when fn returns an error.
type Store interface {
	Repos() Repositories
	Transaction(ctx context.Context, fn func(r Repositories) error) error
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Repos() Repositories {
	return newRepositories(s.db)
}

func (s *gormStore) Transaction(ctx context.Context, fn func(r Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepositories(tx))
	})
}

func newRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:       &userRepo{db: db},
		Restaurants: &restaurantRepo{db: db},
		Menu:        &menuItemRepo{db: db},
		Orders:      &orderRepo{db: db},
		Deliveries:  &deliveryRepo{db: db},
		Payments:    &paymentRepo{db: db},
		Events:      &eventRepo{db: db},
	}
}

// AutoMigrate creates or updates every table the store needs
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Restaurant{},
		&models.MenuItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
		&models.Delivery{},
		&models.Payment{},
		&models.Refund{},
		&models.ProcessedEvent{},
	)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isDuplicate(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") || // postgres
		strings.Contains(msg, "Duplicate entry") // mysql
}

// guarded runs a compare-and-set update and reports whether exactly one row changed
func guarded(res *gorm.DB) (bool, error) {
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}
