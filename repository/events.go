package repository

import (
	"context"

	"food-order/models"

	"gorm.io/gorm"
)

// EventRepository is the durable record of applied provider webhook events
type EventRepository interface {
	// Record fails with ErrDuplicate when the event id was already recorded.
	Record(ctx context.Context, e *models.ProcessedEvent) error
	Exists(ctx context.Context, id string) (bool, error)
}

type eventRepo struct {
	db *gorm.DB
}

func (r *eventRepo) Record(ctx context.Context, e *models.ProcessedEvent) error {
	return translate(r.db.WithContext(ctx).Create(e).Error)
}

func (r *eventRepo) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.ProcessedEvent{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}
