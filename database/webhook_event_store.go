package database

import (
	"context"
	"errors"
	"time"

	"github.com/anjiri1684/referral_payments/models"
	"github.com/anjiri1684/referral_payments/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WebhookEventStore struct {
	db *gorm.DB
}

func NewWebhookEventStore(db *gorm.DB) *WebhookEventStore {
	return &WebhookEventStore{db: db}
}

func (s *WebhookEventStore) Find(ctx context.Context, id string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrRecordNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (s *WebhookEventStore) Record(ctx context.Context, event *models.WebhookEvent) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(event).Error
}

func (s *WebhookEventStore) List(ctx context.Context, status string, limit, offset int) ([]models.WebhookEvent, int64, error) {
	filtered := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.WebhookEvent{})
		if status != "" {
			q = q.Where("status = ?", status)
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var events []models.WebhookEvent
	err := filtered().
		Order("received_at desc").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (s *WebhookEventStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("received_at < ?", cutoff).Delete(&models.WebhookEvent{})
	return result.RowsAffected, result.Error
}

var _ services.WebhookEventStore = (*WebhookEventStore)(nil)
