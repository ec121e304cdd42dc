package database

import (
	"context"
	"fmt"

	"github.com/anjiri1684/referral_payments/models"
	"github.com/anjiri1684/referral_payments/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var referralFields = map[string]bool{
	services.FieldID:             true,
	services.FieldReferrerID:     true,
	services.FieldReferredUserID: true,
	services.FieldReferralCode:   true,
}

type ReferralStore struct {
	db *gorm.DB
}

func NewReferralStore(db *gorm.DB) *ReferralStore {
	return &ReferralStore{db: db}
}

func (s *ReferralStore) Create(ctx context.Context, referral *models.Referral) error {
	if err := s.db.WithContext(ctx).Create(referral).Error; err != nil {
		if isDuplicate(err) {
			return services.ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (s *ReferralStore) FindByField(ctx context.Context, field string, value interface{}) ([]models.Referral, error) {
	if !referralFields[field] {
		return nil, fmt.Errorf("referrals cannot be filtered by %q", field)
	}
	var referrals []models.Referral
	err := s.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: field}, Value: value}).
		Order("completed_at desc").
		Find(&referrals).Error
	if err != nil {
		return nil, err
	}
	return referrals, nil
}

func (s *ReferralStore) List(ctx context.Context, limit, offset int) ([]models.Referral, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Referral{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var referrals []models.Referral
	err := s.db.WithContext(ctx).
		Order("completed_at desc").
		Limit(limit).
		Offset(offset).
		Find(&referrals).Error
	if err != nil {
		return nil, 0, err
	}
	return referrals, total, nil
}

// CounterDrift is a user whose stored total_referrals disagrees with the
// number of referral rows naming them as referrer.
type CounterDrift struct {
	UserID         string
	TotalReferrals int
	ReferralRows   int
}

func (s *ReferralStore) CounterDrift(ctx context.Context) ([]CounterDrift, error) {
	var drift []CounterDrift
	err := s.db.WithContext(ctx).
		Table("users").
		Select("users.id AS user_id, users.total_referrals AS total_referrals, COUNT(referrals.id) AS referral_rows").
		Joins("LEFT JOIN referrals ON referrals.referrer_id = users.id").
		Group("users.id, users.total_referrals").
		Having("COUNT(referrals.id) <> users.total_referrals").
		Scan(&drift).Error
	return drift, err
}
