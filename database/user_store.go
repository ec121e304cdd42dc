package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/anjiri1684/referral_payments/models"
	"github.com/anjiri1684/referral_payments/services"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var userFields = map[string]bool{
	services.FieldID:           true,
	services.FieldEmail:        true,
	services.FieldReferralCode: true,
}

var userColumns = map[string]bool{
	"full_name":        true,
	"role":             true,
	"referral_code":    true,
	"referred_by_id":   true,
	"total_referrals":  true,
	"referral_rewards": true,
}

type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.first(s.db.WithContext(ctx), id)
}

func (s *UserStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	q := s.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return s.first(q, id)
}

func (s *UserStore) first(q *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := q.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	users, err := s.FindByField(ctx, services.FieldEmail, email)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, services.ErrRecordNotFound
	}
	return &users[0], nil
}

func (s *UserStore) FindByField(ctx context.Context, field string, value interface{}) ([]models.User, error) {
	if !userFields[field] {
		return nil, fmt.Errorf("users cannot be filtered by %q", field)
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where(clause.Eq{Column: clause.Column{Name: field}, Value: value}).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserStore) Update(ctx context.Context, id uuid.UUID, patch map[string]interface{}) error {
	for column := range patch {
		if !userColumns[column] {
			return fmt.Errorf("users column %q is not updatable", column)
		}
	}
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(patch)
	if result.Error != nil {
		if isDuplicate(result.Error) {
			return services.ErrDuplicateKey
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return services.ErrRecordNotFound
	}
	return nil
}

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicate(err) {
			return services.ErrDuplicateKey
		}
		return err
	}
	return nil
}
