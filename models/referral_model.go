package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const ReferralStatusCompleted = "completed"

type Referral struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	ReferrerID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"referrerId"`
	ReferredUserID uuid.UUID       `gorm:"type:uuid;not null;unique" json:"referredId"`
	ReferralCode   string          `gorm:"size:10;not null" json:"referralCode"`
	Status         string          `gorm:"size:20;not null;default:'completed'" json:"status"`
	RewardAmount   decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"rewardAmount"`
	CompletedAt    time.Time       `gorm:"not null" json:"completedAt"`

	Referrer     *PublicUser `gorm:"-" json:"referrer,omitempty"`
	ReferredUser *PublicUser `gorm:"-" json:"referred,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (r *Referral) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
