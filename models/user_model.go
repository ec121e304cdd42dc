package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Balances and reward amounts are written as JSON numbers for every importer
// of this package, not only for User.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	FullName string    `gorm:"size:255;not null" json:"fullName"`
	Email    string    `gorm:"size:255;not null;unique" json:"email"`
	Password string    `gorm:"not null" json:"-"`
	Role     string    `gorm:"size:20;not null;default:'user'" json:"role"`

	ReferralCode    *string         `gorm:"size:10;unique" json:"referralCode"`
	ReferredByID    *uuid.UUID      `gorm:"type:uuid" json:"referredBy"`
	TotalReferrals  int             `gorm:"not null;default:0" json:"totalReferrals"`
	ReferralRewards decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"referralRewards"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasReferralCode reports whether a code has already been assigned.
func (u *User) HasReferralCode() bool {
	return u.ReferralCode != nil && *u.ReferralCode != ""
}

// PublicUser is what other users get to see about an account.
type PublicUser struct {
	ID           uuid.UUID `json:"id"`
	FullName     string    `json:"fullName"`
	ReferralCode *string   `json:"referralCode,omitempty"`
}

func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{ID: u.ID, FullName: u.FullName, ReferralCode: u.ReferralCode}
}
