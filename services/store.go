package services

import (
	"context"
	"errors"
	"time"

	"github.com/anjiri1684/referral_payments/models"
	"github.com/google/uuid"
)

// Store implementations translate driver errors into these two values.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("duplicate key")
)

// Columns accepted by FindByField.
const (
	FieldID             = "id"
	FieldEmail          = "email"
	FieldReferralCode   = "referral_code"
	FieldReferrerID     = "referrer_id"
	FieldReferredUserID = "referred_user_id"
)

type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// FindByIDForUpdate also locks the row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByField(ctx context.Context, field string, value interface{}) ([]models.User, error)
	Update(ctx context.Context, id uuid.UUID, patch map[string]interface{}) error
}

type ReferralStore interface {
	Create(ctx context.Context, referral *models.Referral) error
	FindByField(ctx context.Context, field string, value interface{}) ([]models.Referral, error)
}

// LedgerStore groups the user and referral stores so that a ledger operation
// can run all of its reads and writes in one transaction.
type LedgerStore interface {
	Users() UserStore
	Referrals() ReferralStore
	WithinTx(ctx context.Context, fn func(tx LedgerStore) error) error
}

type WebhookEventStore interface {
	Find(ctx context.Context, id string) (*models.WebhookEvent, error)
	// Record inserts the event or overwrites a previous outcome with the same id.
	Record(ctx context.Context, event *models.WebhookEvent) error
}

// ReferralNotifier is told about completed referrals after they commit.
// Implementations must not block for long and handle their own failures.
type ReferralNotifier interface {
	ReferralCompleted(ctx context.Context, referrer *models.User, referral *models.Referral)
}

type Clock func() time.Time
