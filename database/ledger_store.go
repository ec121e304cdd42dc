package database

import (
	"context"

	"github.com/anjiri1684/referral_payments/services"
	"gorm.io/gorm"
)

// LedgerStore hands the ledger service user and referral stores that share
// one *gorm.DB, which inside WithinTx is the open transaction.
type LedgerStore struct {
	db        *gorm.DB
	users     *UserStore
	referrals *ReferralStore
}

func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{
		db:        db,
		users:     NewUserStore(db),
		referrals: NewReferralStore(db),
	}
}

func (s *LedgerStore) Users() services.UserStore         { return s.users }
func (s *LedgerStore) Referrals() services.ReferralStore { return s.referrals }

func (s *LedgerStore) WithinTx(ctx context.Context, fn func(tx services.LedgerStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewLedgerStore(tx))
	})
}

var _ services.LedgerStore = (*LedgerStore)(nil)
