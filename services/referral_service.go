package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anjiri1684/referral_payments/metrics"
	"github.com/anjiri1684/referral_payments/models"
	"github.com/anjiri1684/referral_payments/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxCodeAttempts = 5

var ReferralRewardAmount = decimal.NewFromInt(10)

var ErrMissingCode = newError(KindValidation, "missing_code", "Referral code is required")

type ReferralStats struct {
	ReferralCode      *string            `json:"referralCode"`
	TotalReferrals    int                `json:"totalReferrals"`
	ReferralRewards   decimal.Decimal    `json:"referralRewards"`
	ReferralsMade     []models.Referral  `json:"referralsMade"`
	ReferralsReceived []models.Referral  `json:"referralsReceived"`
	ReferredBy        *models.PublicUser `json:"referredBy"`
}

type SpendResult struct {
	AmountUsed       decimal.Decimal `json:"amountUsed"`
	RemainingRewards decimal.Decimal `json:"remainingRewards"`
}

type LedgerService struct {
	store    LedgerStore
	notifier ReferralNotifier
	logger   zerolog.Logger
	metrics  *metrics.ReferralMetrics

	reward   decimal.Decimal
	now      Clock
	generate func() (string, error)
}

type LedgerOption func(*LedgerService)

func WithRewardAmount(amount decimal.Decimal) LedgerOption {
	return func(s *LedgerService) {
		if amount.IsPositive() {
			s.reward = amount
		}
	}
}

func WithClock(now Clock) LedgerOption {
	return func(s *LedgerService) { s.now = now }
}

func WithCodeGenerator(fn func() (string, error)) LedgerOption {
	return func(s *LedgerService) { s.generate = fn }
}

func NewLedgerService(store LedgerStore, notifier ReferralNotifier, logger zerolog.Logger, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		store:    store,
		notifier: notifier,
		logger:   logger.With().Str("component", "ledger").Logger(),
		metrics:  metrics.Referrals(),
		reward:   ReferralRewardAmount,
		now:      time.Now,
		generate: utils.GenerateReferralCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LedgerService) GenerateCode() (string, error) {
	return s.generate()
}

// AssignReferralCode gives the user their permanent referral code, either the
// one they asked for or a freshly generated one.
func (s *LedgerService) AssignReferralCode(ctx context.Context, userID uuid.UUID, requested string) (string, error) {
	requested = strings.TrimSpace(requested)

	var code string
	err := s.store.WithinTx(ctx, func(tx LedgerStore) error {
		user, err := tx.Users().FindByIDForUpdate(ctx, userID)
		if err != nil {
			return notFoundAs(err, ErrUserNotFound)
		}
		if user.HasReferralCode() {
			return ErrAlreadyHasCode
		}

		if requested != "" {
			taken, err := codeInUse(ctx, tx.Users(), requested)
			if err != nil {
				return err
			}
			if taken {
				return ErrCodeTaken
			}
			code = requested
		} else {
			code, err = s.uniqueCode(ctx, tx.Users())
			if err != nil {
				return err
			}
		}

		err = tx.Users().Update(ctx, userID, map[string]interface{}{FieldReferralCode: code})
		if errors.Is(err, ErrDuplicateKey) {
			return ErrCodeTaken
		}
		return err
	})
	s.metrics.Observe("assign_code", outcomeOf(err))
	if err != nil {
		return "", err
	}

	s.logger.Info().Str("user_id", userID.String()).Str("referral_code", code).Msg("referral code assigned")
	return code, nil
}

func (s *LedgerService) uniqueCode(ctx context.Context, users UserStore) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			return "", err
		}
		taken, err := codeInUse(ctx, users, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
		s.logger.Debug().Str("referral_code", code).Int("attempt", attempt+1).Msg("generated code collided")
	}
	return "", ErrCodeGenerationExhausted
}

func codeInUse(ctx context.Context, users UserStore, code string) (bool, error) {
	owners, err := users.FindByField(ctx, FieldReferralCode, code)
	if err != nil {
		return false, err
	}
	return len(owners) > 0, nil
}

// Redeem records that actingUserID signed up with someone else's code and
// credits the code's owner.
func (s *LedgerService) Redeem(ctx context.Context, actingUserID uuid.UUID, code string) (*models.Referral, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		s.metrics.Observe("redeem", ErrMissingCode.Code)
		return nil, ErrMissingCode
	}

	var (
		referral *models.Referral
		referrer *models.User
	)
	err := s.store.WithinTx(ctx, func(tx LedgerStore) error {
		owners, err := tx.Users().FindByField(ctx, FieldReferralCode, code)
		if err != nil {
			return err
		}
		if len(owners) == 0 {
			return ErrInvalidCode
		}
		ownerID := owners[0].ID
		if ownerID == actingUserID {
			return ErrSelfReferral
		}

		existing, err := tx.Referrals().FindByField(ctx, FieldReferredUserID, actingUserID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrAlreadyReferred
		}

		owner, referred, err := lockPair(ctx, tx.Users(), ownerID, actingUserID)
		if err != nil {
			return err
		}
		if referred.ReferredByID != nil {
			return ErrAlreadyReferred
		}

		record := &models.Referral{
			ReferrerID:     owner.ID,
			ReferredUserID: referred.ID,
			ReferralCode:   code,
			Status:         models.ReferralStatusCompleted,
			RewardAmount:   s.reward,
			CompletedAt:    s.now().UTC(),
		}
		if err := tx.Referrals().Create(ctx, record); err != nil {
			if errors.Is(err, ErrDuplicateKey) {
				return ErrAlreadyReferred
			}
			return err
		}

		owner.TotalReferrals++
		owner.ReferralRewards = owner.ReferralRewards.Add(s.reward)
		if err := tx.Users().Update(ctx, owner.ID, map[string]interface{}{
			"total_referrals":  owner.TotalReferrals,
			"referral_rewards": owner.ReferralRewards,
		}); err != nil {
			return err
		}

		if err := tx.Users().Update(ctx, referred.ID, map[string]interface{}{
			"referred_by_id": owner.ID,
		}); err != nil {
			return err
		}

		record.Referrer = owner.Public()
		record.ReferredUser = referred.Public()
		referral, referrer = record, owner
		return nil
	})
	s.metrics.Observe("redeem", outcomeOf(err))
	if err != nil {
		return nil, err
	}

	s.metrics.Accrued(s.reward.InexactFloat64())
	s.logger.Info().
		Str("referrer_id", referrer.ID.String()).
		Str("referred_id", actingUserID.String()).
		Str("referral_code", code).
		Str("reward", s.reward.String()).
		Msg("referral completed")

	if s.notifier != nil {
		s.notifier.ReferralCompleted(ctx, referrer, referral)
	}
	return referral, nil
}

// lockPair locks both users in a stable order so two redemptions touching the
// same pair cannot deadlock.
func lockPair(ctx context.Context, users UserStore, referrerID, referredID uuid.UUID) (*models.User, *models.User, error) {
	first, second := referrerID, referredID
	if bytes.Compare(first[:], second[:]) > 0 {
		first, second = second, first
	}

	a, err := users.FindByIDForUpdate(ctx, first)
	if err != nil {
		return nil, nil, notFoundAs(err, lockMissing(first, referrerID))
	}
	b, err := users.FindByIDForUpdate(ctx, second)
	if err != nil {
		return nil, nil, notFoundAs(err, lockMissing(second, referrerID))
	}

	if a.ID == referrerID {
		return a, b, nil
	}
	return b, a, nil
}

func lockMissing(id, referrerID uuid.UUID) *Error {
	if id == referrerID {
		return ErrInvalidCode
	}
	return ErrUserNotFound
}

// Stats is a read-only projection of the user's referral activity.
func (s *LedgerService) Stats(ctx context.Context, userID uuid.UUID) (*ReferralStats, error) {
	users := s.store.Users()
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound)
	}

	made, err := s.store.Referrals().FindByField(ctx, FieldReferrerID, userID)
	if err != nil {
		return nil, err
	}
	received, err := s.store.Referrals().FindByField(ctx, FieldReferredUserID, userID)
	if err != nil {
		return nil, err
	}

	lookup := newUserLookup(users)
	for i := range made {
		made[i].ReferredUser, err = lookup.public(ctx, made[i].ReferredUserID)
		if err != nil {
			return nil, err
		}
	}
	for i := range received {
		received[i].Referrer, err = lookup.public(ctx, received[i].ReferrerID)
		if err != nil {
			return nil, err
		}
	}

	stats := &ReferralStats{
		ReferralCode:      user.ReferralCode,
		TotalReferrals:    user.TotalReferrals,
		ReferralRewards:   user.ReferralRewards,
		ReferralsMade:     nonNil(made),
		ReferralsReceived: nonNil(received),
	}
	if user.ReferredByID != nil {
		stats.ReferredBy, err = lookup.public(ctx, *user.ReferredByID)
		if err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// SpendRewards deducts amount from the user's reward balance.
func (s *LedgerService) SpendRewards(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*SpendResult, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		s.metrics.Observe("spend", ErrInvalidAmount.Code)
		return nil, ErrInvalidAmount
	}

	var remaining decimal.Decimal
	err := s.store.WithinTx(ctx, func(tx LedgerStore) error {
		user, err := tx.Users().FindByIDForUpdate(ctx, userID)
		if err != nil {
			return notFoundAs(err, ErrUserNotFound)
		}
		if amount.GreaterThan(user.ReferralRewards) {
			return ErrInsufficientRewards
		}

		remaining = user.ReferralRewards.Sub(amount)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		return tx.Users().Update(ctx, userID, map[string]interface{}{"referral_rewards": remaining})
	})
	s.metrics.Observe("spend", outcomeOf(err))
	if err != nil {
		return nil, err
	}

	s.metrics.Spent(amount.InexactFloat64())
	s.logger.Info().
		Str("user_id", userID.String()).
		Str("amount", amount.String()).
		Str("remaining", remaining.String()).
		Msg("referral rewards spent")

	return &SpendResult{AmountUsed: amount, RemainingRewards: remaining}, nil
}

type userLookup struct {
	users UserStore
	seen  map[uuid.UUID]*models.PublicUser
}

func newUserLookup(users UserStore) *userLookup {
	return &userLookup{users: users, seen: make(map[uuid.UUID]*models.PublicUser)}
}

// public returns nil, not an error, for users that no longer exist.
func (l *userLookup) public(ctx context.Context, id uuid.UUID) (*models.PublicUser, error) {
	if p, ok := l.seen[id]; ok {
		return p, nil
	}
	u, err := l.users.FindByID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		l.seen[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l.seen[id] = u.Public()
	return l.seen[id], nil
}

func notFoundAs(err error, sentinel *Error) error {
	if errors.Is(err, ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func nonNil(refs []models.Referral) []models.Referral {
	if refs == nil {
		return []models.Referral{}
	}
	return refs
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "error"
}
