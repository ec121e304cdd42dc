package services

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindUnauthorized
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is returned by the ledger, the dispatcher and the payment client.
// Message is always safe to show to the caller.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so that wrapped copies of a sentinel still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrUserNotFound            = newError(KindNotFound, "user_not_found", "User not found")
	ErrAlreadyHasCode          = newError(KindConflict, "already_has_code", "You already have a referral code")
	ErrCodeTaken               = newError(KindConflict, "code_taken", "Referral code already exists")
	ErrCodeGenerationExhausted = newError(KindInternal, "code_generation_exhausted", "Could not generate a unique referral code")
	ErrInvalidCode             = newError(KindNotFound, "invalid_code", "Invalid referral code")
	ErrSelfReferral            = newError(KindConflict, "self_referral", "You cannot use your own referral code")
	ErrAlreadyReferred         = newError(KindConflict, "already_referred", "You have already been referred")
	ErrInvalidAmount           = newError(KindValidation, "invalid_amount", "Invalid amount")
	ErrInsufficientRewards     = newError(KindConflict, "insufficient_rewards", "Amount exceeds available rewards")

	ErrSecretNotConfigured = newError(KindValidation, "secret_not_configured", "Webhook secret is not configured")
	ErrSignatureInvalid    = newError(KindValidation, "signature_invalid", "Invalid webhook signature")

	ErrSessionNotFound = newError(KindNotFound, "session_not_found", "Session not found")
)

// Wrap attaches a cause to a sentinel while keeping errors.Is working.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: sentinel.Message, Err: cause}
}

// Upstream reports a payment provider failure with the provider's message.
func Upstream(message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Code: "upstream_error", Message: message, Err: cause}
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
