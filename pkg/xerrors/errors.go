package xerrors

import "errors"
import "github.com/jackc/pgx/v5/pgconn"

func ParsePGErrorCode(err error) string {
	if pgErr, ok := err.(*pgconn.PgError); ok {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}

// Generic
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalServer = errors.New("internal server error")
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input provided")
)

// Wallet / ledger
var (
	ErrWalletNotFound        = errors.New("wallet not found")
	ErrInsufficientFunds     = errors.New("insufficient available balance")
	ErrVersionMismatch       = errors.New("version mismatch")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// Distribution
var (
	ErrDuplicateEvent    = errors.New("event already settled")
	ErrCapExceeded       = errors.New("daily earning cap exceeded")
	ErrViewTooShort      = errors.New("view too short for revenue sharing")
	ErrViewTooSmallShare = errors.New("view percentage below revenue sharing threshold")
	ErrNoAdRevenue       = errors.New("no ad revenue reported for view")
	ErrAmountTooSmall    = errors.New("amount too small for payout")
	ErrBonusOverLimit    = errors.New("bonus amount exceeds limit for sub type")
)

// Referral
var (
	ErrSelfReferral       = errors.New("cannot apply own referral code")
	ErrAlreadyReferred    = errors.New("user already has a referral relationship")
	ErrReferralCodeTaken  = errors.New("referral code already in use")
	ErrInvalidCodeFormat  = errors.New("referral code must be 6-12 uppercase letters or digits")
	ErrCodeExhausted      = errors.New("referral code has reached its usage limit")
	ErrCodeExpired        = errors.New("referral code has expired")
	ErrCodeNotFound       = errors.New("referral code not found")
	ErrReferralExpired    = errors.New("referral relationship expired")
)
