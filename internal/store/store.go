package store

import (
	"context" // Context for cancellation and timeouts
	"errors"  // Sentinel error values

	"referral_system/internal/domain" // Importing domain models
)

// Sentinel errors returned by AccountStore implementations
var (
	ErrNotFound    = errors.New("account not found")                 // No account matches the lookup
	ErrCodeTaken   = errors.New("referral code already taken")       // Unique index rejected the code write
	ErrConflict    = errors.New("account state changed concurrently") // A guarded mutation matched no rows
	ErrUnavailable = errors.New("persistence unavailable")           // Underlying data layer failure
)

// Mutation describes one account change inside an atomic set. Fields are
// applied as-is; AddBalance is applied as an in-database increment so
// concurrent credits never lose updates. MustBeUnreferred makes the mutation
// conditional on referred_by still being unset, which is the serialization
// point for racing referral claims on the same account.
type Mutation struct {
	AccountID        uint           // Target account
	Fields           map[string]any // Column -> value assignments
	AddBalance       int64          // Balance delta, applied atomically in the database
	MustBeUnreferred bool           // Apply only if the account has no referrer yet
}

// AccountStore is the data-access interface consumed by the referral ledger.
type AccountStore interface {
	// FindAccountByID returns the account with the given ID, or ErrNotFound.
	FindAccountByID(ctx context.Context, id uint) (*domain.Account, error)
	// FindAccountByReferralCode returns the account holding the given code,
	// or ErrNotFound. The code is matched exactly as stored (uppercase).
	FindAccountByReferralCode(ctx context.Context, code string) (*domain.Account, error)
	// UpdateAccount applies the given field assignments to one account and
	// returns the updated row. A write that violates the referral code
	// unique index returns ErrCodeTaken. Referral code assignments are
	// write-once: if the account already holds a code the write matches no
	// rows and ErrConflict is returned.
	UpdateAccount(ctx context.Context, id uint, fields map[string]any) (*domain.Account, error)
	// ApplyAtomic applies all mutations as a single unit: either every
	// mutation lands or none do. Returns ErrConflict if a guarded mutation
	// matched no rows.
	ApplyAtomic(ctx context.Context, mutations []Mutation) error
	// CountReferrals returns how many accounts name the given account as
	// their referrer.
	CountReferrals(ctx context.Context, id uint) (int64, error)
}
