package ledger

import (
	"context" // Context for store operations
	"errors"  // Sentinel errors and inspection
	"fmt"     // Error wrapping
	"strings" // Case normalization

	"referral_system/internal/store" // Data-access interface
)

// ReferralReward is the fixed amount credited to both parties of a referral
const ReferralReward int64 = 5000

// Domain failures returned by the ledger. These are expected outcomes the
// caller renders to end users, not faults.
var (
	ErrInvalidReferralCode = errors.New("invalid referral code")
	ErrSelfReferral        = errors.New("you cannot refer yourself")
	ErrAlreadyReferred     = errors.New("account has already been referred")
)

// maxCodeAttempts caps the generate-and-claim loop. With a 33^8 code space a
// handful of retries is already astronomically unlikely; hitting the cap
// means the store is misbehaving.
const maxCodeAttempts = 20

// ReferralResult carries the outcome of a successful referral
type ReferralResult struct {
	ReferrerID uint  `json:"referrer_id"` // Account that owned the claimed code
	Reward     int64 `json:"reward"`      // Amount credited to each party
}

// Stats summarizes an account's referral activity
type Stats struct {
	Code        string `json:"code"`         // The account's referral code
	Referred    int64  `json:"referred"`     // Number of accounts referred
	TotalEarned int64  `json:"total_earned"` // Total referrer-side earnings
}

// Service implements referral code issuance and reward crediting on top of
// the account store.
type Service struct {
	store store.AccountStore // Data-access interface
}

// NewService creates a referral ledger service
func NewService(st store.AccountStore) *Service {
	return &Service{store: st}
}

// EnsureReferralCode returns the account's referral code, generating and
// persisting one on first request. The call is idempotent: once a code is
// assigned, every later call returns the same code. Uniqueness rests on the
// store's unique index; a colliding write fails fast and a fresh candidate
// is tried.
func (s *Service) EnsureReferralCode(ctx context.Context, accountID uint) (string, error) {
	acc, err := s.store.FindAccountByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	// Idempotent read path: an assigned code is immutable
	if acc.ReferralCode != nil && *acc.ReferralCode != "" {
		return *acc.ReferralCode, nil
	}
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := GenerateCode()
		// Cheap pre-check; the unique index is the real gate
		if _, err := s.store.FindAccountByReferralCode(ctx, code); err == nil {
			continue // Candidate already held by another account
		} else if !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
		if _, err := s.store.UpdateAccount(ctx, accountID, map[string]any{"referral_code": code}); err != nil {
			if errors.Is(err, store.ErrCodeTaken) {
				continue // Lost the race for this candidate, try another
			}
			if errors.Is(err, store.ErrConflict) {
				// Another caller claimed a code for this account between
				// our read and write; theirs is the one that holds
				current, rerr := s.store.FindAccountByID(ctx, accountID)
				if rerr != nil {
					return "", rerr
				}
				if current.ReferralCode != nil && *current.ReferralCode != "" {
					return *current.ReferralCode, nil
				}
				return "", err
			}
			return "", err
		}
		return code, nil
	}
	return "", fmt.Errorf("referral code generation: %w", store.ErrUnavailable)
}

// ProcessReferral links a new account to the owner of the given referral code
// and credits both parties the fixed reward. The guards in order: unknown
// code, self-referral (same wallet address, case-insensitive), account
// already referred. The link and both credits apply as one atomic unit; a
// concurrent claim on the same account loses and reports ErrAlreadyReferred.
func (s *Service) ProcessReferral(ctx context.Context, newAccountID uint, code string) (*ReferralResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrInvalidReferralCode
	}

	referrer, err := s.store.FindAccountByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidReferralCode
		}
		return nil, err
	}

	newAcc, err := s.store.FindAccountByID(ctx, newAccountID)
	if err != nil {
		return nil, err
	}

	// Self-referral guard: wallet addresses compare case-insensitively
	if strings.EqualFold(referrer.WalletAddress, newAcc.WalletAddress) {
		return nil, ErrSelfReferral
	}

	// Already-referred guard
	if newAcc.ReferredBy != nil {
		return nil, ErrAlreadyReferred
	}

	// Link + both credits as one atomic unit. MustBeUnreferred re-checks the
	// referred_by column inside the transaction, so two racing claims on the
	// same account cannot both credit.
	err = s.store.ApplyAtomic(ctx, []store.Mutation{
		{
			AccountID: newAcc.ID,
			Fields: map[string]any{
				"referred_by":             referrer.ID,
				"referral_reward_claimed": true,
			},
			AddBalance:       ReferralReward,
			MustBeUnreferred: true,
		},
		{
			AccountID:  referrer.ID,
			AddBalance: ReferralReward,
		},
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrAlreadyReferred
		}
		return nil, err
	}

	return &ReferralResult{ReferrerID: referrer.ID, Reward: ReferralReward}, nil
}

// ReferralStats returns the account's code (issuing one if needed), how many
// accounts it has referred, and its referrer-side earnings.
func (s *Service) ReferralStats(ctx context.Context, accountID uint) (*Stats, error) {
	code, err := s.EnsureReferralCode(ctx, accountID)
	if err != nil {
		return nil, err
	}
	referred, err := s.store.CountReferrals(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Code:        code,
		Referred:    referred,
		TotalEarned: referred * ReferralReward,
	}, nil
}
