package store

import (
	"context" // Context for timeouts
	"errors"  // Error inspection
	"time"    // Transaction timeout

	"referral_system/internal/domain" // Importing domain models

	"gorm.io/gorm" // GORM ORM library
)

// txTimeout bounds every atomic mutation set so a contended transaction
// cannot block a request indefinitely
const txTimeout = 5 * time.Second

// GormStore implements AccountStore on top of a GORM connection. The
// database must be opened with TranslateError enabled so unique index
// violations surface as gorm.ErrDuplicatedKey.
type GormStore struct {
	db *gorm.DB // GORM connection
}

// NewGormStore wraps a GORM connection in an AccountStore
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// FindAccountByID returns the account with the given ID
func (s *GormStore) FindAccountByID(ctx context.Context, id uint) (*domain.Account, error) {
	var acc domain.Account
	if err := s.db.WithContext(ctx).First(&acc, id).Error; err != nil {
		return nil, translate(err)
	}
	return &acc, nil
}

// FindAccountByReferralCode returns the account holding the given code
func (s *GormStore) FindAccountByReferralCode(ctx context.Context, code string) (*domain.Account, error) {
	var acc domain.Account
	if err := s.db.WithContext(ctx).Where("referral_code = ?", code).First(&acc).Error; err != nil {
		return nil, translate(err)
	}
	return &acc, nil
}

// UpdateAccount applies field assignments to one account and returns the
// updated row. Duplicate referral code writes fail fast with ErrCodeTaken.
// A referral code is write-once: its assignment is conditional on the column
// still being NULL, so two racing claims for the same account cannot
// reassign a code that already landed. The loser gets ErrConflict.
func (s *GormStore) UpdateAccount(ctx context.Context, id uint, fields map[string]any) (*domain.Account, error) {
	q := s.db.WithContext(ctx).Model(&domain.Account{}).Where("id = ?", id)
	if _, claiming := fields["referral_code"]; claiming {
		q = q.Where("referral_code IS NULL")
	}
	res := q.Updates(fields)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		// Distinguish a missing account from a lost write race
		if _, err := s.FindAccountByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}
	return s.FindAccountByID(ctx, id)
}

// ApplyAtomic applies all mutations inside a single database transaction
// with a bounded timeout. A guarded mutation that matches no rows aborts
// the whole set with ErrConflict.
func (s *GormStore) ApplyAtomic(ctx context.Context, mutations []Mutation) error {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range mutations {
			q := tx.Model(&domain.Account{}).Where("id = ?", m.AccountID)
			if m.MustBeUnreferred {
				q = q.Where("referred_by IS NULL")
			}
			assignments := map[string]any{}
			for k, v := range m.Fields {
				assignments[k] = v
			}
			if m.AddBalance != 0 {
				// Increment in the database so concurrent credits
				// to the same account never lose an update
				assignments["balance"] = gorm.Expr("balance + ?", m.AddBalance)
			}
			res := q.Updates(assignments)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrConflict
			}
		}
		return nil // Commit transaction
	})
	if err != nil {
		return translate(err)
	}
	return nil
}

// CountReferrals returns how many accounts were referred by the given account
func (s *GormStore) CountReferrals(ctx context.Context, id uint) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&domain.Account{}).Where("referred_by = ?", id).Count(&n).Error; err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// translate maps GORM errors to the store's sentinel errors
func translate(err error) error {
	switch {
	case errors.Is(err, ErrConflict):
		return ErrConflict
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrCodeTaken
	default:
		return errors.Join(ErrUnavailable, err)
	}
}
