package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"referral_system/internal/domain"
	"referral_system/internal/store"
)

// fakeStore is an in-memory AccountStore. It enforces the referral code
// unique index and the unreferred guard the same way the gorm store does,
// so the ledger's retry and race handling can be exercised without a
// database.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[uint]*domain.Account

	claimFailures int   // Number of code writes to reject with ErrCodeTaken
	findErr       error // Injected failure for lookups
}

func newFakeStore(accounts ...*domain.Account) *fakeStore {
	fs := &fakeStore{accounts: make(map[uint]*domain.Account)}
	for _, a := range accounts {
		cp := *a
		fs.accounts[a.ID] = &cp
	}
	return fs
}

func (fs *fakeStore) FindAccountByID(_ context.Context, id uint) (*domain.Account, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.findErr != nil {
		return nil, fs.findErr
	}
	acc, ok := fs.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (fs *fakeStore) FindAccountByReferralCode(_ context.Context, code string) (*domain.Account, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.findErr != nil {
		return nil, fs.findErr
	}
	for _, acc := range fs.accounts {
		if acc.ReferralCode != nil && *acc.ReferralCode == code {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (fs *fakeStore) UpdateAccount(_ context.Context, id uint, fields map[string]any) (*domain.Account, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	acc, ok := fs.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if code, ok := fields["referral_code"].(string); ok {
		if fs.claimFailures > 0 {
			fs.claimFailures--
			return nil, store.ErrCodeTaken
		}
		// Write-once emulation: a code that already landed stays
		if acc.ReferralCode != nil {
			return nil, store.ErrConflict
		}
		// Unique index emulation
		for otherID, other := range fs.accounts {
			if otherID != id && other.ReferralCode != nil && *other.ReferralCode == code {
				return nil, store.ErrCodeTaken
			}
		}
		acc.ReferralCode = &code
	}
	cp := *acc
	return &cp, nil
}

func (fs *fakeStore) ApplyAtomic(_ context.Context, mutations []store.Mutation) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	// Validate every mutation before applying any, so the set stays atomic
	for _, m := range mutations {
		acc, ok := fs.accounts[m.AccountID]
		if !ok {
			return store.ErrConflict
		}
		if m.MustBeUnreferred && acc.ReferredBy != nil {
			return store.ErrConflict
		}
	}
	for _, m := range mutations {
		acc := fs.accounts[m.AccountID]
		if v, ok := m.Fields["referred_by"].(uint); ok {
			ref := v
			acc.ReferredBy = &ref
		}
		if v, ok := m.Fields["referral_reward_claimed"].(bool); ok {
			acc.ReferralRewardClaimed = v
		}
		acc.Balance += m.AddBalance
	}
	return nil
}

func (fs *fakeStore) CountReferrals(_ context.Context, id uint) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var n int64
	for _, acc := range fs.accounts {
		if acc.ReferredBy != nil && *acc.ReferredBy == id {
			n++
		}
	}
	return n, nil
}

func (fs *fakeStore) get(id uint) *domain.Account {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	cp := *fs.accounts[id]
	return &cp
}

func codePtr(s string) *string { return &s }

func TestEnsureReferralCode_Idempotent(t *testing.T) {
	fs := newFakeStore(&domain.Account{ID: 1, WalletAddress: "0xaaa"})
	svc := NewService(fs)

	first, err := svc.EnsureReferralCode(context.Background(), 1)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if len(first) != codeLength {
		t.Fatalf("code %q has wrong length", first)
	}
	second, err := svc.EnsureReferralCode(context.Background(), 1)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first != second {
		t.Errorf("codes differ across calls: %q vs %q", first, second)
	}
}

func TestEnsureReferralCode_RetriesOnConflict(t *testing.T) {
	fs := newFakeStore(&domain.Account{ID: 1, WalletAddress: "0xaaa"})
	fs.claimFailures = 3 // First three candidates lose the unique index race
	svc := NewService(fs)

	code, err := svc.EnsureReferralCode(context.Background(), 1)
	if err != nil {
		t.Fatalf("EnsureReferralCode: %v", err)
	}
	if code == "" {
		t.Fatal("expected a code after retries")
	}
	if got := fs.get(1).ReferralCode; got == nil || *got != code {
		t.Errorf("persisted code = %v, want %q", got, code)
	}
}

// staleReadStore serves a configurable number of stale account reads (code
// not yet visible) before the real row, modelling a caller whose read raced
// another claim on the same account.
type staleReadStore struct {
	*fakeStore
	staleMu   sync.Mutex
	staleLeft int
}

func (s *staleReadStore) FindAccountByID(ctx context.Context, id uint) (*domain.Account, error) {
	acc, err := s.fakeStore.FindAccountByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.staleMu.Lock()
	if s.staleLeft > 0 {
		s.staleLeft--
		acc.ReferralCode = nil
	}
	s.staleMu.Unlock()
	return acc, nil
}

// A caller that read "no code yet" but lost the claim race must be handed
// the code that won, never overwrite it.
func TestEnsureReferralCode_LostClaimRaceReturnsWinner(t *testing.T) {
	fs := newFakeStore(&domain.Account{ID: 1, WalletAddress: "0xaaa", ReferralCode: codePtr("W1NNER77")})
	st := &staleReadStore{fakeStore: fs, staleLeft: 1}
	svc := NewService(st)

	code, err := svc.EnsureReferralCode(context.Background(), 1)
	if err != nil {
		t.Fatalf("EnsureReferralCode: %v", err)
	}
	if code != "W1NNER77" {
		t.Errorf("code = %q, want the already-assigned W1NNER77", code)
	}
	if got := fs.get(1).ReferralCode; got == nil || *got != "W1NNER77" {
		t.Errorf("stored code = %v, want W1NNER77 unchanged", got)
	}
}

func TestEnsureReferralCode_ConcurrentSameAccount(t *testing.T) {
	fs := newFakeStore(&domain.Account{ID: 1, WalletAddress: "0xaaa"})
	svc := NewService(fs)

	// All racing callers for one account must agree on a single code
	var wg sync.WaitGroup
	codes := make([]string, 8)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, err := svc.EnsureReferralCode(context.Background(), 1)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			codes[i] = code
		}(i)
	}
	wg.Wait()

	stored := fs.get(1).ReferralCode
	if stored == nil || *stored == "" {
		t.Fatal("no code persisted")
	}
	for i, code := range codes {
		if code != *stored {
			t.Errorf("caller %d got %q, stored code is %q", i, code, *stored)
		}
	}
}

func TestEnsureReferralCode_UniqueUnderConcurrency(t *testing.T) {
	accounts := make([]*domain.Account, 50)
	for i := range accounts {
		accounts[i] = &domain.Account{ID: uint(i + 1), WalletAddress: "0x" + string(rune('a'+i))}
	}
	fs := newFakeStore(accounts...)
	svc := NewService(fs)

	var wg sync.WaitGroup
	codes := make([]string, len(accounts))
	for i := range accounts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, err := svc.EnsureReferralCode(context.Background(), uint(i+1))
			if err != nil {
				t.Errorf("account %d: %v", i+1, err)
				return
			}
			codes[i] = code
		}(i)
	}
	wg.Wait()

	seen := make(map[string]int)
	for i, code := range codes {
		if prev, dup := seen[code]; dup {
			t.Errorf("accounts %d and %d share code %q", prev, i+1, code)
		}
		seen[code] = i + 1
	}
}

func TestProcessReferral_SuccessCaseInsensitive(t *testing.T) {
	fs := newFakeStore(
		&domain.Account{ID: 1, WalletAddress: "0xreferrer", ReferralCode: codePtr("AB3456CD")},
		&domain.Account{ID: 2, WalletAddress: "0xnew"},
	)
	svc := NewService(fs)

	result, err := svc.ProcessReferral(context.Background(), 2, "ab3456cd")
	if err != nil {
		t.Fatalf("ProcessReferral: %v", err)
	}
	if result.ReferrerID != 1 {
		t.Errorf("referrer id = %d, want 1", result.ReferrerID)
	}
	if result.Reward != ReferralReward {
		t.Errorf("reward = %d, want %d", result.Reward, ReferralReward)
	}

	newAcc := fs.get(2)
	if newAcc.Balance != ReferralReward {
		t.Errorf("new account balance = %d, want %d", newAcc.Balance, ReferralReward)
	}
	if newAcc.ReferredBy == nil || *newAcc.ReferredBy != 1 {
		t.Errorf("referred_by = %v, want 1", newAcc.ReferredBy)
	}
	if !newAcc.ReferralRewardClaimed {
		t.Error("referral_reward_claimed not set")
	}
	if got := fs.get(1).Balance; got != ReferralReward {
		t.Errorf("referrer balance = %d, want %d", got, ReferralReward)
	}
}

func TestProcessReferral_InvalidCode(t *testing.T) {
	fs := newFakeStore(&domain.Account{ID: 2, WalletAddress: "0xnew"})
	svc := NewService(fs)

	_, err := svc.ProcessReferral(context.Background(), 2, "ZZZZZZZZ")
	if !errors.Is(err, ErrInvalidReferralCode) {
		t.Fatalf("err = %v, want ErrInvalidReferralCode", err)
	}
	if got := fs.get(2).Balance; got != 0 {
		t.Errorf("balance mutated on failure: %d", got)
	}
}

func TestProcessReferral_SelfReferral(t *testing.T) {
	// Same wallet, different case: the guard compares case-insensitively
	fs := newFakeStore(
		&domain.Account{ID: 1, WalletAddress: "0xabcdef", ReferralCode: codePtr("AB3456CD")},
	)
	svc := NewService(fs)

	_, err := svc.ProcessReferral(context.Background(), 1, "AB3456CD")
	if !errors.Is(err, ErrSelfReferral) {
		t.Fatalf("err = %v, want ErrSelfReferral", err)
	}
	if got := fs.get(1).Balance; got != 0 {
		t.Errorf("balance mutated on self-referral: %d", got)
	}
	if fs.get(1).ReferredBy != nil {
		t.Error("referred_by set on self-referral")
	}
}

func TestProcessReferral_AlreadyReferred(t *testing.T) {
	fs := newFakeStore(
		&domain.Account{ID: 1, WalletAddress: "0xreferrer", ReferralCode: codePtr("AB3456CD")},
		&domain.Account{ID: 2, WalletAddress: "0xnew"},
	)
	svc := NewService(fs)

	if _, err := svc.ProcessReferral(context.Background(), 2, "AB3456CD"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	balancesAfterFirst := [2]int64{fs.get(1).Balance, fs.get(2).Balance}

	_, err := svc.ProcessReferral(context.Background(), 2, "AB3456CD")
	if !errors.Is(err, ErrAlreadyReferred) {
		t.Fatalf("second claim err = %v, want ErrAlreadyReferred", err)
	}
	if fs.get(1).Balance != balancesAfterFirst[0] || fs.get(2).Balance != balancesAfterFirst[1] {
		t.Error("balances changed by the rejected second claim")
	}
}

// Pins the resolved open question: the referrer is credited on every
// successful claim of their code, without a cap.
func TestProcessReferral_ReferrerCreditedEveryTime(t *testing.T) {
	fs := newFakeStore(
		&domain.Account{ID: 1, WalletAddress: "0xreferrer", ReferralCode: codePtr("AB3456CD")},
		&domain.Account{ID: 2, WalletAddress: "0xnew1"},
		&domain.Account{ID: 3, WalletAddress: "0xnew2"},
	)
	svc := NewService(fs)

	if _, err := svc.ProcessReferral(context.Background(), 2, "AB3456CD"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := svc.ProcessReferral(context.Background(), 3, "AB3456CD"); err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if got := fs.get(1).Balance; got != 2*ReferralReward {
		t.Errorf("referrer balance = %d, want %d", got, 2*ReferralReward)
	}
}

func TestProcessReferral_ConcurrentClaimsSingleWinner(t *testing.T) {
	fs := newFakeStore(
		&domain.Account{ID: 1, WalletAddress: "0xreferrer", ReferralCode: codePtr("AB3456CD")},
		&domain.Account{ID: 2, WalletAddress: "0xother", ReferralCode: codePtr("EF789GHJ")},
		&domain.Account{ID: 3, WalletAddress: "0xnew"},
	)
	svc := NewService(fs)

	// Two racing claims on the same new account against different codes:
	// exactly one may land, and the loser must not credit anyone
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, code := range []string{"AB3456CD", "EF789GHJ"} {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			_, results[i] = svc.ProcessReferral(context.Background(), 3, code)
		}(i, code)
	}
	wg.Wait()

	var successes int
	for _, err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, ErrAlreadyReferred) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	if got := fs.get(3).Balance; got != ReferralReward {
		t.Errorf("new account balance = %d, want %d", got, ReferralReward)
	}
	if fs.get(1).Balance+fs.get(2).Balance != ReferralReward {
		t.Errorf("total referrer credits = %d, want %d", fs.get(1).Balance+fs.get(2).Balance, ReferralReward)
	}
}

func TestProcessReferral_StoreFailureSurfacesWrapped(t *testing.T) {
	fs := newFakeStore(&domain.Account{ID: 2, WalletAddress: "0xnew"})
	fs.findErr = store.ErrUnavailable
	svc := NewService(fs)

	_, err := svc.ProcessReferral(context.Background(), 2, "AB3456CD")
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("err = %v, want store.ErrUnavailable", err)
	}
}

func TestReferralStats(t *testing.T) {
	ref := uint(1)
	fs := newFakeStore(
		&domain.Account{ID: 1, WalletAddress: "0xreferrer", ReferralCode: codePtr("AB3456CD")},
		&domain.Account{ID: 2, WalletAddress: "0xnew1", ReferredBy: &ref},
		&domain.Account{ID: 3, WalletAddress: "0xnew2", ReferredBy: &ref},
	)
	svc := NewService(fs)

	stats, err := svc.ReferralStats(context.Background(), 1)
	if err != nil {
		t.Fatalf("ReferralStats: %v", err)
	}
	if stats.Code != "AB3456CD" {
		t.Errorf("code = %q, want AB3456CD", stats.Code)
	}
	if stats.Referred != 2 {
		t.Errorf("referred = %d, want 2", stats.Referred)
	}
	if stats.TotalEarned != 2*ReferralReward {
		t.Errorf("total earned = %d, want %d", stats.TotalEarned, 2*ReferralReward)
	}
}
