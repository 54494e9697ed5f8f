// Package memory is a process-local storage driver. It honours the same
// commit contract as the postgres driver and backs development runs and
// service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"glotrade-wallet/internal/core/domain"
	"glotrade-wallet/internal/core/ports"

	"github.com/google/uuid"
)

// Store holds every table behind one lock.
type Store struct {
	mu sync.RWMutex

	wallets     map[uuid.UUID]*domain.WalletAccount
	walletByKey map[domain.WalletKey]uuid.UUID

	entries     []domain.LedgerEntry
	entryByID   map[uuid.UUID]int
	entryByIdem map[string]int

	freezes map[uuid.UUID]*domain.FreezeRecord
	rewards map[domain.WalletKey]*domain.RewardState

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		wallets:     make(map[uuid.UUID]*domain.WalletAccount),
		walletByKey: make(map[domain.WalletKey]uuid.UUID),
		entryByID:   make(map[uuid.UUID]int),
		entryByIdem: make(map[string]int),
		freezes:     make(map[uuid.UUID]*domain.FreezeRecord),
		rewards:     make(map[domain.WalletKey]*domain.RewardState),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Wallets() *WalletRepo      { return &WalletRepo{s: s} }
func (s *Store) Ledger() *LedgerRepo       { return &LedgerRepo{s: s} }
func (s *Store) Freezes() *FreezeRepo      { return &FreezeRepo{s: s} }
func (s *Store) Rewards() *RewardStateRepo { return &RewardStateRepo{s: s} }

// Commit implements ports.LedgerStore.
func (s *Store) Commit(_ context.Context, c *domain.LedgerCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.wallets[c.Wallet.ID]
	if !ok {
		return fmt.Errorf("commit: wallet %s not found", c.Wallet.ID)
	}
	if current.Version != c.ExpectedVersion {
		return domain.ErrVersionConflict
	}

	seen := make(map[string]struct{}, len(c.Entries))
	for _, e := range c.Entries {
		if e.IdempotencyKey == nil {
			continue
		}
		if _, dup := s.entryByIdem[*e.IdempotencyKey]; dup {
			return domain.ErrDuplicateIdempotencyKey
		}
		if _, dup := seen[*e.IdempotencyKey]; dup {
			return domain.ErrDuplicateIdempotencyKey
		}
		seen[*e.IdempotencyKey] = struct{}{}
	}

	var released *domain.FreezeRecord
	if c.Release != nil {
		released, ok = s.freezes[c.Release.FreezeID]
		if !ok {
			return fmt.Errorf("commit: freeze %s not found", c.Release.FreezeID)
		}
		if !released.IsActive() {
			return domain.ErrFreezeAlreadyReleased
		}
	}

	w := *c.Wallet
	s.wallets[w.ID] = &w
	for _, e := range c.Entries {
		idx := len(s.entries)
		s.entries = append(s.entries, e)
		s.entryByID[e.ID] = idx
		if e.IdempotencyKey != nil {
			s.entryByIdem[*e.IdempotencyKey] = idx
		}
	}
	if released != nil {
		at := c.Release.ReleasedAt
		by := c.Release.ReleasedBy
		released.ReleasedAt = &at
		released.ReleasedBy = &by
	}
	if c.NewFreeze != nil {
		f := *c.NewFreeze
		s.freezes[f.ID] = &f
	}
	return nil
}

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct{ s *Store }

func (r *WalletRepo) GetOrCreate(_ context.Context, key domain.WalletKey) (*domain.WalletAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if id, ok := r.s.walletByKey[key]; ok {
		w := *r.s.wallets[id]
		return &w, nil
	}
	w := domain.NewWalletAccount(key, r.s.now())
	r.s.wallets[w.ID] = w
	r.s.walletByKey[key] = w.ID
	out := *w
	return &out, nil
}

func (r *WalletRepo) GetByKey(_ context.Context, key domain.WalletKey) (*domain.WalletAccount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.walletByKey[key]
	if !ok {
		return nil, nil
	}
	w := *r.s.wallets[id]
	return &w, nil
}

func (r *WalletRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.WalletAccount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	w, ok := r.s.wallets[id]
	if !ok {
		return nil, nil
	}
	out := *w
	return &out, nil
}

// Archive stamps archived_at once and bumps the version so in-flight
// commits against the old version fail.
func (r *WalletRepo) Archive(_ context.Context, key domain.WalletKey, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.walletByKey[key]
	if !ok {
		return false, nil
	}
	w := r.s.wallets[id]
	if w.ArchivedAt == nil {
		w.ArchivedAt = &at
		w.UpdatedAt = at
		w.Version++
	}
	return true, nil
}

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct{ s *Store }

func (r *LedgerRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	idx, ok := r.s.entryByID[id]
	if !ok {
		return nil, nil
	}
	e := r.s.entries[idx]
	return &e, nil
}

func (r *LedgerRepo) GetByIdempotencyKey(_ context.Context, key string) (*domain.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	idx, ok := r.s.entryByIdem[key]
	if !ok {
		return nil, nil
	}
	e := r.s.entries[idx]
	return &e, nil
}

// List returns matching entries in reverse commit order.
func (r *LedgerRepo) List(_ context.Context, p ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []domain.LedgerEntry
	for _, e := range r.s.entries {
		if e.WalletID != p.WalletID {
			continue
		}
		if p.Category != nil && e.Category != *p.Category {
			continue
		}
		if p.From != nil && e.CreatedAt.Before(*p.From) {
			continue
		}
		if p.To != nil && !e.CreatedAt.Before(*p.To) {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].WalletVersion != matched[j].WalletVersion {
			return matched[i].WalletVersion > matched[j].WalletVersion
		}
		return matched[i].Position > matched[j].Position
	})

	total := int64(len(matched))
	page := max(p.Page, 1)
	offset := (page - 1) * p.PageSize
	if p.PageSize <= 0 || offset >= len(matched) {
		if p.PageSize <= 0 {
			return matched, total, nil
		}
		return []domain.LedgerEntry{}, total, nil
	}
	end := min(offset+p.PageSize, len(matched))
	return matched[offset:end], total, nil
}

func (r *LedgerRepo) Totals(_ context.Context, walletID uuid.UUID) (*domain.LedgerTotals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t := &domain.LedgerTotals{}
	for _, e := range r.s.entries {
		if e.WalletID != walletID {
			continue
		}
		t.Amount += e.Amount
		t.FrozenDelta += e.FrozenDelta
		t.CreditDelta += e.CreditDelta
		t.Entries++
	}
	return t, nil
}

// FreezeRepo implements ports.FreezeRepository.
type FreezeRepo struct{ s *Store }

func (r *FreezeRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.FreezeRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	f, ok := r.s.freezes[id]
	if !ok {
		return nil, nil
	}
	out := *f
	return &out, nil
}

// ListByWallet returns the wallet's freezes newest first.
func (r *FreezeRepo) ListByWallet(_ context.Context, walletID uuid.UUID) ([]domain.FreezeRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []domain.FreezeRecord{}
	for _, f := range r.s.freezes {
		if f.WalletID == walletID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.After(out[j].PlacedAt) })
	return out, nil
}

func (r *FreezeRepo) SumActive(_ context.Context, walletID uuid.UUID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var sum int64
	for _, f := range r.s.freezes {
		if f.WalletID == walletID && f.IsActive() {
			sum += f.Amount
		}
	}
	return sum, nil
}

// RewardStateRepo implements ports.RewardStateRepository.
type RewardStateRepo struct{ s *Store }

func (r *RewardStateRepo) Enroll(_ context.Context, key domain.WalletKey, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.rewards[key]; ok {
		return nil
	}
	r.s.rewards[key] = &domain.RewardState{
		OwnerID:   key.OwnerID,
		Currency:  key.Currency,
		CreatedAt: at,
		UpdatedAt: at,
	}
	return nil
}

func (r *RewardStateRepo) Get(_ context.Context, key domain.WalletKey) (*domain.RewardState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, ok := r.s.rewards[key]
	if !ok {
		return nil, nil
	}
	out := *st
	return &out, nil
}

// ListEnrolled returns every state ordered by owner then currency.
func (r *RewardStateRepo) ListEnrolled(_ context.Context) ([]domain.RewardState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.RewardState, 0, len(r.s.rewards))
	for _, st := range r.s.rewards {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OwnerID != out[j].OwnerID {
			return out[i].OwnerID < out[j].OwnerID
		}
		return out[i].Currency < out[j].Currency
	})
	return out, nil
}

func (r *RewardStateRepo) Save(_ context.Context, st *domain.RewardState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.rewards[st.Key()]; !ok {
		return fmt.Errorf("save reward state: %s not enrolled", st.Key())
	}
	out := *st
	r.s.rewards[st.Key()] = &out
	return nil
}

var (
	_ ports.LedgerStore           = (*Store)(nil)
	_ ports.WalletRepository      = (*WalletRepo)(nil)
	_ ports.LedgerRepository      = (*LedgerRepo)(nil)
	_ ports.FreezeRepository      = (*FreezeRepo)(nil)
	_ ports.RewardStateRepository = (*RewardStateRepo)(nil)
)
