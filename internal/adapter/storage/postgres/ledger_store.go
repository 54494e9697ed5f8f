package postgres

import (
	"context"
	"fmt"

	"glotrade-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// LedgerStore implements ports.LedgerStore. One commit is one transaction:
// the versioned wallet update, the entry inserts and the freeze changes.
type LedgerStore struct {
	transactor *Transactor
	wallets    *WalletRepo
	ledger     *LedgerRepo
	freezes    *FreezeRepo
}

// NewLedgerStore creates a LedgerStore over pool.
func NewLedgerStore(pool Pool) *LedgerStore {
	return &LedgerStore{
		transactor: NewTransactor(pool),
		wallets:    NewWalletRepo(pool),
		ledger:     NewLedgerRepo(pool),
		freezes:    NewFreezeRepo(pool),
	}
}

// Commit applies c atomically. Errors are classified onto the domain
// storage sentinels.
func (s *LedgerStore) Commit(ctx context.Context, c *domain.LedgerCommit) error {
	err := s.transactor.WithinTx(ctx, func(tx pgx.Tx) error {
		if err := s.wallets.UpdateVersioned(ctx, tx, c.Wallet, c.ExpectedVersion); err != nil {
			return err
		}
		for i := range c.Entries {
			if err := s.ledger.Insert(ctx, tx, &c.Entries[i]); err != nil {
				return err
			}
		}
		if c.Release != nil {
			if err := s.freezes.Release(ctx, tx, c.Release); err != nil {
				return err
			}
		}
		if c.NewFreeze != nil {
			if err := s.freezes.Insert(ctx, tx, c.NewFreeze); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return classify(fmt.Errorf("commit wallet %s: %w", c.Wallet.ID, err))
	}
	return nil
}
