package inmemdb

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

type accountRepository struct {
	db *accountTable
}

var _ account.Repository = (*accountRepository)(nil)

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db.accounts}
}

func (repo *accountRepository) UpsertAccount(_ context.Context, acct account.Account, _ ...core.DBExecutor) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if cur, ok := repo.db.t[acct.ID]; ok {
		acct.Suspended = cur.Suspended
		acct.CreatedAt = cur.CreatedAt
	}
	a := acct
	repo.db.t[acct.ID] = &a
	return acct, nil
}

func (repo *accountRepository) GetAccount(_ context.Context, id string) (account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.t[id]; ok {
		return *a, nil
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) SetSuspended(_ context.Context, id string, suspended bool, _ ...core.DBExecutor) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a, ok := repo.db.t[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	a.Suspended = suspended
	return *a, nil
}

func (repo *accountRepository) DeleteAccount(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t[id]; !ok {
		return account.ErrNotFound
	}
	delete(repo.db.t, id)
	return nil
}
