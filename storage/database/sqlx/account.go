package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

const accountCols = "id, name, email, roles, suspended, created_at, updated_at"

type accountRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Email     string         `db:"email"`
	Roles     pq.StringArray `db:"roles"`
	Suspended bool           `db:"suspended"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r accountRow) account() account.Account {
	return account.Account{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Roles:     r.Roles,
		Suspended: r.Suspended,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r *accountRow) scan(row *sql.Row) error {
	return row.Scan(&r.ID, &r.Name, &r.Email, &r.Roles, &r.Suspended, &r.CreatedAt, &r.UpdatedAt)
}

type accountRepository struct {
	db *sqlx.DB
}

var _ account.Repository = (*accountRepository)(nil)

func NewAccountRepository(db *sqlx.DB) *accountRepository {
	return &accountRepository{db: db}
}

func (repo accountRepository) getExec(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return repo.db
}

func (repo accountRepository) UpsertAccount(ctx context.Context, acct account.Account, exec ...core.DBExecutor) (account.Account, error) {
	const q = `
		INSERT INTO account (id, name, email, roles, suspended, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, roles = EXCLUDED.roles, updated_at = EXCLUDED.updated_at
		RETURNING ` + accountCols
	var r accountRow
	err := r.scan(repo.getExec(exec).QueryRowContext(
		ctx, q,
		acct.ID, acct.Name, acct.Email, pq.StringArray(acct.Roles), acct.Suspended,
		acct.CreatedAt.UTC(), acct.UpdatedAt.UTC(),
	))
	if err != nil {
		return account.Account{}, errors.Wrap(err, "upserting account")
	}
	return r.account(), nil
}

func (repo accountRepository) GetAccount(ctx context.Context, id string) (account.Account, error) {
	const q = "SELECT " + accountCols + " FROM account WHERE id = $1"
	var r accountRow
	if err := r.scan(repo.db.QueryRowContext(ctx, q, id)); err != nil {
		if err == sql.ErrNoRows {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, errors.Wrap(err, "getting account")
	}
	return r.account(), nil
}

func (repo accountRepository) SetSuspended(ctx context.Context, id string, suspended bool, exec ...core.DBExecutor) (account.Account, error) {
	const q = `
		UPDATE account
		SET suspended = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + accountCols
	var r accountRow
	err := r.scan(repo.getExec(exec).QueryRowContext(ctx, q, id, suspended, time.Now().UTC()))
	if err == sql.ErrNoRows {
		return account.Account{}, account.ErrNotFound
	}
	if err != nil {
		return account.Account{}, errors.Wrap(err, "updating account suspension")
	}
	return r.account(), nil
}

func (repo accountRepository) DeleteAccount(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM account WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting account")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return account.ErrNotFound
	}
	return nil
}
