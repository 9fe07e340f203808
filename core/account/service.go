package account

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/audit"
	"github.com/trezcool/darasa/core/notif"
)

var ErrNotFound = errors.New("account not found")

type (
	Repository interface {
		// UpsertAccount creates or refreshes the identity-provider projection.
		UpsertAccount(ctx context.Context, acct Account, exec ...core.DBExecutor) (Account, error)
		GetAccount(ctx context.Context, id string) (Account, error)
		SetSuspended(ctx context.Context, id string, suspended bool, exec ...core.DBExecutor) (Account, error)
		DeleteAccount(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		Upsert(ctx context.Context, acct Account) (Account, error)
		Get(ctx context.Context, id string) (Account, error)
		Suspend(ctx context.Context, actor Actor, id string) (Account, error)
		Unsuspend(ctx context.Context, actor Actor, id string) (Account, error)
		Delete(ctx context.Context, actor Actor, id string) error
	}

	Service struct {
		db       core.Atomic
		repo     Repository
		auditSvc audit.ServiceInterface
		broker   *notif.Broker
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(db core.Atomic, repo Repository, auditSvc audit.ServiceInterface, broker *notif.Broker) *Service {
	return &Service{db: db, repo: repo, auditSvc: auditSvc, broker: broker}
}

func (svc *Service) Upsert(ctx context.Context, acct Account) (Account, error) {
	now := time.Now().UTC()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now
	acct.Email = core.CleanString(acct.Email, true /* lower */)
	return svc.repo.UpsertAccount(ctx, acct)
}

func (svc *Service) Get(ctx context.Context, id string) (Account, error) {
	return svc.repo.GetAccount(ctx, core.CleanString(id))
}

// Suspend locks the account out of the marketplace. The flip and its
// suspend_account audit entry commit together.
func (svc *Service) Suspend(ctx context.Context, actor Actor, id string) (Account, error) {
	return svc.setSuspended(ctx, actor, id, true)
}

func (svc *Service) Unsuspend(ctx context.Context, actor Actor, id string) (Account, error) {
	return svc.setSuspended(ctx, actor, id, false)
}

func (svc *Service) setSuspended(ctx context.Context, actor Actor, id string, suspended bool) (Account, error) {
	if !actor.IsAdmin() {
		return Account{}, core.ErrPermissionDenied
	}
	id = core.CleanString(id)

	action := audit.ActionSuspendAccount
	details := "suspended account"
	if !suspended {
		action = audit.ActionUnsuspendAccount
		details = "unsuspended account"
	}

	var acct Account
	var entry audit.Entry
	err := svc.db.Transact(ctx, func(tx core.DBExecutor) error {
		var err error
		if acct, err = svc.repo.SetSuspended(ctx, id, suspended, tx); err != nil {
			return err
		}
		entry, err = svc.auditSvc.Append(ctx, audit.EntryInput{
			AdminID:    actor.ID,
			AdminName:  actor.Name,
			Action:     action,
			TargetType: "account",
			TargetID:   id,
			Details:    fmt.Sprintf("%s %s", details, acct.Name),
		}, tx)
		return err
	})
	if err != nil {
		return Account{}, err
	}

	svc.broker.Publish(notif.Event{Topic: notif.TopicAudit, Action: entry.Action, StudentID: id, Payload: entry})
	return acct, nil
}

// Delete removes the account projection; the delete_account audit entry
// commits with it.
func (svc *Service) Delete(ctx context.Context, actor Actor, id string) error {
	if !actor.IsAdmin() {
		return core.ErrPermissionDenied
	}
	id = core.CleanString(id)

	acct, err := svc.repo.GetAccount(ctx, id)
	if err != nil {
		return err
	}

	var entry audit.Entry
	err = svc.db.Transact(ctx, func(tx core.DBExecutor) error {
		if err := svc.repo.DeleteAccount(ctx, id, tx); err != nil {
			return err
		}
		entry, err = svc.auditSvc.Append(ctx, audit.EntryInput{
			AdminID:    actor.ID,
			AdminName:  actor.Name,
			Action:     audit.ActionDeleteAccount,
			TargetType: "account",
			TargetID:   id,
			Details:    fmt.Sprintf("deleted account %s", acct.Name),
		}, tx)
		return err
	})
	if err != nil {
		return err
	}

	svc.broker.Publish(notif.Event{Topic: notif.TopicAudit, Action: entry.Action, StudentID: id, Payload: entry})
	return nil
}
