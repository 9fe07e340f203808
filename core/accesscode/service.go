package accesscode

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/audit"
	"github.com/trezcool/darasa/core/notif"
)

type (
	Repository interface {
		CreateCode(ctx context.Context, code AccessCode, exec ...core.DBExecutor) (AccessCode, error)
		GetCode(ctx context.Context, code string) (AccessCode, error)
		// RedeemCode flips an active code to redeemed, stamping redeemedBy/At.
		// The transition is compare-and-set on status=active: under concurrent
		// redemptions exactly one caller wins, the rest get ErrAlreadyUsed.
		RedeemCode(ctx context.Context, code, studentID string, at time.Time) (AccessCode, error)
		// RevokeCode flips an active code to revoked; ErrAlreadyUsed otherwise.
		RevokeCode(ctx context.Context, code string, exec ...core.DBExecutor) (AccessCode, error)
		QueryCodes(ctx context.Context, filter QueryFilter) ([]AccessCode, error)
	}

	ServiceInterface interface {
		Issue(ctx context.Context, actor account.Actor, in IssueCode) (AccessCode, error)
		Redeem(ctx context.Context, code, studentID string) (Redemption, error)
		Revoke(ctx context.Context, actor account.Actor, code string) (AccessCode, error)
		Query(ctx context.Context, actor account.Actor, filter QueryFilter) ([]AccessCode, error)
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

// Issue creates a single-use code for a course. The code row and its
// generate_code audit entry commit in one transaction: neither exists
// without the other.
func (svc *Service) Issue(ctx context.Context, actor account.Actor, in IssueCode) (AccessCode, error) {
	if !actor.IsAdmin() {
		return AccessCode{}, core.ErrPermissionDenied
	}
	if err := in.Validate(); err != nil {
		return AccessCode{}, err
	}

	token, err := MintCode()
	if err != nil {
		return AccessCode{}, errors.Wrap(err, "minting code")
	}
	code := AccessCode{
		Code:      token,
		CourseID:  in.CourseID,
		IssuedBy:  actor.ID,
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: in.ExpiresAt,
		Status:    StatusActive,
	}

	var entry audit.Entry
	err = svc.db.Transact(ctx, func(tx core.DBExecutor) error {
		var err error
		if code, err = svc.repo.CreateCode(ctx, code, tx); err != nil {
			return errors.Wrap(err, "creating code")
		}
		entry, err = svc.auditSvc.Append(ctx, audit.EntryInput{
			AdminID:    actor.ID,
			AdminName:  actor.Name,
			Action:     audit.ActionGenerateCode,
			TargetType: "access_code",
			TargetID:   code.Code,
			Details:    fmt.Sprintf("issued access code for course %s", code.CourseID),
		}, tx)
		return err
	})
	if err != nil {
		return AccessCode{}, err
	}

	svc.broker.Publish(notif.Event{Topic: notif.TopicAccessCode, Action: "issued", CourseID: code.CourseID, Payload: code})
	svc.broker.Publish(notif.Event{Topic: notif.TopicAudit, Action: entry.Action, Payload: entry})
	return code, nil
}

// Redeem converts a code into the right to enroll in its course.
// Exactly-once: concurrent redemptions of the same code yield one success,
// the others fail with ErrAlreadyUsed.
func (svc *Service) Redeem(ctx context.Context, code, studentID string) (Redemption, error) {
	code = core.CleanString(code)
	if code == "" || studentID == "" {
		return Redemption{}, core.NewValidationError(errors.New("code and student are required"))
	}

	now := time.Now().UTC()
	cur, err := svc.repo.GetCode(ctx, code)
	if err != nil {
		return Redemption{}, err
	}
	if cur.Expired(now) {
		return Redemption{}, ErrExpired
	}

	redeemed, err := svc.repo.RedeemCode(ctx, code, studentID, now)
	if err != nil {
		return Redemption{}, err
	}

	svc.broker.Publish(notif.Event{
		Topic:     notif.TopicAccessCode,
		Action:    "redeemed",
		StudentID: studentID,
		CourseID:  redeemed.CourseID,
		Payload:   redeemed,
	})
	return Redemption{Code: redeemed, CourseID: redeemed.CourseID}, nil
}

// Revoke terminates an active code. Terminal codes (redeemed, revoked or past
// expiry) cannot be revoked.
func (svc *Service) Revoke(ctx context.Context, actor account.Actor, code string) (AccessCode, error) {
	if !actor.IsAdmin() {
		return AccessCode{}, core.ErrPermissionDenied
	}
	code = core.CleanString(code)

	cur, err := svc.repo.GetCode(ctx, code)
	if err != nil {
		return AccessCode{}, err
	}
	if cur.Expired(time.Now().UTC()) {
		return AccessCode{}, ErrExpired
	}

	var revoked AccessCode
	var entry audit.Entry
	err = svc.db.Transact(ctx, func(tx core.DBExecutor) error {
		var err error
		if revoked, err = svc.repo.RevokeCode(ctx, code, tx); err != nil {
			return err
		}
		entry, err = svc.auditSvc.Append(ctx, audit.EntryInput{
			AdminID:    actor.ID,
			AdminName:  actor.Name,
			Action:     audit.ActionRevokeCode,
			TargetType: "access_code",
			TargetID:   revoked.Code,
			Details:    fmt.Sprintf("revoked access code for course %s", revoked.CourseID),
		}, tx)
		return err
	})
	if err != nil {
		return AccessCode{}, err
	}

	svc.broker.Publish(notif.Event{Topic: notif.TopicAccessCode, Action: "revoked", CourseID: revoked.CourseID, Payload: revoked})
	svc.broker.Publish(notif.Event{Topic: notif.TopicAudit, Action: entry.Action, Payload: entry})
	return revoked, nil
}

func (svc *Service) Query(ctx context.Context, actor account.Actor, filter QueryFilter) ([]AccessCode, error) {
	if !actor.IsStaff() {
		return nil, core.ErrPermissionDenied
	}
	filter.Clean()
	return svc.repo.QueryCodes(ctx, filter)
}
