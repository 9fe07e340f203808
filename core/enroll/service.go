package enroll

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/accesscode"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/audit"
	"github.com/trezcool/darasa/core/notif"
)

type (
	Repository interface {
		// CreateRecord persists a new Record; ErrDuplicate when the
		// (student, course) pair already exists.
		CreateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		GetRecord(ctx context.Context, studentID, courseID string) (Record, error)
		// UpdatePaymentStatus sets the payment status iff the current one is in
		// allowedFrom (compare-and-set); ErrInvalidTransition otherwise.
		UpdatePaymentStatus(ctx context.Context, studentID, courseID, status string, allowedFrom []string) (Record, error)
		// VerifyRecord stamps verified/verifiedAt iff not yet verified
		// (compare-and-set). The bool reports whether this call did the flip.
		VerifyRecord(ctx context.Context, studentID, courseID string, at time.Time) (Record, bool, error)
		// ResetRecord clears verified/verifiedAt and puts the payment back to pending.
		ResetRecord(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (Record, error)
		QueryRecords(ctx context.Context, filter QueryFilter) ([]Record, error)
		GetCourseStats(ctx context.Context, courseID string) (CourseStats, error)
	}

	ServiceInterface interface {
		EnrollWithCode(ctx context.Context, studentID, code string) (Record, error)
		EnrollDirect(ctx context.Context, studentID, courseID string) (Record, error)
		UpdatePaymentStatus(ctx context.Context, in UpdatePayment) (Record, error)
		Verify(ctx context.Context, actor account.Actor, studentID, courseID string) (Record, error)
		ResetAccount(ctx context.Context, actor account.Actor, studentID, courseID string) (Record, error)
		Get(ctx context.Context, studentID, courseID string) (Record, error)
		GetAccess(ctx context.Context, studentID, courseID string) (Access, error)
		Query(ctx context.Context, actor account.Actor, filter QueryFilter) ([]Record, error)
		Stats(ctx context.Context, actor account.Actor, courseID string) (CourseStats, error)
	}

	Service struct {
		db       core.Atomic
		repo     Repository
		codeSvc  accesscode.ServiceInterface
		acctSvc  account.ServiceInterface
		auditSvc audit.ServiceInterface
		mailSvc  core.EmailService
		broker   *notif.Broker
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	db core.Atomic,
	repo Repository,
	codeSvc accesscode.ServiceInterface,
	acctSvc account.ServiceInterface,
	auditSvc audit.ServiceInterface,
	mailSvc core.EmailService,
	broker *notif.Broker,
) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		codeSvc:  codeSvc,
		acctSvc:  acctSvc,
		auditSvc: auditSvc,
		mailSvc:  mailSvc,
		broker:   broker,
	}
}

// EnrollWithCode redeems the code and creates the enrollment for its course.
// A duplicate enrollment after a successful redemption leaves the code redeemed.
func (svc *Service) EnrollWithCode(ctx context.Context, studentID, code string) (Record, error) {
	studentID = core.CleanString(studentID)

	red, err := svc.codeSvc.Redeem(ctx, code, studentID)
	if err != nil {
		return Record{}, err
	}
	return svc.create(ctx, Record{
		StudentID:      studentID,
		CourseID:       red.CourseID,
		EnrollmentCode: red.Code.Code,
		PaymentStatus:  PaymentPending,
	})
}

// EnrollDirect creates an enrollment backed by a direct payment; the record
// starts pending until the provider reports and a human verifies.
func (svc *Service) EnrollDirect(ctx context.Context, studentID, courseID string) (Record, error) {
	studentID = core.CleanString(studentID)
	courseID = core.CleanString(courseID)
	if studentID == "" || courseID == "" {
		return Record{}, core.NewValidationError(errors.New("student and course are required"))
	}
	return svc.create(ctx, Record{
		StudentID:     studentID,
		CourseID:      courseID,
		PaymentStatus: PaymentPending,
	})
}

func (svc *Service) create(ctx context.Context, rec Record) (Record, error) {
	rec.EnrolledAt = time.Now().UTC()

	created, err := svc.repo.CreateRecord(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	svc.publish("created", created)
	return created, nil
}

// UpdatePaymentStatus applies the provider-reported status. The transition is
// compare-and-set against the legal predecessor statuses; it never touches
// Verified.
func (svc *Service) UpdatePaymentStatus(ctx context.Context, in UpdatePayment) (Record, error) {
	if err := in.Validate(); err != nil {
		return Record{}, err
	}

	rec, err := svc.repo.UpdatePaymentStatus(ctx, in.StudentID, in.CourseID, in.Status, allowedFrom[in.Status])
	if err != nil {
		return Record{}, err
	}
	svc.publish("payment_updated", rec)
	return rec, nil
}

// Verify marks the enrollment verified, stamping VerifiedAt exactly once.
// Re-verifying is a no-op returning the existing record.
func (svc *Service) Verify(ctx context.Context, actor account.Actor, studentID, courseID string) (Record, error) {
	if !actor.IsStaff() {
		return Record{}, core.ErrPermissionDenied
	}

	rec, flipped, err := svc.repo.VerifyRecord(ctx, core.CleanString(studentID), core.CleanString(courseID), time.Now().UTC())
	if err != nil {
		return Record{}, err
	}
	if !flipped {
		return rec, nil
	}

	svc.publish("verified", rec)
	svc.notifyVerified(ctx, rec)
	return rec, nil
}

// notifyVerified emails the student that their course access is open.
// Best-effort: a missing account projection only skips the mail.
func (svc *Service) notifyVerified(ctx context.Context, rec Record) {
	if svc.mailSvc == nil || svc.acctSvc == nil {
		return
	}
	acct, err := svc.acctSvc.Get(ctx, rec.StudentID)
	if err != nil || acct.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: acct.Name, Address: acct.Email}},
		Subject: "Your enrollment has been verified",
		BodyStr: fmt.Sprintf(
			"Hi %s,\n\nYour enrollment in course %s has been verified. You now have full access to the course content.\n\n%s",
			acct.Name, rec.CourseID, core.Conf.FrontendBaseURL,
		),
	})
}

// ResetAccount clears verification and puts the payment back to pending, for
// disputed or fraudulent payments. The reset and its reset_account audit entry
// commit together.
func (svc *Service) ResetAccount(ctx context.Context, actor account.Actor, studentID, courseID string) (Record, error) {
	if !actor.IsStaff() {
		return Record{}, core.ErrPermissionDenied
	}
	studentID = core.CleanString(studentID)
	courseID = core.CleanString(courseID)

	var rec Record
	var entry audit.Entry
	err := svc.db.Transact(ctx, func(tx core.DBExecutor) error {
		var err error
		if rec, err = svc.repo.ResetRecord(ctx, studentID, courseID, tx); err != nil {
			return err
		}
		entry, err = svc.auditSvc.Append(ctx, audit.EntryInput{
			AdminID:    actor.ID,
			AdminName:  actor.Name,
			Action:     audit.ActionResetAccount,
			TargetType: "enrollment",
			TargetID:   studentID,
			Details:    fmt.Sprintf("reset enrollment of student %s in course %s", studentID, courseID),
		}, tx)
		return err
	})
	if err != nil {
		return Record{}, err
	}

	svc.publish("reset", rec)
	svc.broker.Publish(notif.Event{Topic: notif.TopicAudit, Action: entry.Action, Payload: entry})
	return rec, nil
}

func (svc *Service) Get(ctx context.Context, studentID, courseID string) (Record, error) {
	return svc.repo.GetRecord(ctx, core.CleanString(studentID), core.CleanString(courseID))
}

// GetAccess returns the read-only access projection for a pair; an absent
// record is not an error, just "no access, not enrolled".
func (svc *Service) GetAccess(ctx context.Context, studentID, courseID string) (Access, error) {
	rec, err := svc.Get(ctx, studentID, courseID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Access{}, nil
		}
		return Access{}, err
	}
	decision := Decide(&rec)
	return Access{
		HasAccess:     decision.HasAccess,
		IsEnrolled:    decision.IsEnrolled,
		Verified:      rec.Verified,
		PaymentStatus: rec.PaymentStatus,
	}, nil
}

func (svc *Service) Query(ctx context.Context, actor account.Actor, filter QueryFilter) ([]Record, error) {
	if !actor.IsStaff() {
		return nil, core.ErrPermissionDenied
	}
	filter.Clean()
	return svc.repo.QueryRecords(ctx, filter)
}

func (svc *Service) Stats(ctx context.Context, actor account.Actor, courseID string) (CourseStats, error) {
	if !actor.IsStaff() {
		return CourseStats{}, core.ErrPermissionDenied
	}
	return svc.repo.GetCourseStats(ctx, core.CleanString(courseID))
}

func (svc *Service) publish(action string, rec Record) {
	svc.broker.Publish(notif.Event{
		Topic:     notif.TopicEnrollment,
		Action:    action,
		StudentID: rec.StudentID,
		CourseID:  rec.CourseID,
		Payload:   rec,
	})
}
