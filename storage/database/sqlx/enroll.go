package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/enroll"
)

const enrollmentCols = "student_id, course_id, enrollment_code, payment_status, verified, verified_at, enrolled_at"

type enrollmentRow struct {
	StudentID      string      `db:"student_id"`
	CourseID       string      `db:"course_id"`
	EnrollmentCode null.String `db:"enrollment_code"`
	PaymentStatus  string      `db:"payment_status"`
	Verified       bool        `db:"verified"`
	VerifiedAt     null.Time   `db:"verified_at"`
	EnrolledAt     time.Time   `db:"enrolled_at"`
}

func (r enrollmentRow) record() enroll.Record {
	return enroll.Record{
		StudentID:      r.StudentID,
		CourseID:       r.CourseID,
		EnrollmentCode: r.EnrollmentCode.String,
		PaymentStatus:  r.PaymentStatus,
		Verified:       r.Verified,
		VerifiedAt:     r.VerifiedAt.Ptr(),
		EnrolledAt:     r.EnrolledAt,
	}
}

func (r *enrollmentRow) scan(row *sql.Row) error {
	return row.Scan(&r.StudentID, &r.CourseID, &r.EnrollmentCode, &r.PaymentStatus, &r.Verified, &r.VerifiedAt, &r.EnrolledAt)
}

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enroll.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo enrollmentRepository) getExec(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return repo.db
}

func (repo enrollmentRepository) CreateRecord(ctx context.Context, rec enroll.Record, exec ...core.DBExecutor) (enroll.Record, error) {
	const q = `
		INSERT INTO enrollment (student_id, course_id, enrollment_code, payment_status, verified, enrolled_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)`
	_, err := repo.getExec(exec).ExecContext(
		ctx, q,
		rec.StudentID, rec.CourseID, null.NewString(rec.EnrollmentCode, rec.EnrollmentCode != ""),
		rec.PaymentStatus, rec.EnrolledAt.UTC(),
	)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return enroll.Record{}, enroll.ErrDuplicate
		}
		return enroll.Record{}, errors.Wrap(err, "inserting enrollment")
	}
	return rec, nil
}

func (repo enrollmentRepository) GetRecord(ctx context.Context, studentID, courseID string) (enroll.Record, error) {
	const q = "SELECT " + enrollmentCols + " FROM enrollment WHERE student_id = $1 AND course_id = $2"
	var r enrollmentRow
	if err := r.scan(repo.db.QueryRowContext(ctx, q, studentID, courseID)); err != nil {
		if err == sql.ErrNoRows {
			return enroll.Record{}, enroll.ErrNotFound
		}
		return enroll.Record{}, errors.Wrap(err, "getting enrollment")
	}
	return r.record(), nil
}

// UpdatePaymentStatus is compare-and-set on the legal predecessor statuses so
// a late or replayed provider callback can never roll a completed payment back.
func (repo enrollmentRepository) UpdatePaymentStatus(ctx context.Context, studentID, courseID, status string, allowedFrom []string) (enroll.Record, error) {
	const q = `
		UPDATE enrollment
		SET payment_status = $3
		WHERE student_id = $1 AND course_id = $2 AND payment_status = ANY($4)
		RETURNING ` + enrollmentCols
	var r enrollmentRow
	err := r.scan(repo.db.QueryRowContext(ctx, q, studentID, courseID, status, pq.Array(allowedFrom)))
	if err == sql.ErrNoRows {
		if _, getErr := repo.GetRecord(ctx, studentID, courseID); getErr != nil {
			return enroll.Record{}, getErr
		}
		return enroll.Record{}, enroll.ErrInvalidTransition
	}
	if err != nil {
		return enroll.Record{}, errors.Wrap(err, "updating payment status")
	}
	return r.record(), nil
}

// VerifyRecord is compare-and-set on NOT verified: verifiedAt is stamped by
// whichever caller flips the flag first, every later call is a no-op.
func (repo enrollmentRepository) VerifyRecord(ctx context.Context, studentID, courseID string, at time.Time) (enroll.Record, bool, error) {
	const q = `
		UPDATE enrollment
		SET verified = TRUE, verified_at = $3
		WHERE student_id = $1 AND course_id = $2 AND NOT verified
		RETURNING ` + enrollmentCols
	var r enrollmentRow
	err := r.scan(repo.db.QueryRowContext(ctx, q, studentID, courseID, at.UTC()))
	if err == sql.ErrNoRows {
		rec, getErr := repo.GetRecord(ctx, studentID, courseID)
		if getErr != nil {
			return enroll.Record{}, false, getErr
		}
		return rec, false, nil // already verified
	}
	if err != nil {
		return enroll.Record{}, false, errors.Wrap(err, "verifying enrollment")
	}
	return r.record(), true, nil
}

func (repo enrollmentRepository) ResetRecord(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (enroll.Record, error) {
	const q = `
		UPDATE enrollment
		SET verified = FALSE, verified_at = NULL, payment_status = $3
		WHERE student_id = $1 AND course_id = $2
		RETURNING ` + enrollmentCols
	var r enrollmentRow
	err := r.scan(repo.getExec(exec).QueryRowContext(ctx, q, studentID, courseID, enroll.PaymentPending))
	if err == sql.ErrNoRows {
		return enroll.Record{}, enroll.ErrNotFound
	}
	if err != nil {
		return enroll.Record{}, errors.Wrap(err, "resetting enrollment")
	}
	return r.record(), nil
}

func (repo enrollmentRepository) QueryRecords(ctx context.Context, filter enroll.QueryFilter) ([]enroll.Record, error) {
	q := "SELECT " + enrollmentCols + " FROM enrollment"
	var conds []string
	var args []interface{}

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conds = append(conds, "student_id = $"+strconv.Itoa(len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conds = append(conds, "course_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Verified != nil {
		args = append(args, *filter.Verified)
		conds = append(conds, "verified = $"+strconv.Itoa(len(args)))
	}
	if filter.PendingReview {
		conds = append(conds, "payment_status = '"+enroll.PaymentCompleted+"' AND NOT verified")
	}
	for i, c := range conds {
		if i == 0 {
			q += " WHERE " + c
		} else {
			q += " AND " + c
		}
	}
	q += " ORDER BY enrolled_at DESC"

	var rows []enrollmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	recs := make([]enroll.Record, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.record())
	}
	return recs, nil
}

func (repo enrollmentRepository) GetCourseStats(ctx context.Context, courseID string) (enroll.CourseStats, error) {
	const q = `
		SELECT COUNT(*)                                                        AS enrolled,
		       COUNT(*) FILTER (WHERE verified)                                AS verified,
		       COUNT(*) FILTER (WHERE payment_status = 'pending')              AS pending_payment,
		       COUNT(*) FILTER (WHERE payment_status = 'completed' AND NOT verified) AS pending_review
		FROM enrollment
		WHERE course_id = $1`
	stats := enroll.CourseStats{CourseID: courseID}
	err := repo.db.QueryRowContext(ctx, q, courseID).
		Scan(&stats.Enrolled, &stats.Verified, &stats.PendingPayment, &stats.PendingReview)
	if err != nil {
		return enroll.CourseStats{}, errors.Wrap(err, "getting course stats")
	}
	return stats, nil
}
