package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/enroll"
)

type enrollmentRepository struct {
	db *enrollmentTable
}

var _ enroll.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db.enrollments}
}

func (repo *enrollmentRepository) CreateRecord(_ context.Context, rec enroll.Record, _ ...core.DBExecutor) (enroll.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := enrollKey{studentID: rec.StudentID, courseID: rec.CourseID}
	if _, ok := repo.db.t[key]; ok {
		return enroll.Record{}, enroll.ErrDuplicate
	}
	r := rec
	repo.db.t[key] = &r
	return rec, nil
}

func (repo *enrollmentRepository) GetRecord(_ context.Context, studentID, courseID string) (enroll.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.t[enrollKey{studentID: studentID, courseID: courseID}]; ok {
		return *r, nil
	}
	return enroll.Record{}, enroll.ErrNotFound
}

func (repo *enrollmentRepository) UpdatePaymentStatus(_ context.Context, studentID, courseID, status string, allowedFrom []string) (enroll.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	r, ok := repo.db.t[enrollKey{studentID: studentID, courseID: courseID}]
	if !ok {
		return enroll.Record{}, enroll.ErrNotFound
	}
	var legal bool
	for _, from := range allowedFrom {
		if r.PaymentStatus == from {
			legal = true
			break
		}
	}
	if !legal {
		return enroll.Record{}, enroll.ErrInvalidTransition
	}
	r.PaymentStatus = status
	return *r, nil
}

func (repo *enrollmentRepository) VerifyRecord(_ context.Context, studentID, courseID string, at time.Time) (enroll.Record, bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	r, ok := repo.db.t[enrollKey{studentID: studentID, courseID: courseID}]
	if !ok {
		return enroll.Record{}, false, enroll.ErrNotFound
	}
	if r.Verified {
		return *r, false, nil
	}
	r.Verified = true
	verifiedAt := at
	r.VerifiedAt = &verifiedAt
	return *r, true, nil
}

func (repo *enrollmentRepository) ResetRecord(_ context.Context, studentID, courseID string, _ ...core.DBExecutor) (enroll.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	r, ok := repo.db.t[enrollKey{studentID: studentID, courseID: courseID}]
	if !ok {
		return enroll.Record{}, enroll.ErrNotFound
	}
	r.Verified = false
	r.VerifiedAt = nil
	r.PaymentStatus = enroll.PaymentPending
	return *r, nil
}

func (repo *enrollmentRepository) QueryRecords(_ context.Context, filter enroll.QueryFilter) ([]enroll.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]enroll.Record, 0, len(repo.db.t))
	for _, r := range repo.db.t {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && r.CourseID != filter.CourseID {
			continue
		}
		if filter.Verified != nil && r.Verified != *filter.Verified {
			continue
		}
		if filter.PendingReview && !(r.PaymentStatus == enroll.PaymentCompleted && !r.Verified) {
			continue
		}
		res = append(res, *r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].EnrolledAt.After(res[j].EnrolledAt) })
	return res, nil
}

func (repo *enrollmentRepository) GetCourseStats(_ context.Context, courseID string) (enroll.CourseStats, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	stats := enroll.CourseStats{CourseID: courseID}
	for _, r := range repo.db.t {
		if r.CourseID != courseID {
			continue
		}
		stats.Enrolled++
		if r.Verified {
			stats.Verified++
		}
		if r.PaymentStatus == enroll.PaymentPending {
			stats.PendingPayment++
		}
		if r.PaymentStatus == enroll.PaymentCompleted && !r.Verified {
			stats.PendingReview++
		}
	}
	return stats, nil
}
