package enroll

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// Payment statuses as reported by the (untrusted) payment provider.
// The status is monotonic: once completed it can never fall back to pending,
// and failed is reachable from pending only.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// allowedFrom lists the statuses a record may currently hold for a
// transition into the keyed status to be legal. Same-status updates are
// no-op repeats, not conflicts.
var allowedFrom = map[string][]string{
	PaymentPending:   {PaymentPending},
	PaymentCompleted: {PaymentPending, PaymentCompleted},
	PaymentFailed:    {PaymentPending, PaymentFailed},
}

var (
	// errors
	ErrNotFound          = errors.New("enrollment not found")
	ErrDuplicate         = errors.New("student is already enrolled in this course")
	ErrInvalidTransition = errors.New("illegal payment status transition")
)

// Record is one (student, course) enrollment document.
type Record struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`
	// EnrollmentCode is the code redeemed at creation; empty for direct payment.
	EnrollmentCode string `json:"enrollment_code,omitempty"`
	PaymentStatus  string `json:"payment_status"`
	// Verified is set only by an explicit verification action, never inferred
	// from PaymentStatus.
	Verified   bool       `json:"verified"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"` // non-nil iff Verified
	EnrolledAt time.Time  `json:"enrolled_at"`           // UTC, immutable
}

// AccessDecision is the derived access verdict; never persisted, always
// recomputed from the current Record.
type AccessDecision struct {
	HasAccess  bool `json:"has_access"`
	IsEnrolled bool `json:"is_enrolled"`
}

// Decide maps a Record (or its absence) to an access verdict. Access is gated
// strictly on Verified so a payment-provider callback alone can never grant it.
func Decide(rec *Record) AccessDecision {
	if rec == nil {
		return AccessDecision{}
	}
	return AccessDecision{HasAccess: rec.Verified, IsEnrolled: true}
}

// Access is the dashboard-facing access projection.
type Access struct {
	HasAccess     bool   `json:"has_access"`
	IsEnrolled    bool   `json:"is_enrolled"`
	Verified      bool   `json:"verified"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

// UpdatePayment is the closed payment-status update payload; unknown statuses
// are rejected up front.
type UpdatePayment struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=pending completed failed"`
}

func (up *UpdatePayment) Validate() error {
	up.StudentID = core.CleanString(up.StudentID)
	up.CourseID = core.CleanString(up.CourseID)
	up.Status = core.CleanString(up.Status, true /* lower */)
	return core.Validate.Struct(up)
}

type QueryFilter struct {
	StudentID string `query:"student_id"`
	CourseID  string `query:"course_id"`
	Verified  *bool  `query:"verified"`
	// PendingReview selects records with a completed payment still awaiting
	// manual verification. Nothing auto-resolves these; they are surfaced for
	// a human.
	PendingReview bool `query:"pending_review"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.CourseID == "" && qf.Verified == nil && !qf.PendingReview
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.CourseID = core.CleanString(qf.CourseID)
}

// CourseStats are the coordinator-dashboard aggregates for one course.
type CourseStats struct {
	CourseID       string `json:"course_id"`
	Enrolled       int    `json:"enrolled"`
	Verified       int    `json:"verified"`
	PendingPayment int    `json:"pending_payment"`
	PendingReview  int    `json:"pending_review"`
}
