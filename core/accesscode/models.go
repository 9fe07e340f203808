package accesscode

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// Code statuses. A code transitions active->redeemed exactly once;
// redeemed, revoked and expired are terminal.
const (
	StatusActive   = "active"
	StatusRedeemed = "redeemed"
	StatusRevoked  = "revoked"
	StatusExpired  = "expired"
)

var (
	// errors
	ErrNotFound    = errors.New("access code not found")
	ErrAlreadyUsed = errors.New("access code is no longer active")
	ErrExpired     = errors.New("access code has expired")
)

// AccessCode is a single-use enrollment code for one course.
type AccessCode struct {
	Code       string     `json:"code"`
	CourseID   string     `json:"course_id"`
	IssuedBy   string     `json:"issued_by"`
	IssuedAt   time.Time  `json:"issued_at"` // UTC
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	RedeemedBy string     `json:"redeemed_by,omitempty"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
	Status     string     `json:"status"`
}

// Expired reports whether the code's expiry has passed at t.
func (c AccessCode) Expired(t time.Time) bool {
	return c.ExpiresAt != nil && t.After(*c.ExpiresAt)
}

// EffectiveStatus folds a passed expiry into the stored status for display.
func (c AccessCode) EffectiveStatus(t time.Time) string {
	if c.Status == StatusActive && c.Expired(t) {
		return StatusExpired
	}
	return c.Status
}

// IssueCode contains information needed to issue a new AccessCode.
type IssueCode struct {
	CourseID  string     `json:"course_id" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (ic *IssueCode) Validate() error {
	ic.CourseID = core.CleanString(ic.CourseID)
	return core.Validate.Struct(ic)
}

// Redemption is the outcome of a successful redeem: the course the student
// may now enroll in.
type Redemption struct {
	Code     AccessCode `json:"code"`
	CourseID string     `json:"course_id"`
}

type QueryFilter struct {
	CourseID string `query:"course_id"`
	Status   string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.CourseID == "" && qf.Status == ""
}

func (qf *QueryFilter) Clean() {
	qf.CourseID = core.CleanString(qf.CourseID)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}
