package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/accesscode"
)

const accessCodeCols = "code, course_id, issued_by, issued_at, expires_at, redeemed_by, redeemed_at, status"

type accessCodeRow struct {
	Code       string      `db:"code"`
	CourseID   string      `db:"course_id"`
	IssuedBy   string      `db:"issued_by"`
	IssuedAt   time.Time   `db:"issued_at"`
	ExpiresAt  null.Time   `db:"expires_at"`
	RedeemedBy null.String `db:"redeemed_by"`
	RedeemedAt null.Time   `db:"redeemed_at"`
	Status     string      `db:"status"`
}

func (r accessCodeRow) code() accesscode.AccessCode {
	return accesscode.AccessCode{
		Code:       r.Code,
		CourseID:   r.CourseID,
		IssuedBy:   r.IssuedBy,
		IssuedAt:   r.IssuedAt,
		ExpiresAt:  r.ExpiresAt.Ptr(),
		RedeemedBy: r.RedeemedBy.String,
		RedeemedAt: r.RedeemedAt.Ptr(),
		Status:     r.Status,
	}
}

func (r *accessCodeRow) scan(row *sql.Row) error {
	return row.Scan(&r.Code, &r.CourseID, &r.IssuedBy, &r.IssuedAt, &r.ExpiresAt, &r.RedeemedBy, &r.RedeemedAt, &r.Status)
}

type accessCodeRepository struct {
	db *sqlx.DB
}

var _ accesscode.Repository = (*accessCodeRepository)(nil)

func NewAccessCodeRepository(db *sqlx.DB) *accessCodeRepository {
	return &accessCodeRepository{db: db}
}

func (repo accessCodeRepository) getExec(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return repo.db
}

func (repo accessCodeRepository) CreateCode(ctx context.Context, code accesscode.AccessCode, exec ...core.DBExecutor) (accesscode.AccessCode, error) {
	const q = `
		INSERT INTO access_code (code, course_id, issued_by, issued_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.getExec(exec).ExecContext(
		ctx, q,
		code.Code, code.CourseID, code.IssuedBy, code.IssuedAt.UTC(), null.TimeFromPtr(code.ExpiresAt), code.Status,
	)
	if err != nil {
		return accesscode.AccessCode{}, errors.Wrap(err, "inserting access code")
	}
	return code, nil
}

func (repo accessCodeRepository) GetCode(ctx context.Context, code string) (accesscode.AccessCode, error) {
	const q = "SELECT " + accessCodeCols + " FROM access_code WHERE code = $1"
	var r accessCodeRow
	if err := r.scan(repo.db.QueryRowContext(ctx, q, code)); err != nil {
		if err == sql.ErrNoRows {
			return accesscode.AccessCode{}, accesscode.ErrNotFound
		}
		return accesscode.AccessCode{}, errors.Wrap(err, "getting access code")
	}
	return r.code(), nil
}

// RedeemCode is compare-and-set on status=active: under concurrent redemption
// attempts exactly one UPDATE matches, the rest fall through to ErrAlreadyUsed.
func (repo accessCodeRepository) RedeemCode(ctx context.Context, code, studentID string, at time.Time) (accesscode.AccessCode, error) {
	const q = `
		UPDATE access_code
		SET status = $3, redeemed_by = $4, redeemed_at = $5
		WHERE code = $1 AND status = $2
		RETURNING ` + accessCodeCols
	var r accessCodeRow
	err := r.scan(repo.db.QueryRowContext(ctx, q, code, accesscode.StatusActive, accesscode.StatusRedeemed, studentID, at.UTC()))
	if err == sql.ErrNoRows {
		if _, getErr := repo.GetCode(ctx, code); getErr != nil {
			return accesscode.AccessCode{}, getErr
		}
		return accesscode.AccessCode{}, accesscode.ErrAlreadyUsed
	}
	if err != nil {
		return accesscode.AccessCode{}, errors.Wrap(err, "redeeming access code")
	}
	return r.code(), nil
}

func (repo accessCodeRepository) RevokeCode(ctx context.Context, code string, exec ...core.DBExecutor) (accesscode.AccessCode, error) {
	const q = `
		UPDATE access_code
		SET status = $3
		WHERE code = $1 AND status = $2
		RETURNING ` + accessCodeCols
	var r accessCodeRow
	err := r.scan(repo.getExec(exec).QueryRowContext(ctx, q, code, accesscode.StatusActive, accesscode.StatusRevoked))
	if err == sql.ErrNoRows {
		if _, getErr := repo.GetCode(ctx, code); getErr != nil {
			return accesscode.AccessCode{}, getErr
		}
		return accesscode.AccessCode{}, accesscode.ErrAlreadyUsed
	}
	if err != nil {
		return accesscode.AccessCode{}, errors.Wrap(err, "revoking access code")
	}
	return r.code(), nil
}

func (repo accessCodeRepository) QueryCodes(ctx context.Context, filter accesscode.QueryFilter) ([]accesscode.AccessCode, error) {
	q := "SELECT " + accessCodeCols + " FROM access_code"
	var conds []string
	var args []interface{}

	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conds = append(conds, "course_id = $1")
	}
	switch filter.Status {
	case "":
	case accesscode.StatusExpired:
		// expiry is not a stored status
		conds = append(conds, "status = 'active' AND expires_at IS NOT NULL AND expires_at < NOW()")
	default:
		args = append(args, filter.Status)
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			q += " WHERE " + c
		} else {
			q += " AND " + c
		}
	}
	q += " ORDER BY issued_at DESC"

	var rows []accessCodeRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying access codes")
	}
	codes := make([]accesscode.AccessCode, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, r.code())
	}
	return codes, nil
}
