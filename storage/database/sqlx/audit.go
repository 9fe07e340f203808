package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/audit"
	"github.com/trezcool/darasa/storage/database"
)

const auditCols = "id, seq, timestamp, admin_id, admin_name, action, target_type, target_id, details"

type auditRow struct {
	ID         string    `db:"id"`
	Seq        int64     `db:"seq"`
	Timestamp  time.Time `db:"timestamp"`
	AdminID    string    `db:"admin_id"`
	AdminName  string    `db:"admin_name"`
	Action     string    `db:"action"`
	TargetType string    `db:"target_type"`
	TargetID   string    `db:"target_id"`
	Details    string    `db:"details"`
}

func (r auditRow) entry() audit.Entry {
	return audit.Entry{
		ID:         r.ID,
		Seq:        r.Seq,
		Timestamp:  r.Timestamp,
		AdminID:    r.AdminID,
		AdminName:  r.AdminName,
		Action:     r.Action,
		TargetType: r.TargetType,
		TargetID:   r.TargetID,
		Details:    r.Details,
	}
}

type auditRepository struct {
	db *sqlx.DB
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(db *sqlx.DB) *auditRepository {
	return &auditRepository{db: db}
}

func (repo auditRepository) getExec(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return repo.db
}

// CreateEntry appends; the table has no UPDATE or DELETE path anywhere in the
// codebase, which is what keeps the trail immutable.
func (repo auditRepository) CreateEntry(ctx context.Context, entry audit.Entry, exec ...core.DBExecutor) (audit.Entry, error) {
	const q = `
		INSERT INTO audit_log (id, timestamp, admin_id, admin_name, action, target_type, target_id, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq`
	err := repo.getExec(exec).QueryRowContext(
		ctx, q,
		entry.ID, entry.Timestamp.UTC(), entry.AdminID, entry.AdminName,
		entry.Action, entry.TargetType, entry.TargetID, entry.Details,
	).Scan(&entry.Seq)
	if err != nil {
		return audit.Entry{}, database.TrapConnErr(err, "inserting audit entry")
	}
	return entry, nil
}

func (repo auditRepository) QueryEntries(ctx context.Context, limit int, before audit.Cursor) ([]audit.Entry, error) {
	q := "SELECT " + auditCols + " FROM audit_log"
	args := []interface{}{limit}
	if !before.IsZero() {
		args = append(args, before.Timestamp.UTC(), before.Seq)
		q += " WHERE (timestamp, seq) < ($2, $3)"
	}
	q += " ORDER BY timestamp DESC, seq DESC LIMIT $1"

	var rows []auditRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying audit entries")
	}
	entries := make([]audit.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}
