package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/audit"
)

type auditRepository struct {
	db *auditTable
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(db *DB) *auditRepository {
	return &auditRepository{db: db.entries}
}

func (repo *auditRepository) CreateEntry(_ context.Context, entry audit.Entry, _ ...core.DBExecutor) (audit.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.seq++
	entry.Seq = repo.db.seq
	e := entry
	repo.db.t = append(repo.db.t, &e)
	return entry, nil
}

func (repo *auditRepository) QueryEntries(_ context.Context, limit int, before audit.Cursor) ([]audit.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]audit.Entry, 0, len(repo.db.t))
	for _, e := range repo.db.t {
		if !before.IsZero() {
			// strictly before the cursor in the (Timestamp, Seq) ordering
			if e.Timestamp.After(before.Timestamp) {
				continue
			}
			if e.Timestamp.Equal(before.Timestamp) && e.Seq >= before.Seq {
				continue
			}
		}
		res = append(res, *e)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Timestamp.Equal(res[j].Timestamp) {
			return res[i].Seq > res[j].Seq
		}
		return res[i].Timestamp.After(res[j].Timestamp)
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}
