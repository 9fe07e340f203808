package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/accesscode"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/audit"
	"github.com/trezcool/darasa/core/enroll"
)

type enrollKey struct {
	studentID string
	courseID  string
}

type (
	DB struct {
		txMu sync.Mutex // serializes Transact blocks

		codes       *codeTable
		enrollments *enrollmentTable
		entries     *auditTable
		accounts    *accountTable
	}

	codeTable struct {
		t     map[string]*accesscode.AccessCode
		mutex sync.RWMutex
	}

	enrollmentTable struct {
		t     map[enrollKey]*enroll.Record
		mutex sync.RWMutex
	}

	auditTable struct {
		t     []*audit.Entry
		seq   int64
		mutex sync.RWMutex
	}

	accountTable struct {
		t     map[string]*account.Account
		mutex sync.RWMutex
	}
)

var _ core.Atomic = (*DB)(nil)

func Open() (*DB, error) {
	db := &DB{
		codes:       &codeTable{t: make(map[string]*accesscode.AccessCode)},
		enrollments: &enrollmentTable{t: make(map[enrollKey]*enroll.Record)},
		entries:     &auditTable{t: make([]*audit.Entry, 0)},
		accounts:    &accountTable{t: make(map[string]*account.Account)},
	}
	return db, nil
}

// Transact serializes the whole block against other transactions. There is no
// rollback: this double exists for tests and local dev, where fn's repo calls
// fail before writing or not at all.
func (db *DB) Transact(_ context.Context, fn func(tx core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()
	return fn(nil)
}
