package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/accesscode"
)

type accessCodeRepository struct {
	db *codeTable
}

var _ accesscode.Repository = (*accessCodeRepository)(nil)

func NewAccessCodeRepository(db *DB) *accessCodeRepository {
	return &accessCodeRepository{db: db.codes}
}

func (repo *accessCodeRepository) CreateCode(_ context.Context, code accesscode.AccessCode, _ ...core.DBExecutor) (accesscode.AccessCode, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c := code
	repo.db.t[code.Code] = &c
	return code, nil
}

func (repo *accessCodeRepository) GetCode(_ context.Context, code string) (accesscode.AccessCode, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.t[code]; ok {
		return *c, nil
	}
	return accesscode.AccessCode{}, accesscode.ErrNotFound
}

func (repo *accessCodeRepository) RedeemCode(_ context.Context, code, studentID string, at time.Time) (accesscode.AccessCode, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c, ok := repo.db.t[code]
	if !ok {
		return accesscode.AccessCode{}, accesscode.ErrNotFound
	}
	if c.Status != accesscode.StatusActive {
		return accesscode.AccessCode{}, accesscode.ErrAlreadyUsed
	}
	c.Status = accesscode.StatusRedeemed
	c.RedeemedBy = studentID
	redeemedAt := at
	c.RedeemedAt = &redeemedAt
	return *c, nil
}

func (repo *accessCodeRepository) RevokeCode(_ context.Context, code string, _ ...core.DBExecutor) (accesscode.AccessCode, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c, ok := repo.db.t[code]
	if !ok {
		return accesscode.AccessCode{}, accesscode.ErrNotFound
	}
	if c.Status != accesscode.StatusActive {
		return accesscode.AccessCode{}, accesscode.ErrAlreadyUsed
	}
	c.Status = accesscode.StatusRevoked
	return *c, nil
}

func (repo *accessCodeRepository) QueryCodes(_ context.Context, filter accesscode.QueryFilter) ([]accesscode.AccessCode, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	now := time.Now().UTC()
	res := make([]accesscode.AccessCode, 0, len(repo.db.t))
	for _, c := range repo.db.t {
		if filter.CourseID != "" && c.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && c.EffectiveStatus(now) != filter.Status {
			continue
		}
		res = append(res, *c)
	}
	return res, nil
}
