package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// appendAttempts bounds the blind retries on transient storage failures:
// a lost audit entry is a compliance defect, a hung request is not a fix.
const appendAttempts = 3

type (
	Repository interface {
		// CreateEntry persists a new Entry and stamps its Seq.
		CreateEntry(ctx context.Context, entry Entry, exec ...core.DBExecutor) (Entry, error)
		// QueryEntries returns up to limit entries strictly before the cursor,
		// descending by (Timestamp, Seq). A zero cursor starts from the latest.
		QueryEntries(ctx context.Context, limit int, before Cursor) ([]Entry, error)
	}

	ServiceInterface interface {
		Append(ctx context.Context, in EntryInput, exec ...core.DBExecutor) (Entry, error)
		List(ctx context.Context, limit int, cursor string) ([]Entry, string, error)
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Append validates and persists one immutable entry. Failures are surfaced,
// never swallowed; transient storage errors are retried a bounded number of
// times unless the append is part of a caller-owned transaction.
func (svc *Service) Append(ctx context.Context, in EntryInput, exec ...core.DBExecutor) (Entry, error) {
	if err := core.Validate.Struct(in); err != nil {
		return Entry{}, err
	}
	if !KnownAction(in.Action) {
		return Entry{}, core.NewValidationError(ErrUnknownAction, core.FieldError{Field: "action", Error: ErrUnknownAction.Error()})
	}

	entry := Entry{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UTC(),
		AdminID:    in.AdminID,
		AdminName:  in.AdminName,
		Action:     in.Action,
		TargetType: in.TargetType,
		TargetID:   in.TargetID,
		Details:    in.Details,
	}

	if len(exec) > 0 {
		// inside a caller's transaction: retrying here would double-write on commit
		return svc.repo.CreateEntry(ctx, entry, exec...)
	}

	var created Entry
	err := core.RetryTransient(ctx, appendAttempts, func() error {
		var err error
		created, err = svc.repo.CreateEntry(ctx, entry)
		return err
	})
	return created, errors.Wrap(err, "appending audit entry")
}

// List pages through the trail, newest first. It returns the next opaque
// cursor, or "" when the page was not full.
func (svc *Service) List(ctx context.Context, limit int, cursor string) ([]Entry, string, error) {
	before, err := DecodeCursor(cursor)
	if err != nil {
		return nil, "", core.NewValidationError(err, core.FieldError{Field: "cursor", Error: err.Error()})
	}
	if limit <= 0 {
		limit = 50
	}

	entries, err := svc.repo.QueryEntries(ctx, limit, before)
	if err != nil {
		return nil, "", errors.Wrap(err, "querying audit entries")
	}

	var next string
	if len(entries) == limit {
		last := entries[len(entries)-1]
		next = Cursor{Timestamp: last.Timestamp, Seq: last.Seq}.String()
	}
	return entries, next, nil
}
