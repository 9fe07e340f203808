package audit

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Privileged actions recorded in the trail. The set is closed: Append rejects
// anything else.
const (
	ActionGenerateCode     = "generate_code"
	ActionRevokeCode       = "revoke_code"
	ActionDeleteAccount    = "delete_account"
	ActionResetAccount     = "reset_account"
	ActionSuspendAccount   = "suspend_account"
	ActionUnsuspendAccount = "unsuspend_account"
)

var knownActions = map[string]struct{}{
	ActionGenerateCode:     {},
	ActionRevokeCode:       {},
	ActionDeleteAccount:    {},
	ActionResetAccount:     {},
	ActionSuspendAccount:   {},
	ActionUnsuspendAccount: {},
}

// KnownAction reports whether action belongs to the closed action set.
func KnownAction(action string) bool {
	_, ok := knownActions[action]
	return ok
}

var (
	// errors
	ErrUnknownAction = errors.New("unknown audit action")
	ErrBadCursor     = errors.New("malformed audit cursor")
)

// Entry is one immutable record of a privileged action. Entries are totally
// ordered by Timestamp, ties broken by Seq (insertion order).
type Entry struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"-"`
	Timestamp  time.Time `json:"timestamp"` // UTC
	AdminID    string    `json:"admin_id"`
	AdminName  string    `json:"admin_name"`
	Action     string    `json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Details    string    `json:"details"`
}

// EntryInput contains information needed to append a new Entry.
type EntryInput struct {
	AdminID    string `json:"admin_id" validate:"required"`
	AdminName  string `json:"admin_name"`
	Action     string `json:"action" validate:"required"`
	TargetType string `json:"target_type" validate:"required"`
	TargetID   string `json:"target_id" validate:"required"`
	Details    string `json:"details"`
}

// Cursor marks a position in the descending (Timestamp, Seq) ordering.
// Its string form is opaque to clients so pagination stays stable under
// concurrent appends.
type Cursor struct {
	Timestamp time.Time
	Seq       int64
}

func (c Cursor) IsZero() bool {
	return c.Timestamp.IsZero() && c.Seq == 0
}

func (c Cursor) String() string {
	raw := fmt.Sprintf("%d:%d", c.Timestamp.UTC().UnixNano(), c.Seq)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor previously produced by Cursor.String.
// An empty string decodes to the zero Cursor (start from the latest entry).
func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, ErrBadCursor
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) < 2 {
		return Cursor{}, ErrBadCursor
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, ErrBadCursor
	}
	seq, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Cursor{}, ErrBadCursor
	}
	return Cursor{Timestamp: time.Unix(0, nanos).UTC(), Seq: seq}, nil
}
