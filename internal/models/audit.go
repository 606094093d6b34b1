package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SlotChangeList is the JSON-encoded list of per-slot old/new pairs stored
// on an audit entry.
type SlotChangeList []SlotChange

// Value implements driver.Valuer.
func (l SlotChangeList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *SlotChangeList) Scan(src interface{}) error {
	switch raw := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(raw, l)
	case string:
		return json.Unmarshal([]byte(raw), l)
	default:
		return fmt.Errorf("unsupported slot change list type %T", src)
	}
}

// AuditEntry is one immutable history row describing an accepted grade
// mutation. Entries are append-only; they are removed only when the parent
// record is deleted outright.
type AuditEntry struct {
	ID        string         `db:"id" json:"id"`
	RecordID  string         `db:"record_id" json:"record_id"`
	StudentID string         `db:"student_id" json:"student_id"`
	CourseID  string         `db:"course_id" json:"course_id"`
	Changes   SlotChangeList `db:"changes" json:"changes"`
	Actor     string         `db:"actor" json:"actor"`
	Reason    string         `db:"reason" json:"reason"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
