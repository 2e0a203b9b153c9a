package models

import "time"

// Snapshot target kinds.
const (
	SnapshotTargetOption   = "option"
	SnapshotTargetThemeMod = "theme_mod"
)

// Snapshot preserves a setting's value before a mutating write so the change
// can be rolled back later.
type Snapshot struct {
	ID         int64      `db:"id" json:"id"`
	TargetType string     `db:"target_type" json:"target_type"`
	TargetKey  string     `db:"target_key" json:"target_key"`
	OldValue   JSONValue  `db:"old_value" json:"old_value"`
	NewValue   JSONValue  `db:"new_value" json:"new_value"`
	Scope      string     `db:"scope" json:"scope,omitempty"`
	KeyID      int64      `db:"key_id" json:"key_id"`
	RequestID  string     `db:"request_id" json:"request_id"`
	RestoredAt *time.Time `db:"restored_at" json:"restored_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
