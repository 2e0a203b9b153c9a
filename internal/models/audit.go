package models

import "time"

// AuditEntry is one row of the append-only action log. Before and After hold
// the redacted state either side of the write; Diff is the structural change
// between them.
type AuditEntry struct {
	ID         int64     `db:"id" json:"id"`
	KeyID      int64     `db:"key_id" json:"key_id"`
	ActorLabel string    `db:"actor_label" json:"actor_label"`
	Action     string    `db:"action" json:"action"`
	Method     string    `db:"method" json:"method,omitempty"`
	Route      string    `db:"route" json:"route,omitempty"`
	Scope      string    `db:"scope" json:"scope,omitempty"`
	TargetType string    `db:"target_type" json:"target_type"`
	TargetID   string    `db:"target_id" json:"target_id"`
	DryRun     bool      `db:"dry_run" json:"dry_run"`
	Before     JSONMap   `db:"before_json" json:"before,omitempty"`
	After      JSONMap   `db:"after_json" json:"after,omitempty"`
	Diff       JSONMap   `db:"diff" json:"diff,omitempty"`
	Meta       JSONMap   `db:"meta" json:"meta,omitempty"`
	ErrorCode  string    `db:"error_code" json:"error_code,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent,omitempty"`
	RequestID  string    `db:"request_id" json:"request_id"`
	StatusCode int       `db:"status_code" json:"status_code"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter narrows audit listings. Route matches as a prefix.
type AuditFilter struct {
	KeyID      int64
	Action     string
	Route      string
	TargetType string
	TargetID   string
	Since      *time.Time
	Until      *time.Time
	Page       int
	Limit      int
}
