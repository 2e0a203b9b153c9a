package models

import "time"

// Media is an uploaded file record.
type Media struct {
	ID         int64     `db:"id" json:"id"`
	Filename   string    `db:"filename" json:"filename"`
	MimeType   string    `db:"mime_type" json:"mime_type"`
	SizeBytes  int64     `db:"size_bytes" json:"size_bytes"`
	Title      string    `db:"title" json:"title"`
	AltText    string    `db:"alt_text" json:"alt_text"`
	AttachedTo *int64    `db:"attached_to" json:"attached_to,omitempty"`
	UploadedBy int64     `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
