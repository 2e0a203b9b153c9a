package dto

// ListAuditQuery filters audit log listings.
type ListAuditQuery struct {
	KeyID      int64  `form:"key_id" validate:"omitempty,min=1"`
	Action     string `form:"action" validate:"omitempty,max=64"`
	Route      string `form:"route" validate:"omitempty,max=191"`
	TargetType string `form:"target_type" validate:"omitempty,max=64"`
	TargetID   string `form:"target_id" validate:"omitempty,max=191"`
	Since      string `form:"since" validate:"omitempty"`
	Until      string `form:"until" validate:"omitempty"`
	Page       int    `form:"page" validate:"omitempty,min=1"`
	Limit      int    `form:"limit" validate:"omitempty,min=1,max=200"`
}

// ExportAuditQuery selects the export window and format.
type ExportAuditQuery struct {
	ListAuditQuery
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
