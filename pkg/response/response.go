package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chroma-cms/agent-api/internal/models"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
)

// Envelope is the common response contract for every Agent API route.
// Mutating routes additionally populate DryRun, Diff, BlockedKeys,
// SnapshotIDs and WriteMismatches so agents can reason about the effect
// of a write without parsing free text.
type Envelope struct {
	Success           bool                 `json:"success"`
	DryRun            *bool                `json:"dry_run,omitempty"`
	Data              any                  `json:"data,omitempty"`
	Diff              map[string]any       `json:"diff,omitempty"`
	BlockedKeys       []string             `json:"blocked_keys,omitempty"`
	SnapshotIDs       []int64              `json:"snapshot_ids,omitempty"`
	WritePolicyBlocks []models.PolicyBlock `json:"write_policy_blocks,omitempty"`
	WriteMismatches   map[string]any       `json:"write_mismatches,omitempty"`
	Allowlist         []string             `json:"allowlist,omitempty"`
	Warning           string               `json:"warning,omitempty"`
	Pagination        *models.Pagination   `json:"pagination,omitempty"`
	Error             *appErrors.Error     `json:"error,omitempty"`
}

// JSON sends a success envelope.
func JSON(c *gin.Context, status int, data any) {
	writeEnvelope(c, status, Envelope{Success: true, Data: data})
}

// Paginated sends a success envelope with pagination metadata.
func Paginated(c *gin.Context, status int, data any, pagination *models.Pagination) {
	writeEnvelope(c, status, Envelope{Success: true, Data: data, Pagination: pagination})
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data any) {
	JSON(c, http.StatusCreated, data)
}

// Write sends a fully populated envelope (used by mutating routes).
func Write(c *gin.Context, status int, envelope Envelope) {
	envelope.Success = true
	writeEnvelope(c, status, envelope)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	writeEnvelope(c, appErr.Status, Envelope{Success: false, Error: appErr})
}

func writeEnvelope(c *gin.Context, status int, envelope Envelope) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, envelope)
}

// Bool is a convenience for populating Envelope.DryRun.
func Bool(v bool) *bool {
	return &v
}
