package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/chroma-cms/agent-api/internal/auth"
	"github.com/chroma-cms/agent-api/internal/models"
	"github.com/chroma-cms/agent-api/internal/service"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
	"github.com/chroma-cms/agent-api/pkg/middleware/requestid"
	"github.com/chroma-cms/agent-api/pkg/response"
)

// Auditor records completed actions for handlers that audit at the route
// level (the settings and content services audit internally).
type Auditor interface {
	Record(ctx context.Context, entry *models.AuditEntry)
}

// actorFrom builds the audit attribution for the authenticated request.
func actorFrom(c *gin.Context) service.Actor {
	actor := service.Actor{
		Method:    c.Request.Method,
		Route:     c.FullPath(),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		RequestID: requestid.Value(c),
	}
	if key := auth.KeyFrom(c); key != nil {
		actor.KeyID = key.ID
		actor.Label = key.Label
	}
	return actor
}

// pathID parses the :id route parameter, replying 400 on garbage.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.WithDetails(appErrors.ErrValidation,
			map[string]any{"id": c.Param("id")}))
		return 0, false
	}
	return id, true
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
