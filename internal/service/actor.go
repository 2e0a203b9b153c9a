package service

import (
	"errors"

	"github.com/chroma-cms/agent-api/internal/models"
	"github.com/chroma-cms/agent-api/internal/repository"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
)

// Actor identifies the authenticated key behind a request for audit
// attribution, plus the request envelope the action arrived on.
type Actor struct {
	KeyID     int64
	Label     string
	Method    string
	Route     string
	IP        string
	UserAgent string
	RequestID string
}

// Stamp copies the request attribution onto an audit entry.
func (a Actor) Stamp(entry *models.AuditEntry) *models.AuditEntry {
	entry.KeyID = a.KeyID
	entry.ActorLabel = a.Label
	entry.Method = a.Method
	entry.Route = a.Route
	entry.IPAddress = a.IP
	entry.UserAgent = a.UserAgent
	entry.RequestID = a.RequestID
	return entry
}

// translateNotFound maps storage errors onto the API error taxonomy.
func translateNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.ErrNotFound
	}
	return appErrors.WithCause(appErrors.ErrInternal, err)
}
