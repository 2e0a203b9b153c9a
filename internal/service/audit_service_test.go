package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chroma-cms/agent-api/internal/dto"
	"github.com/chroma-cms/agent-api/internal/models"
	"github.com/chroma-cms/agent-api/internal/redact"
	"github.com/chroma-cms/agent-api/internal/repository"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
)

type fakeAuditRepo struct {
	entries   []*models.AuditEntry
	insertErr error
}

func (f *fakeAuditRepo) Insert(ctx context.Context, entry *models.AuditEntry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	entry.ID = int64(len(f.entries) + 1)
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRepo) GetByID(ctx context.Context, id int64) (*models.AuditEntry, error) {
	for _, e := range f.entries {
		if e.ID == id {
			copied := *e
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAuditRepo) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	out := make([]models.AuditEntry, len(f.entries))
	for i, e := range f.entries {
		out[i] = *e
	}
	return out, nil
}

func (f *fakeAuditRepo) Count(ctx context.Context, filter models.AuditFilter) (int64, error) {
	return int64(len(f.entries)), nil
}

func newTestAuditService(repo *fakeAuditRepo) *AuditService {
	redactor := redact.New([]string{"password", "token", "secret", "authorization", "api_key", "key_hash"})
	return NewAuditService(repo, redactor, zap.NewNop())
}

func TestAuditRecordRedactsSensitiveKeys(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := newTestAuditService(repo)

	svc.Record(context.Background(), &models.AuditEntry{
		Action: "keys.create",
		Before: models.JSONMap{"secret": "old"},
		After:  models.JSONMap{"secret": "new", "label": "bot"},
		Diff: models.JSONMap{
			"token": "ck_live_1.secret",
			"label": map[string]any{"from": nil, "to": "bot"},
		},
		Meta: models.JSONMap{"api_key": "raw"},
	})

	require.Len(t, repo.entries, 1)
	assert.Equal(t, redact.Placeholder, repo.entries[0].Diff["token"])
	assert.NotEqual(t, redact.Placeholder, repo.entries[0].Diff["label"])
	assert.Equal(t, redact.Placeholder, repo.entries[0].Meta["api_key"])
	assert.Equal(t, redact.Placeholder, repo.entries[0].Before["secret"])
	assert.Equal(t, redact.Placeholder, repo.entries[0].After["secret"])
	assert.Equal(t, "bot", repo.entries[0].After["label"])
}

func TestAuditRecordSwallowsInsertFailure(t *testing.T) {
	repo := &fakeAuditRepo{insertErr: errors.New("db gone")}
	svc := newTestAuditService(repo)

	// Must not panic or propagate; the mutating request already succeeded.
	svc.Record(context.Background(), &models.AuditEntry{Action: "theme.update"})
	assert.Empty(t, repo.entries)
}

func TestAuditListValidatesTimeFilters(t *testing.T) {
	svc := newTestAuditService(&fakeAuditRepo{})

	_, _, err := svc.List(context.Background(), dto.ListAuditQuery{Since: "yesterday"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, _, err = svc.List(context.Background(), dto.ListAuditQuery{Since: "2026-01-01T00:00:00Z"})
	assert.NoError(t, err)
}

func TestAuditExportCSV(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := newTestAuditService(repo)
	svc.Record(context.Background(), &models.AuditEntry{
		Action:     "theme.update",
		TargetType: "theme",
		TargetID:   "blogname",
		KeyID:      7,
	})

	result, err := svc.Export(context.Background(), dto.ExportAuditQuery{Format: "csv"})
	require.NoError(t, err)

	assert.Equal(t, "text/csv", result.ContentType)
	assert.Contains(t, string(result.Content), "theme.update")
	assert.Contains(t, string(result.Content), "blogname")
	assert.Contains(t, result.Filename, ".csv")
}

func TestAuditExportPDF(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := newTestAuditService(repo)
	svc.Record(context.Background(), &models.AuditEntry{Action: "seo.update", KeyID: 7})

	result, err := svc.Export(context.Background(), dto.ExportAuditQuery{Format: "pdf"})
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, len(result.Content) > 0)
	assert.Equal(t, "%PDF", string(result.Content[:4]))
}
