package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/wolfeidau/docsign/internal/models"
)

// AuditLogs reads entity audit trails.
type AuditLogs struct {
	client *Client
}

// NewAuditLogs creates an AuditLogs service.
func NewAuditLogs(client *Client) *AuditLogs {
	return &AuditLogs{client: client}
}

// List returns the audit trail of one entity, e.g. models.EntityTypeDocument.
func (a *AuditLogs) List(ctx context.Context, entityType string, entityID int64) ([]*models.AuditLog, error) {
	query := url.Values{}
	query.Set("entityType", entityType)
	query.Set("entityId", strconv.FormatInt(entityID, 10))

	var logs []*models.AuditLog
	if err := a.client.doJSON(ctx, http.MethodGet, "audit-logs", query, nil, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
