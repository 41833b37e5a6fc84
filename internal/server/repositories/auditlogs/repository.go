// Package auditlogs appends to the logs table.
package auditlogs

import (
	"context"

	"github.com/dmitrijs2005/varejo/internal/server/models"
)

type Repository interface {
	// Create appends entry and returns its id.
	Create(ctx context.Context, entry *models.AuditLog) (int64, error)
}
