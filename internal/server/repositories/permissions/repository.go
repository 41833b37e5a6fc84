// Package permissions persists capability maps in the permissoes table.
package permissions

import (
	"context"

	"github.com/dmitrijs2005/varejo/internal/permissions"
	"github.com/dmitrijs2005/varejo/internal/server/models"
)

type Repository interface {
	// Get returns common.ErrorNotFound when the user has no stored map.
	Get(ctx context.Context, usuarioID string) (*models.PermissionRow, error)
	// Upsert writes m for the user, replacing any stored map.
	Upsert(ctx context.Context, usuarioID string, m permissions.Map) (*models.PermissionRow, error)
	// CreateIfAbsent stores m only when the user has no row yet and reports
	// whether it did.
	CreateIfAbsent(ctx context.Context, usuarioID string, m permissions.Map) (bool, error)
}
