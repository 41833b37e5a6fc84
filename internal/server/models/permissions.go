package models

import (
	"time"

	"github.com/dmitrijs2005/varejo/internal/permissions"
)

// PermissionRow is one row of the permissoes table.
type PermissionRow struct {
	UsuarioID string
	Map       permissions.Map
	UpdatedAt time.Time
}
