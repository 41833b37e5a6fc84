// Package repomanager vends repositories bound to a database handle, so a
// service can run several of them inside one transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/varejo/internal/dbx"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/auditlogs"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/identities"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/permissions"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/tables"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Tables(db dbx.DBTX) tables.Repository
	AuditLogs(db dbx.DBTX) auditlogs.Repository
	Permissions(db dbx.DBTX) permissions.Repository
	Identities(db dbx.DBTX) identities.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
