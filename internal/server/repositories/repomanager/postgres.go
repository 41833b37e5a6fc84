package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/varejo/internal/dbx"
	"github.com/dmitrijs2005/varejo/internal/server/migrations"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/auditlogs"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/identities"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/permissions"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/tables"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories and runs
// the embedded goose migrations.
type PostgresRepositoryManager struct {
	pageSize int
}

// NewPostgresRepositoryManager returns a manager whose table repositories
// read pageSize rows per round trip.
func NewPostgresRepositoryManager(pageSize int) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{pageSize: pageSize}
}

func (m *PostgresRepositoryManager) Tables(db dbx.DBTX) tables.Repository {
	return tables.NewPostgresRepository(db, m.pageSize)
}

func (m *PostgresRepositoryManager) AuditLogs(db dbx.DBTX) auditlogs.Repository {
	return auditlogs.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Permissions(db dbx.DBTX) permissions.Repository {
	return permissions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Identities(db dbx.DBTX) identities.Repository {
	return identities.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies every pending migration from the embedded FS.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
