package identities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/dmitrijs2005/varejo/internal/dbx"
	"github.com/dmitrijs2005/varejo/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create stores the identity and fills in its generated id and timestamp.
// Emails are compared case-insensitively, so they are stored lowercased.
func (r *PostgresRepository) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	query := `
		INSERT INTO auth_identities (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	identity.Email = normalizeEmail(identity.Email)
	err := r.db.QueryRowContext(ctx, query, identity.Email, identity.PasswordHash).
		Scan(&identity.ID, &identity.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return identity, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM auth_identities
		WHERE email = $1
	`
	return r.getOne(ctx, query, normalizeEmail(email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM auth_identities
		WHERE id::text = $1
	`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.Identity, error) {
	i := &models.Identity{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&i.ID, &i.Email, &i.PasswordHash, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return i, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
