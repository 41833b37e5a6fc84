package permissions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/dmitrijs2005/varejo/internal/dbx"
	"github.com/dmitrijs2005/varejo/internal/permissions"
	"github.com/dmitrijs2005/varejo/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, usuarioID string) (*models.PermissionRow, error) {
	query := `
		SELECT usuario_id, loja_id, permissoes, updated_at
		FROM permissoes
		WHERE usuario_id::text = $1
	`
	return r.scanRow(r.db.QueryRowContext(ctx, query, usuarioID))
}

func (r *PostgresRepository) Upsert(ctx context.Context, usuarioID string, m permissions.Map) (*models.PermissionRow, error) {
	sections, err := json.Marshal(m.Sections)
	if err != nil {
		return nil, fmt.Errorf("encode permissions: %w", err)
	}
	query := `
		INSERT INTO permissoes (usuario_id, loja_id, permissoes, updated_at)
		VALUES ($1::uuid, $2, $3::jsonb, now())
		ON CONFLICT (usuario_id)
		DO UPDATE SET
			loja_id = EXCLUDED.loja_id,
			permissoes = EXCLUDED.permissoes,
			updated_at = EXCLUDED.updated_at
		RETURNING usuario_id, loja_id, permissoes, updated_at
	`
	return r.scanRow(r.db.QueryRowContext(ctx, query, usuarioID, m.LojaID, string(sections)))
}

func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, usuarioID string, m permissions.Map) (bool, error) {
	sections, err := json.Marshal(m.Sections)
	if err != nil {
		return false, fmt.Errorf("encode permissions: %w", err)
	}
	query := `
		INSERT INTO permissoes (usuario_id, loja_id, permissoes)
		VALUES ($1::uuid, $2, $3::jsonb)
		ON CONFLICT (usuario_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, usuarioID, m.LojaID, string(sections))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) scanRow(row *sql.Row) (*models.PermissionRow, error) {
	var (
		out    models.PermissionRow
		lojaID sql.NullInt64
		raw    []byte
	)
	if err := row.Scan(&out.UsuarioID, &lojaID, &raw, &out.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	out.Map = permissions.Map{Sections: permissions.Sections{}}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out.Map.Sections); err != nil {
			return nil, fmt.Errorf("decode permissions: %w", err)
		}
	}
	if lojaID.Valid {
		v := lojaID.Int64
		out.Map.LojaID = &v
	}
	return &out, nil
}
