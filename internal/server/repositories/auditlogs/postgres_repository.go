package auditlogs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/varejo/internal/dbx"
	"github.com/dmitrijs2005/varejo/internal/records"
	"github.com/dmitrijs2005/varejo/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, entry *models.AuditLog) (int64, error) {
	before, err := encodeSnapshot(entry.DadosAnteriores)
	if err != nil {
		return 0, err
	}
	after, err := encodeSnapshot(entry.DadosNovos)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO logs (usuario_id, acao, tabela, registro_id, dados_anteriores, dados_novos, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8)
		RETURNING id, created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		entry.UsuarioID, entry.Acao, entry.Tabela, entry.RegistroID,
		before, after, entry.IP, entry.UserAgent,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return entry.ID, nil
}

// encodeSnapshot returns nil for a nil record so the column stays NULL.
func encodeSnapshot(rec records.Record) (any, error) {
	if rec == nil {
		return nil, nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return string(b), nil
}
