package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/varejo/internal/records"
	"github.com/dmitrijs2005/varejo/internal/server/models"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/varejo/internal/session"
	"github.com/jinzhu/inflection"
)

// AuditEmitter appends application-side entries to the logs table.
type AuditEmitter struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewAuditEmitter(db *sql.DB, m repomanager.RepositoryManager) *AuditEmitter {
	return &AuditEmitter{db: db, repomanager: m}
}

// Emit records action on table. The actor, ip and user agent come from s;
// the record id is read from after, falling back to before.
func (e *AuditEmitter) Emit(ctx context.Context, s session.Context, action, table string, before, after records.Record) error {
	entry := &models.AuditLog{
		Acao:            action,
		Tabela:          table,
		DadosAnteriores: before,
		DadosNovos:      after,
		UsuarioID:       optional(s.ActorID),
		IP:              optional(s.IP),
		UserAgent:       optional(s.UserAgent),
		RegistroID:      optional(RecordID(table, after, before)),
	}
	if _, err := e.repomanager.AuditLogs(e.db).Create(ctx, entry); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

// RecordID picks the identifier of a row: the table's key column, then
// id, uuid and <singular table>_id.
func RecordID(table string, recs ...records.Record) string {
	candidates := []string{records.KeyFieldFor(table), records.KeyField, records.UserKeyField, inflection.Singular(table) + "_id"}
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		for _, field := range candidates {
			if v := rec.String(field); v != "" {
				return v
			}
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
