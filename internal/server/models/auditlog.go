// Package models defines the server-side rows the repositories read and
// write outside the generic table client.
package models

import (
	"time"

	"github.com/dmitrijs2005/varejo/internal/records"
)

// AuditLog is one row of the append-only logs table. Nil pointers and nil
// snapshots are stored as NULL.
type AuditLog struct {
	ID              int64
	UsuarioID       *string
	Acao            string
	Tabela          string
	RegistroID      *string
	DadosAnteriores records.Record
	DadosNovos      records.Record
	IP              *string
	UserAgent       *string
	CreatedAt       time.Time
}
