package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/varejo/internal/records"
	"github.com/dmitrijs2005/varejo/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordID(t *testing.T) {
	assert.Equal(t, "7", RecordID("lojas", records.Record{"id": float64(7)}))
	assert.Equal(t, "abc", RecordID("usuarios", records.Record{"uuid": "abc", "id": "ignored"}))
	assert.Equal(t, "u-9", RecordID("permissoes", records.Record{"usuario_id": "u-9"}))
	assert.Equal(t, "42", RecordID("vendas", records.Record{"venda_id": float64(42)}))
	assert.Equal(t, "5", RecordID("clientes", nil, records.Record{"id": float64(5)}))
	assert.Equal(t, "", RecordID("clientes", records.Record{"nome": "x"}))
}

func TestEmit_AnonymousSession(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()

	err := NewAuditEmitter(db, rm).Emit(context.Background(), session.Context{}, "create_lojas", "lojas", nil, records.Record{"id": float64(1)})
	require.NoError(t, err)

	require.Len(t, rm.audit.entries, 1)
	e := rm.audit.entries[0]
	assert.Nil(t, e.UsuarioID)
	assert.Nil(t, e.IP)
	assert.Nil(t, e.UserAgent)
	assert.Equal(t, "1", *e.RegistroID)
}

func TestEmit_Error(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.audit.createErr = errBoom{}

	err := NewAuditEmitter(db, rm).Emit(context.Background(), operator, "create_lojas", "lojas", nil, nil)
	require.EqualError(t, err, "audit create_lojas: boom")
}
