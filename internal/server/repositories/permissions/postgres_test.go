package permissions

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/dmitrijs2005/varejo/internal/permissions"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var rowCols = []string{"usuario_id", "loja_id", "permissoes", "updated_at"}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+usuario_id,\s*loja_id,\s*permissoes,\s*updated_at\s+FROM\s+permissoes\s+WHERE\s+usuario_id::text\s*=\s*\$1\s*$`
	rows := sqlmock.NewRows(rowCols).
		AddRow("u-1", int64(2), []byte(`{"clientes":{"ver_clientes":true}}`), time.Now())
	mock.ExpectQuery(q).WithArgs("u-1").WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !got.Map.Can("clientes", "ver_clientes") {
		t.Fatalf("expected ver_clientes granted: %+v", got.Map)
	}
	if got.Map.LojaID == nil || *got.Map.LojaID != 2 {
		t.Fatalf("unexpected loja_id: %v", got.Map.LojaID)
	}
}

func TestGet_NullLoja(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(rowCols).AddRow("u-1", nil, []byte(`{}`), time.Now())
	mock.ExpectQuery(`FROM\s+permissoes`).WithArgs("u-1").WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Map.LojaID != nil {
		t.Fatalf("want all stores, got %v", *got.Map.LojaID)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+permissoes`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestUpsert(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+permissoes\b.*ON\s+CONFLICT\s*\(usuario_id\)\s*DO\s+UPDATE\s+SET\b.*RETURNING\s+usuario_id`
	rows := sqlmock.NewRows(rowCols).
		AddRow("u-1", nil, []byte(`{"caixa":{"abrir_caixa":true}}`), time.Now())
	mock.ExpectQuery(q).
		WithArgs("u-1", nil, `{"caixa":{"abrir_caixa":true}}`).
		WillReturnRows(rows)

	m := permissions.Map{}
	m.Set("caixa", "abrir_caixa", true)
	got, err := repo.Upsert(context.Background(), "u-1", m)
	if err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if !got.Map.Can("caixa", "abrir_caixa") {
		t.Fatalf("unexpected map: %+v", got.Map)
	}
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+permissoes`).WillReturnError(errors.New("db err"))

	_, err := repo.Upsert(context.Background(), "u-1", permissions.Defaults())
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestCreateIfAbsent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT\s+INTO\s+permissoes\b.*ON\s+CONFLICT\s*\(usuario_id\)\s*DO\s+NOTHING`
	mock.ExpectExec(q).WithArgs("u-1", nil, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("u-1", nil, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.CreateIfAbsent(context.Background(), "u-1", permissions.Defaults())
	if err != nil || !created {
		t.Fatalf("first call: created=%v err=%v", created, err)
	}
	created, err = repo.CreateIfAbsent(context.Background(), "u-1", permissions.Defaults())
	if err != nil || created {
		t.Fatalf("second call: created=%v err=%v", created, err)
	}
}
