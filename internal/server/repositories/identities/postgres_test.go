package identities

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/dmitrijs2005/varejo/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	insertQ  = `(?s)^\s*INSERT\s+INTO\s+auth_identities\s*\(email,\s*password_hash\)\s*VALUES\s*\(\$1,\s*\$2\)\s*RETURNING\s+id,\s*created_at\s*$`
	byEmailQ = `(?s)^\s*SELECT\s+id,\s*email,\s*password_hash,\s*created_at\s+FROM\s+auth_identities\s+WHERE\s+email\s*=\s*\$1\s*$`
	byIDQ    = `(?s)^\s*SELECT\s+id,.*FROM\s+auth_identities\s+WHERE\s+id::text\s*=\s*\$1\s*$`
)

func identityRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).
		AddRow("a1", "ana@loja.com", []byte("hash"), time.Now())
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "created_at"}).AddRow("a1", time.Now())
	mock.ExpectQuery(insertQ).
		WithArgs("ana@loja.com", []byte("hash")).
		WillReturnRows(rows)

	got, err := repo.Create(context.Background(), &models.Identity{Email: " Ana@Loja.com ", PasswordHash: []byte("hash")})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "a1" || got.Email != "ana@loja.com" {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("duplicate key"))

	_, err := repo.Create(context.Background(), &models.Identity{Email: "ana@loja.com", PasswordHash: []byte("hash")})
	if err == nil || !regexp.MustCompile(`db error: .*duplicate key`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byEmailQ).WithArgs("ana@loja.com").WillReturnRows(identityRows())

	got, err := repo.GetByEmail(context.Background(), "ANA@loja.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got.ID != "a1" || string(got.PasswordHash) != "hash" {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byEmailQ).WithArgs("ghost@loja.com").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@loja.com")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byIDQ).WithArgs("a1").WillReturnRows(identityRows())

	got, err := repo.GetByID(context.Background(), "a1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.Email != "ana@loja.com" {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byIDQ).WithArgs("a1").WillReturnError(errors.New("db err"))

	_, err := repo.GetByID(context.Background(), "a1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
