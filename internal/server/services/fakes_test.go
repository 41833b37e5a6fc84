package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/dmitrijs2005/varejo/internal/dbx"
	"github.com/dmitrijs2005/varejo/internal/logging"
	"github.com/dmitrijs2005/varejo/internal/permissions"
	"github.com/dmitrijs2005/varejo/internal/records"
	"github.com/dmitrijs2005/varejo/internal/server/models"
	"github.com/dmitrijs2005/varejo/internal/server/photos"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/auditlogs"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/identities"
	permissionsrepo "github.com/dmitrijs2005/varejo/internal/server/repositories/permissions"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/tables"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func bufferLogger() (logging.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return logging.NewText(buf, slog.LevelDebug), buf
}

// --- tables ---

type fakeTables struct {
	mu      sync.Mutex
	rows    map[string][]records.Record
	nextID  int
	inserts int
	updates int
	deletes int

	selectErr error
	insertErr error
	updateErr error
	deleteErr error

	lastUpdate records.Record
}

func newFakeTables() *fakeTables {
	return &fakeTables{rows: map[string][]records.Record{}}
}

func (f *fakeTables) seed(table string, rows ...records.Record) {
	f.rows[table] = append(f.rows[table], rows...)
}

func (f *fakeTables) writes() int { return f.inserts + f.updates + f.deletes }

func (f *fakeTables) find(table, keyField, key string) (int, records.Record) {
	for i, row := range f.rows[table] {
		if row.String(keyField) == key {
			return i, row
		}
	}
	return -1, nil
}

func (f *fakeTables) SelectAll(ctx context.Context, table, keyField string) ([]records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	out := make([]records.Record, 0, len(f.rows[table]))
	for _, row := range f.rows[table] {
		out = append(out, row.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String(keyField) < out[j].String(keyField) })
	return out, nil
}

func (f *fakeTables) SelectByKey(ctx context.Context, table, keyField, key string) (records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	_, row := f.find(table, keyField, key)
	if row == nil {
		return nil, common.ErrorNotFound
	}
	return row.Clone(), nil
}

func (f *fakeTables) SelectField(ctx context.Context, table, keyField, key, field string) (any, error) {
	row, err := f.SelectByKey(ctx, table, keyField, key)
	if err != nil {
		return nil, err
	}
	return row[field], nil
}

func (f *fakeTables) Insert(ctx context.Context, table string, values records.Record) (records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	row := values.Clone()
	if !row.Has(records.KeyFieldFor(table)) {
		f.nextID++
		row[records.KeyFieldFor(table)] = float64(f.nextID)
	}
	f.rows[table] = append(f.rows[table], row)
	return row.Clone(), nil
}

func (f *fakeTables) Update(ctx context.Context, table, keyField, key string, values records.Record) (records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	f.lastUpdate = values.Clone()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	i, row := f.find(table, keyField, key)
	if row == nil {
		return nil, common.ErrorNotFound
	}
	for k, v := range values {
		row[k] = v
	}
	f.rows[table][i] = row
	return row.Clone(), nil
}

func (f *fakeTables) Delete(ctx context.Context, table, keyField, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	i, _ := f.find(table, keyField, key)
	if i < 0 {
		return 0, nil
	}
	f.rows[table] = append(f.rows[table][:i], f.rows[table][i+1:]...)
	return 1, nil
}

// --- audit logs ---

type fakeAuditLogs struct {
	entries   []*models.AuditLog
	createErr error
}

func (f *fakeAuditLogs) Create(ctx context.Context, entry *models.AuditLog) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	entry.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, entry)
	return entry.ID, nil
}

// --- permissions ---

type fakePermissions struct {
	rows      map[string]permissions.Map
	getErr    error
	upsertErr error
	creates   int
}

func newFakePermissions() *fakePermissions {
	return &fakePermissions{rows: map[string]permissions.Map{}}
}

func (f *fakePermissions) Get(ctx context.Context, usuarioID string) (*models.PermissionRow, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	m, ok := f.rows[usuarioID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.PermissionRow{UsuarioID: usuarioID, Map: m.Clone(), UpdatedAt: time.Now()}, nil
}

func (f *fakePermissions) Upsert(ctx context.Context, usuarioID string, m permissions.Map) (*models.PermissionRow, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.rows[usuarioID] = m.Clone()
	return &models.PermissionRow{UsuarioID: usuarioID, Map: m.Clone(), UpdatedAt: time.Now()}, nil
}

func (f *fakePermissions) CreateIfAbsent(ctx context.Context, usuarioID string, m permissions.Map) (bool, error) {
	if _, ok := f.rows[usuarioID]; ok {
		return false, nil
	}
	f.creates++
	f.rows[usuarioID] = m.Clone()
	return true, nil
}

// --- identities ---

type fakeIdentities struct {
	byEmail   map[string]*models.Identity
	createErr error
	getErr    error
}

func newFakeIdentities() *fakeIdentities {
	return &fakeIdentities{byEmail: map[string]*models.Identity{}}
}

func (f *fakeIdentities) Create(ctx context.Context, i *models.Identity) (*models.Identity, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byEmail[i.Email]; ok {
		return nil, errors.New("duplicate email")
	}
	i.ID = "id-" + i.Email
	f.byEmail[i.Email] = i
	return i, nil
}

func (f *fakeIdentities) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	i, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return i, nil
}

func (f *fakeIdentities) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	for _, i := range f.byEmail {
		if i.ID == id {
			return i, nil
		}
	}
	return nil, common.ErrorNotFound
}

// --- refresh tokens ---

type fakeRefreshRepo struct {
	tokens map[string]*models.RefreshToken

	findErr   error
	delErr    error
	createErr error
	purged    int
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: map[string]*models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.tokens[token] = &models.RefreshToken{UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	rt, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return rt, nil
}

func (f *fakeRefreshRepo) Delete(ctx context.Context, token string) error {
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.tokens, token)
	return nil
}

func (f *fakeRefreshRepo) DeleteExpired(ctx context.Context) (int64, error) {
	f.purged++
	return 0, nil
}

// --- manager ---

type fakeRepoManager struct {
	tables      *fakeTables
	audit       *fakeAuditLogs
	permissions *fakePermissions
	identities  *fakeIdentities
	refresh     *fakeRefreshRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		tables:      newFakeTables(),
		audit:       &fakeAuditLogs{},
		permissions: newFakePermissions(),
		identities:  newFakeIdentities(),
		refresh:     newFakeRefreshRepo(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *fakeRepoManager) Tables(db dbx.DBTX) tables.Repository {
	return m.tables
}

func (m *fakeRepoManager) AuditLogs(db dbx.DBTX) auditlogs.Repository {
	return m.audit
}

func (m *fakeRepoManager) Permissions(db dbx.DBTX) permissionsrepo.Repository {
	return m.permissions
}

func (m *fakeRepoManager) Identities(db dbx.DBTX) identities.Repository {
	return m.identities
}

func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return m.refresh
}

// --- object store ---

type fakeStore struct {
	uploads   []string
	removed   []string
	removals  int
	uploadErr error
	removeErr error
}

func (f *fakeStore) Upload(ctx context.Context, bucket, name string, data []byte, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, bucket+"/"+name)
	return nil
}

func (f *fakeStore) Remove(ctx context.Context, bucket string, names []string) error {
	f.removals++
	for _, n := range names {
		f.removed = append(f.removed, bucket+"/"+n)
	}
	return f.removeErr
}

func (f *fakeStore) PublicURL(bucket, name string) string {
	return "https://cdn.test/" + bucket + "/" + name
}

// --- identity provisioner ---

type fakeProvisioner struct {
	calls []string
	err   error
}

func (f *fakeProvisioner) SignUp(ctx context.Context, email, password string) (string, error) {
	f.calls = append(f.calls, email)
	if f.err != nil {
		return "", f.err
	}
	return "00000000-0000-0000-0000-0000000000aa", nil
}

// recordFixture wires a RecordService over fakes.
type recordFixture struct {
	svc   *RecordService
	rm    *fakeRepoManager
	store *fakeStore
	prov  *fakeProvisioner
	db    *sql.DB
	mock  sqlmock.Sqlmock
	logs  *bytes.Buffer
}

func newRecordFixture(t *testing.T) *recordFixture {
	t.Helper()
	db, mock := newSQLMockDB(t)
	t.Cleanup(func() { db.Close() })

	rm := newFakeRepoManager()
	store := &fakeStore{}
	prov := &fakeProvisioner{}
	logger, logs := bufferLogger()

	rec := photos.NewReconciler(store, "", logger)
	svc := NewRecordService(db, rm, rec, prov, NewAuditEmitter(db, rm), logger)
	return &recordFixture{svc: svc, rm: rm, store: store, prov: prov, db: db, mock: mock, logs: logs}
}

// expectActorTx registers the transaction WithActorTx opens for actor.
func (f *recordFixture) expectActorTx(actor string, commit bool) {
	f.mock.ExpectBegin()
	if actor != "" {
		f.mock.ExpectExec(`SELECT set_config\(\$1, \$2, true\)`).
			WithArgs(common.ActorSettingName, actor).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	if commit {
		f.mock.ExpectCommit()
	} else {
		f.mock.ExpectRollback()
	}
}
