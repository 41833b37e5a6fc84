package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/dmitrijs2005/varejo/internal/dbx"
	"github.com/dmitrijs2005/varejo/internal/logging"
	"github.com/dmitrijs2005/varejo/internal/records"
	"github.com/dmitrijs2005/varejo/internal/server/photos"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/varejo/internal/session"
	"github.com/google/uuid"
)

// PasswordField carries the initial password of a new user account. It is
// never written to the usuarios table.
const PasswordField = "senha"

// PhotoReconciler applies attachment list changes to the object store.
type PhotoReconciler interface {
	Reconcile(ctx context.Context, in photos.Input) ([]string, error)
	Upload(ctx context.Context, table, entityID string, f *photos.File) (string, error)
	RemoveAll(ctx context.Context, table string, urls []string)
}

// IdentityProvisioner creates auth identities for new user accounts.
type IdentityProvisioner interface {
	SignUp(ctx context.Context, email, password string) (string, error)
}

// UpdateOptions carries the attachment side of an update. A nil Photos
// keeps the stored list.
type UpdateOptions struct {
	File   *photos.File
	Photos []string
}

// DeleteResult is returned once the row delete is confirmed.
type DeleteResult struct {
	Success bool
	ID      string
}

// RecordService implements the generic mutations of business tables.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	photos      PhotoReconciler
	identities  IdentityProvisioner
	audit       *AuditEmitter
	logger      logging.Logger
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager, p PhotoReconciler,
	ids IdentityProvisioner, audit *AuditEmitter, logger logging.Logger) *RecordService {
	return &RecordService{
		db:          db,
		repomanager: m,
		photos:      p,
		identities:  ids,
		audit:       audit,
		logger:      logger.With("module", "records"),
	}
}

// List returns every row of table.
func (s *RecordService) List(ctx context.Context, sess session.Context, table string) ([]records.Record, error) {
	rows, err := s.repomanager.Tables(s.db).SelectAll(ctx, table, records.KeyFieldFor(table))
	if err != nil {
		return nil, common.NewDBError("select "+table, err)
	}
	return rows, nil
}

// Get returns one row by key.
func (s *RecordService) Get(ctx context.Context, sess session.Context, table, key string) (records.Record, error) {
	row, err := s.repomanager.Tables(s.db).SelectByKey(ctx, table, records.KeyFieldFor(table), key)
	if err != nil {
		return nil, common.NewDBError("select "+table, err)
	}
	return row, nil
}

// Create inserts values into table, uploading file first when given. New
// user accounts get an auth identity whose id becomes the row key. One
// audit entry is emitted per inserted row; its failure is only logged.
func (s *RecordService) Create(ctx context.Context, sess session.Context, table string, values records.Record, file *photos.File) (records.Record, error) {
	values = values.Clone()
	if values == nil {
		values = records.Record{}
	}

	if file != nil {
		entityID := values.String(records.KeyFieldFor(table))
		if entityID == "" {
			entityID = uuid.NewString()
		}
		url, err := s.photos.Upload(ctx, table, entityID, file)
		if err != nil {
			return nil, err
		}
		values[records.PhotoField] = []string{url}
	}

	if table == records.UserTable {
		email := values.String("email")
		password := values.String(PasswordField)
		if email == "" || password == "" {
			return nil, common.ErrMissingCredentials
		}
		id, err := s.identities.SignUp(ctx, email, password)
		if err != nil {
			return nil, fmt.Errorf("provision identity: %w", err)
		}
		values[records.UserKeyField] = id
		delete(values, PasswordField)
	}

	inserted, err := s.repomanager.Tables(s.db).Insert(ctx, table, values)
	if err != nil {
		return nil, common.NewDBError("insert "+table, err)
	}

	if err := s.audit.Emit(ctx, sess, "create_"+table, table, nil, inserted); err != nil {
		s.logger.Error(ctx, "audit log failed", "table", table, "error", err)
	}

	s.logger.Info(ctx, "record created", "table", table, "id", RecordID(table, inserted))
	return inserted, nil
}

// Update writes values to the row identified by key. When neither values
// nor the attachment list change, the current row is returned and nothing
// is written. The row's audit entry is written by the database trigger.
func (s *RecordService) Update(ctx context.Context, sess session.Context, table, key string, values records.Record, opts UpdateOptions) (records.Record, error) {
	keyField := records.KeyFieldFor(table)
	tables := s.repomanager.Tables(s.db)

	current, err := tables.SelectByKey(ctx, table, keyField, key)
	if err != nil {
		s.logger.Warn(ctx, "snapshot fetch failed", "table", table, "key", key, "error", err)
		current = nil
	}

	payload := make(records.Record, len(values)+2)
	for k, v := range values {
		if k != records.PhotoField {
			payload[k] = v
		}
	}

	if opts.File != nil || opts.Photos != nil || values.Has(records.PhotoField) {
		urls, changed, err := s.reconcilePhotos(ctx, table, keyField, key, current, values, opts)
		if err != nil {
			return nil, err
		}
		if changed {
			payload[records.PhotoField] = urls
		}
	}

	if len(payload) == 0 {
		return current, nil
	}

	if table != records.UserTable && !sess.Anonymous() {
		payload[records.ActorField] = sess.ActorID
	}

	var updated records.Record
	err = dbx.WithActorTx(ctx, s.db, sess.ActorID, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		updated, err = s.repomanager.Tables(tx).Update(ctx, table, keyField, key, payload)
		return err
	})
	if err != nil {
		return nil, common.NewDBError("update "+table, err)
	}
	return updated, nil
}

func (s *RecordService) reconcilePhotos(ctx context.Context, table, keyField, key string,
	current, values records.Record, opts UpdateOptions) ([]string, bool, error) {

	var have []string
	if current != nil && current.Has(records.PhotoField) {
		have = current.PhotoURLs()
	} else {
		v, err := s.repomanager.Tables(s.db).SelectField(ctx, table, keyField, key, records.PhotoField)
		if err != nil {
			s.logger.Warn(ctx, "photo list fetch failed", "table", table, "key", key, "error", err)
		}
		have, _ = records.ToStringSlice(v)
	}
	if have == nil {
		have = []string{}
	}

	want := opts.Photos
	if want == nil && values.Has(records.PhotoField) {
		list, err := records.ToStringSlice(values[records.PhotoField])
		if err != nil {
			return nil, false, fmt.Errorf("%w: %s: %v", common.ErrInvalidValue, records.PhotoField, err)
		}
		want = list
	}

	final, err := s.photos.Reconcile(ctx, photos.Input{
		Table:    table,
		EntityID: key,
		Current:  have,
		Desired:  want,
		File:     opts.File,
	})
	if err != nil {
		return nil, false, err
	}
	return final, !records.EqualStrings(final, have), nil
}

// Delete removes the row identified by key in keyField (the table's key
// column when empty). Attachment blobs are removed first on a best-effort
// basis; success is reported only after the row delete is confirmed.
func (s *RecordService) Delete(ctx context.Context, sess session.Context, table, key, keyField string) (DeleteResult, error) {
	if keyField == "" {
		keyField = records.KeyFieldFor(table)
	}

	current, err := s.repomanager.Tables(s.db).SelectByKey(ctx, table, keyField, key)
	if err != nil {
		s.logger.Warn(ctx, "snapshot fetch failed", "table", table, "key", key, "error", err)
		current = nil
	}
	if urls := current.PhotoURLs(); len(urls) > 0 {
		s.photos.RemoveAll(ctx, table, urls)
	}

	var n int64
	err = dbx.WithActorTx(ctx, s.db, sess.ActorID, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		n, err = s.repomanager.Tables(tx).Delete(ctx, table, keyField, key)
		return err
	})
	if err != nil {
		return DeleteResult{}, common.NewDBError("delete "+table, err)
	}
	if n == 0 {
		return DeleteResult{}, common.ErrorNotFound
	}

	s.logger.Info(ctx, "record deleted", "table", table, "id", key)
	return DeleteResult{Success: true, ID: key}, nil
}
