package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/dmitrijs2005/varejo/internal/logging"
	"github.com/dmitrijs2005/varejo/internal/permissions"
	"github.com/dmitrijs2005/varejo/internal/records"
	"github.com/dmitrijs2005/varejo/internal/server/realtime"
	"github.com/dmitrijs2005/varejo/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/varejo/internal/session"
)

// Subscriber hands out filtered change streams.
type Subscriber interface {
	Subscribe(f realtime.Filter) *realtime.Subscription
}

// PermissionService reads, writes and watches capability maps.
type PermissionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hub         Subscriber
	audit       *AuditEmitter
	logger      logging.Logger
}

func NewPermissionService(db *sql.DB, m repomanager.RepositoryManager, hub Subscriber,
	audit *AuditEmitter, logger logging.Logger) *PermissionService {
	return &PermissionService{
		db:          db,
		repomanager: m,
		hub:         hub,
		audit:       audit,
		logger:      logger.With("module", "permissions"),
	}
}

// Load returns the map of usuarioID merged over the default template. A
// user without a stored map gets an all-false one stored first.
func (s *PermissionService) Load(ctx context.Context, usuarioID string) (permissions.Map, error) {
	if usuarioID == "" {
		return permissions.Map{}, common.ErrorUnauthorized
	}
	repo := s.repomanager.Permissions(s.db)

	row, err := repo.Get(ctx, usuarioID)
	if errors.Is(err, common.ErrorNotFound) {
		defaults := permissions.Defaults()
		if _, err := repo.CreateIfAbsent(ctx, usuarioID, defaults); err != nil {
			return permissions.Map{}, fmt.Errorf("initialize permissions: %w", err)
		}
		s.logger.Info(ctx, "permissions initialized", "usuario_id", usuarioID)
		row, err = repo.Get(ctx, usuarioID)
	}
	if err != nil {
		return permissions.Map{}, fmt.Errorf("load permissions: %w", err)
	}
	return permissions.Merge(row.Map), nil
}

// Update replaces the stored map of usuarioID. The change is audited as
// update_permissoes on behalf of sess.
func (s *PermissionService) Update(ctx context.Context, sess session.Context, usuarioID string, m permissions.Map) (permissions.Map, error) {
	if usuarioID == "" {
		return permissions.Map{}, common.ErrorUnauthorized
	}
	repo := s.repomanager.Permissions(s.db)

	var before records.Record
	if row, err := repo.Get(ctx, usuarioID); err == nil {
		before = permissionRecord(usuarioID, row.Map)
	}

	row, err := repo.Upsert(ctx, usuarioID, m)
	if err != nil {
		return permissions.Map{}, common.NewDBError("update "+records.PermissionsTable, err)
	}

	after := permissionRecord(usuarioID, row.Map)
	if err := s.audit.Emit(ctx, sess, "update_"+records.PermissionsTable, records.PermissionsTable, before, after); err != nil {
		s.logger.Error(ctx, "audit log failed", "table", records.PermissionsTable, "error", err)
	}
	return permissions.Merge(row.Map), nil
}

// Watch subscribes to changes of usuarioID's map. The caller closes the
// subscription.
func (s *PermissionService) Watch(ctx context.Context, usuarioID string) (*realtime.Subscription, error) {
	if usuarioID == "" {
		return nil, common.ErrorUnauthorized
	}
	return s.hub.Subscribe(realtime.Filter{
		Table:  records.PermissionsTable,
		Column: records.ActorField,
		Value:  usuarioID,
	}), nil
}

func permissionRecord(usuarioID string, m permissions.Map) records.Record {
	rec := records.Record{
		records.ActorField:  usuarioID,
		permissions.LojaKey: nil,
		"permissoes":        m.Sections,
	}
	if m.LojaID != nil {
		rec[permissions.LojaKey] = *m.LojaID
	}
	return rec
}
