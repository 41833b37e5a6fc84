package client

import (
	"context"

	"github.com/dmitrijs2005/varejo/internal/permissions"
	"github.com/dmitrijs2005/varejo/internal/records"
)

// Tokens is the credential pair issued by Login and Refresh.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// File is an attachment sent with a create or update.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// UpdateRequest carries the optional attachment side of an update. Photos
// replaces the stored list only when ReplacePhotos is set.
type UpdateRequest struct {
	File          *File
	Photos        []string
	ReplacePhotos bool
}

// PermissionEvent is one change of the caller's permission row.
type PermissionEvent struct {
	Type string
	New  records.Record
	Old  records.Record
}

// PermissionWatch yields permission changes until it fails.
type PermissionWatch interface {
	Recv() (PermissionEvent, error)
}

type Client interface {
	Close() error
	Tokens() Tokens
	SetTokens(t Tokens)
	SignUp(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	Refresh(ctx context.Context) error
	List(ctx context.Context, table string) ([]records.Record, error)
	Get(ctx context.Context, table, key string) (records.Record, error)
	Create(ctx context.Context, table string, values records.Record, file *File) (records.Record, error)
	Update(ctx context.Context, table, key string, values records.Record, req UpdateRequest) (records.Record, error)
	Delete(ctx context.Context, table, key string) (bool, error)
	GetPermissions(ctx context.Context, usuarioID string) (permissions.Map, error)
	UpdatePermissions(ctx context.Context, usuarioID string, m permissions.Map) (permissions.Map, error)
	WatchPermissions(ctx context.Context) (PermissionWatch, error)
}
