// Package photos keeps an entity's attachment list and the object store in
// step: blobs dropped from the list are removed, a newly supplied file is
// uploaded and its public URL appended.
package photos

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/dmitrijs2005/varejo/internal/logging"
	"github.com/dmitrijs2005/varejo/internal/server/storage"
)

// File is a newly selected attachment.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Input describes one reconciliation. A nil Desired means "keep Current".
type Input struct {
	Table    string
	EntityID string
	Current  []string
	Desired  []string
	File     *File
}

type Reconciler struct {
	store        storage.ObjectStore
	bucketPrefix string
	logger       logging.Logger
	now          func() time.Time
}

func NewReconciler(store storage.ObjectStore, bucketPrefix string, logger logging.Logger) *Reconciler {
	return &Reconciler{
		store:        store,
		bucketPrefix: bucketPrefix,
		logger:       logger.With("module", "photos"),
		now:          time.Now,
	}
}

// Reconcile applies the storage side effects of moving from in.Current to
// in.Desired plus in.File and returns the resulting list. Removal failures
// are logged; an upload failure is returned as *common.UploadError.
func (r *Reconciler) Reconcile(ctx context.Context, in Input) ([]string, error) {
	desired := in.Desired
	if desired == nil {
		desired = in.Current
	}
	out := make([]string, len(desired), len(desired)+1)
	copy(out, desired)

	bucket := storage.BucketFor(r.bucketPrefix, in.Table)

	if removed := Diff(in.Current, desired); len(removed) > 0 {
		r.RemoveAll(ctx, in.Table, removed)
	}

	if in.File != nil {
		u, err := r.Upload(ctx, in.Table, in.EntityID, in.File)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}

	r.logger.Debug(ctx, "photos reconciled", "bucket", bucket, "entity", in.EntityID, "count", len(out))
	return out, nil
}

// Upload stores f for entity and returns its public URL.
func (r *Reconciler) Upload(ctx context.Context, table, entityID string, f *File) (string, error) {
	bucket := storage.BucketFor(r.bucketPrefix, table)
	name := fmt.Sprintf("%s_%d.%s", entityID, r.now().UnixMilli(), extension(f.Name))

	contentType := f.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(name))
	}

	if err := r.store.Upload(ctx, bucket, name, f.Data, contentType); err != nil {
		return "", &common.UploadError{Bucket: bucket, Name: name, Err: err}
	}
	return r.store.PublicURL(bucket, name), nil
}

// RemoveAll issues one best-effort batch delete for urls.
func (r *Reconciler) RemoveAll(ctx context.Context, table string, urls []string) {
	names := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		name := FileNameFromURL(u)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	if len(names) == 0 {
		return
	}

	bucket := storage.BucketFor(r.bucketPrefix, table)
	if err := r.store.Remove(ctx, bucket, names); err != nil {
		r.logger.Warn(ctx, "failed to remove photos", "bucket", bucket, "names", names, "error", err)
	}
}

// FileNameFromURL returns the unescaped last path segment of u, ignoring any
// query string or fragment. A segment that is not valid escaping is returned
// as is.
func FileNameFromURL(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimRight(u, "/")
	if i := strings.LastIndex(u, "/"); i >= 0 {
		u = u[i+1:]
	}
	if name, err := url.PathUnescape(u); err == nil {
		return name
	}
	return u
}

// Diff returns the elements of current absent from desired, in order.
func Diff(current, desired []string) []string {
	keep := make(map[string]struct{}, len(desired))
	for _, u := range desired {
		keep[u] = struct{}{}
	}
	var removed []string
	for _, u := range current {
		if _, ok := keep[u]; !ok {
			removed = append(removed, u)
		}
	}
	return removed
}

func extension(name string) string {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	if ext == "" {
		return "bin"
	}
	return strings.ToLower(ext)
}
