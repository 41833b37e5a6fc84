package photos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/dmitrijs2005/varejo/internal/logging"
	"github.com/dmitrijs2005/varejo/internal/server/config"
	"github.com/dmitrijs2005/varejo/internal/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upload struct {
	bucket, name, contentType string
	data                      []byte
}

type fakeStore struct {
	uploads   []upload
	removed   map[string][]string
	removals  int
	uploadErr error
	removeErr error
}

func newFakeStore() *fakeStore { return &fakeStore{removed: map[string][]string{}} }

func (f *fakeStore) Upload(ctx context.Context, bucket, name string, data []byte, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, upload{bucket, name, contentType, data})
	return nil
}

func (f *fakeStore) Remove(ctx context.Context, bucket string, names []string) error {
	f.removals++
	f.removed[bucket] = append(f.removed[bucket], names...)
	return f.removeErr
}

func (f *fakeStore) PublicURL(bucket, name string) string {
	return "https://cdn.test/" + bucket + "/" + name
}

func newReconciler(store *fakeStore, logs *bytes.Buffer) *Reconciler {
	r := NewReconciler(store, "", logging.NewText(logs, slog.LevelDebug))
	r.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return r
}

func TestFileNameFromURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://cdn.test/lojas/7_1.jpg", "7_1.jpg"},
		{"https://cdn.test/lojas/7_1.jpg?token=abc", "7_1.jpg"},
		{"https://cdn.test/lojas/7_1.jpg#frag", "7_1.jpg"},
		{"https://cdn.test/lojas/dir/7_2.png?a=1&b=", "7_2.png"},
		{"plain.png", "plain.png"},
		{"https://cdn.test/lojas/loja%207_1.jpg", "loja 7_1.jpg"},
		{"https://cdn.test/lojas/caf%C3%A9_1.png", "café_1.png"},
		{"https://cdn.test/lojas/100%.jpg", "100%.jpg"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FileNameFromURL(c.in), c.in)
	}
}

func TestDiff(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, Diff([]string{"a", "b", "c"}, []string{"b", "d"}))
	assert.Empty(t, Diff([]string{"a"}, []string{"a"}))
	assert.Empty(t, Diff(nil, []string{"a"}))
}

// Moving from A to B removes exactly A - B and leaves A ∩ B alone.
func TestReconcile_RemovesExactlyDifference(t *testing.T) {
	lists := [][]string{
		{},
		{"u/1.jpg"},
		{"u/1.jpg", "u/2.jpg"},
		{"u/2.jpg", "u/3.jpg"},
		{"u/1.jpg", "u/2.jpg", "u/3.jpg", "u/4.jpg"},
	}
	for i, a := range lists {
		for j, b := range lists {
			t.Run(fmt.Sprintf("%d_to_%d", i, j), func(t *testing.T) {
				store := newFakeStore()
				r := newReconciler(store, &bytes.Buffer{})

				got, err := r.Reconcile(context.Background(), Input{Table: "lojas", EntityID: "7", Current: a, Desired: b})
				require.NoError(t, err)
				assert.Equal(t, b, got)

				var want []string
				for _, u := range Diff(a, b) {
					want = append(want, FileNameFromURL(u))
				}
				removed := store.removed["lojas"]
				sort.Strings(removed)
				sort.Strings(want)
				assert.Equal(t, want, removed)
				if len(want) == 0 {
					assert.Zero(t, store.removals)
				} else {
					assert.Equal(t, 1, store.removals)
				}
				assert.Empty(t, store.uploads)
			})
		}
	}
}

func TestReconcile_NilDesiredKeepsCurrent(t *testing.T) {
	store := newFakeStore()
	r := newReconciler(store, &bytes.Buffer{})

	got, err := r.Reconcile(context.Background(), Input{Table: "lojas", EntityID: "7", Current: []string{"x/a.jpg"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"x/a.jpg"}, got)
	assert.Zero(t, store.removals)
}

// lojas id=7: new file plus an emptied list.
func TestReconcile_ReplaceAllWithNewFile(t *testing.T) {
	store := newFakeStore()
	r := newReconciler(store, &bytes.Buffer{})

	current := []string{"https://cdn.test/lojas/7_1.jpg", "https://cdn.test/lojas/7_2.jpg?v=2"}
	got, err := r.Reconcile(context.Background(), Input{
		Table:    "lojas",
		EntityID: "7",
		Current:  current,
		Desired:  []string{},
		File:     &File{Name: "Fachada.JPG", Data: []byte("img")},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"7_1.jpg", "7_2.jpg"}, store.removed["lojas"])
	require.Len(t, store.uploads, 1)
	assert.Equal(t, "7_1700000000000.jpg", store.uploads[0].name)
	assert.Equal(t, "image/jpeg", store.uploads[0].contentType)
	assert.Equal(t, []string{"https://cdn.test/lojas/7_1700000000000.jpg"}, got)
}

func TestReconcile_RemoveFailureIsOnlyLogged(t *testing.T) {
	store := newFakeStore()
	store.removeErr = errors.New("bucket offline")
	logs := &bytes.Buffer{}
	r := newReconciler(store, logs)

	got, err := r.Reconcile(context.Background(), Input{Table: "clientes", EntityID: "3", Current: []string{"c/a.jpg"}, Desired: []string{}})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Contains(t, logs.String(), "failed to remove photos")
	assert.Contains(t, logs.String(), "bucket offline")
}

func TestReconcile_UploadFailure(t *testing.T) {
	store := newFakeStore()
	store.uploadErr = errors.New("quota")
	r := newReconciler(store, &bytes.Buffer{})

	_, err := r.Reconcile(context.Background(), Input{Table: "estoque", EntityID: "9", File: &File{Name: "p.png"}})
	var upErr *common.UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "estoque", upErr.Bucket)
	assert.Equal(t, "9_1700000000000.png", upErr.Name)
}

func TestUpload_ExtensionFallback(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, "varejo-", logging.NewNop())
	r.now = func() time.Time { return time.UnixMilli(5) }

	url, err := r.Upload(context.Background(), "usuarios", "abc", &File{Name: "noext", ContentType: "image/webp"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/varejo-usuarios/abc_5.bin", url)
	assert.Equal(t, "image/webp", store.uploads[0].contentType)
}

func TestRemoveAll_DeduplicatesNames(t *testing.T) {
	store := newFakeStore()
	r := newReconciler(store, &bytes.Buffer{})

	r.RemoveAll(context.Background(), "clientes", []string{"a/x.jpg", "b/x.jpg?v=1", "", "a/y.jpg"})
	assert.Equal(t, []string{"x.jpg", "y.jpg"}, store.removed["clientes"])
	assert.Equal(t, 1, store.removals)
}

// s3URLStore records like fakeStore but builds addresses with S3Store.
type s3URLStore struct {
	*fakeStore
	s3 *storage.S3Store
}

func (s s3URLStore) PublicURL(bucket, name string) string { return s.s3.PublicURL(bucket, name) }

func TestReconcile_RemovesEscapedNames(t *testing.T) {
	t.Setenv("AWS_PROFILE", "")
	s3, err := storage.NewS3Store(context.Background(), &config.Config{
		S3Region:        "us-east-1",
		S3PublicBaseURL: "http://minio:9000",
	})
	require.NoError(t, err)

	fake := newFakeStore()
	r := NewReconciler(s3URLStore{fakeStore: fake, s3: s3}, "", logging.NewNop())
	r.now = func() time.Time { return time.UnixMilli(1700000000000) }

	list, err := r.Reconcile(context.Background(), Input{
		Table:    "clientes",
		EntityID: "loja 7",
		File:     &File{Name: "foto.jpg", Data: []byte("img")},
	})
	require.NoError(t, err)
	require.Len(t, fake.uploads, 1)
	assert.Equal(t, "loja 7_1700000000000.jpg", fake.uploads[0].name)
	assert.Equal(t, []string{"http://minio:9000/clientes/loja%207_1700000000000.jpg"}, list)

	_, err = r.Reconcile(context.Background(), Input{
		Table:    "clientes",
		EntityID: "loja 7",
		Current:  list,
		Desired:  []string{},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{fake.uploads[0].name}, fake.removed["clientes"])
}
