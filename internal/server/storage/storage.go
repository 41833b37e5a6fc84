// Package storage is the object store holding entity attachments. Each
// table owns a bucket; objects are publicly readable by URL.
package storage

import "context"

// ObjectStore uploads, removes and addresses blobs.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, name string, data []byte, contentType string) error
	// Remove deletes names from bucket in one batch. Absent names are not
	// an error.
	Remove(ctx context.Context, bucket string, names []string) error
	PublicURL(bucket, name string) string
}

// BucketFor returns the bucket holding attachments of table.
func BucketFor(prefix, table string) string {
	return prefix + table
}
