// Package tables is the generic table client: schema-less reads and writes
// of any business table, keyed by a named identifier column.
package tables

import (
	"context"

	"github.com/dmitrijs2005/varejo/internal/records"
)

// Repository is the remote table contract the services depend on.
type Repository interface {
	// SelectAll returns every row of table, paging transparently.
	SelectAll(ctx context.Context, table, keyField string) ([]records.Record, error)
	// SelectByKey returns one row or common.ErrorNotFound.
	SelectByKey(ctx context.Context, table, keyField, key string) (records.Record, error)
	// SelectField returns one column of one row or common.ErrorNotFound.
	SelectField(ctx context.Context, table, keyField, key, field string) (any, error)
	// Insert writes values and returns the stored row.
	Insert(ctx context.Context, table string, values records.Record) (records.Record, error)
	// Update overwrites the given columns and returns the stored row, or
	// common.ErrorNotFound when no row matches.
	Update(ctx context.Context, table, keyField, key string, values records.Record) (records.Record, error)
	// Delete removes the row and returns the number of rows affected.
	Delete(ctx context.Context, table, keyField, key string) (int64, error)
}
