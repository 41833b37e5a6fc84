package tables

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/dmitrijs2005/varejo/internal/dbx"
	"github.com/dmitrijs2005/varejo/internal/records"
)

// DefaultPageSize matches the row ceiling of a single read.
const DefaultPageSize = 1000

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresRepository reads and writes rows as jsonb documents: rows come
// back through to_jsonb and values go in through jsonb_populate_record, so
// Postgres performs all type coercion.
type PostgresRepository struct {
	db       dbx.DBTX
	pageSize int
}

func NewPostgresRepository(db dbx.DBTX, pageSize int) *PostgresRepository {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &PostgresRepository{db: db, pageSize: pageSize}
}

func (r *PostgresRepository) SelectAll(ctx context.Context, table, keyField string) ([]records.Record, error) {
	t, k, err := quoteAll(table, keyField)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT to_jsonb(t.*) FROM %s AS t ORDER BY t.%s LIMIT $1 OFFSET $2`, t, k)

	var out []records.Record
	for offset := 0; ; offset += r.pageSize {
		page, err := r.queryRecords(ctx, query, r.pageSize, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < r.pageSize {
			break
		}
	}
	if out == nil {
		out = []records.Record{}
	}
	return out, nil
}

func (r *PostgresRepository) SelectByKey(ctx context.Context, table, keyField, key string) (records.Record, error) {
	t, k, err := quoteAll(table, keyField)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT to_jsonb(t.*) FROM %s AS t WHERE t.%s::text = $1`, t, k)

	var doc []byte
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return decodeRecord(doc)
}

func (r *PostgresRepository) SelectField(ctx context.Context, table, keyField, key, field string) (any, error) {
	t, k, err := quoteAll(table, keyField)
	if err != nil {
		return nil, err
	}
	f, err := quote(field)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT to_jsonb(t.%s) FROM %s AS t WHERE t.%s::text = $1`, f, t, k)

	var doc []byte
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", field, err)
	}
	return v, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, table string, values records.Record) (records.Record, error) {
	t, err := quote(table)
	if err != nil {
		return nil, err
	}

	var query string
	var args []any
	if len(values) == 0 {
		query = fmt.Sprintf(`INSERT INTO %s AS t DEFAULT VALUES RETURNING to_jsonb(t.*)`, t)
	} else {
		cols, err := quotedColumns(values)
		if err != nil {
			return nil, err
		}
		doc, err := json.Marshal(values)
		if err != nil {
			return nil, fmt.Errorf("encode values: %w", err)
		}
		query = fmt.Sprintf(`INSERT INTO %s AS t (%s) SELECT %s FROM jsonb_populate_record(NULL::%s, $1::jsonb) AS r RETURNING to_jsonb(t.*)`,
			t, strings.Join(cols, ", "), prefixed("r.", cols), t)
		args = append(args, string(doc))
	}

	var out []byte
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&out); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return decodeRecord(out)
}

func (r *PostgresRepository) Update(ctx context.Context, table, keyField, key string, values records.Record) (records.Record, error) {
	t, k, err := quoteAll(table, keyField)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.New("update without values")
	}
	cols, err := quotedColumns(values)
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode values: %w", err)
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = r." + c
	}
	query := fmt.Sprintf(`UPDATE %s AS t SET %s FROM jsonb_populate_record(NULL::%s, $1::jsonb) AS r WHERE t.%s::text = $2 RETURNING to_jsonb(t.*)`,
		t, strings.Join(sets, ", "), t, k)

	var out []byte
	if err := r.db.QueryRowContext(ctx, query, string(doc), key).Scan(&out); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return decodeRecord(out)
}

func (r *PostgresRepository) Delete(ctx context.Context, table, keyField, key string) (int64, error) {
	t, k, err := quoteAll(table, keyField)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`DELETE FROM %s AS t WHERE t.%s::text = $1`, t, k)

	res, err := r.db.ExecContext(ctx, query, key)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) queryRecords(ctx context.Context, query string, args ...any) ([]records.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []records.Record
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		rec, err := decodeRecord(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func decodeRecord(doc []byte) (records.Record, error) {
	var rec records.Record
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return rec, nil
}

// ValidIdentifier reports whether name can be used as a table or column.
func ValidIdentifier(name string) bool {
	return identRe.MatchString(name)
}

func quote(name string) (string, error) {
	if !ValidIdentifier(name) {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidIdentifier, name)
	}
	return `"` + name + `"`, nil
}

func quoteAll(table, keyField string) (string, string, error) {
	t, err := quote(table)
	if err != nil {
		return "", "", err
	}
	k, err := quote(keyField)
	if err != nil {
		return "", "", err
	}
	return t, k, nil
}

func quotedColumns(values records.Record) ([]string, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]string, len(names))
	for i, name := range names {
		c, err := quote(name)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	return cols, nil
}

func prefixed(prefix string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + c
	}
	return strings.Join(out, ", ")
}
