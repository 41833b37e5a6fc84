// Package records defines the schema-less row representation shared by the
// table client, the services and the transport.
package records

import (
	"fmt"
	"strconv"
)

// PhotoField is the column holding an entity's ordered attachment URLs.
const PhotoField = "fotourl"

// ActorField is the column stamped with the acting user on update.
const ActorField = "usuario_id"

// UserTable is the user-account table; its key is UserKeyField.
// PermissionsTable is keyed by the user it belongs to.
const (
	UserTable        = "usuarios"
	UserKeyField     = "uuid"
	PermissionsTable = "permissoes"
	KeyField         = "id"
)

// Record is one row of a named table.
type Record map[string]any

// KeyFieldFor returns the identifier column of table.
func KeyFieldFor(table string) string {
	switch table {
	case UserTable:
		return UserKeyField
	case PermissionsTable:
		return ActorField
	default:
		return KeyField
	}
}

// Clone returns a shallow copy. A nil record stays nil.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Has reports whether field is present, even with a nil value.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// String returns field rendered as text, "" when absent or nil.
func (r Record) String(field string) string {
	return KeyString(r[field])
}

// PhotoURLs is the typed view of the fotourl column.
func (r Record) PhotoURLs() []string {
	urls, _ := ToStringSlice(r[PhotoField])
	return urls
}

// KeyString renders an identifier value the way it is compared in SQL
// (id::text). JSON numbers arrive as float64 and are printed without a
// fractional part when integral.
func KeyString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case int32:
		return strconv.FormatInt(int64(value), 10)
	default:
		return fmt.Sprint(value)
	}
}

// ToStringSlice converts []string or []any of strings. nil converts to an
// empty, non-nil slice.
func ToStringSlice(v any) ([]string, error) {
	switch value := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		out := make([]string, len(value))
		copy(out, value)
		return out, nil
	case []any:
		out := make([]string, 0, len(value))
		for i, item := range value {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, not string", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%T is not a list of strings", v)
	}
}

// EqualStrings reports whether a and b hold the same elements in order.
func EqualStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
