// Package permissions models the per-user capability map that gates every
// operator action: named sections of boolean flags plus an optional store
// restriction. Everything here is pure so both the server and the CLI can
// use it.
package permissions

import (
	"encoding/json"
	"fmt"
)

// LojaKey is the top-level JSON key holding the store restriction.
const LojaKey = "loja_id"

// Sections maps section name to capability name to flag.
type Sections map[string]map[string]bool

// Map is the capability map of one actor. A nil LojaID means the actor sees
// every store.
type Map struct {
	LojaID   *int64
	Sections Sections
}

// Action is an operation an operator performs on a table.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// template lists every known section and its flags in a stable order.
var template = []struct {
	section string
	flags   map[Action]string
	extra   []string
}{
	{"clientes", map[Action]string{ActionView: "ver_clientes", ActionCreate: "criar_clientes", ActionUpdate: "editar_clientes", ActionDelete: "excluir_clientes"}, nil},
	{"estoque", map[Action]string{ActionView: "ver_estoque", ActionCreate: "criar_produtos", ActionUpdate: "editar_produtos", ActionDelete: "excluir_produtos"}, nil},
	{"vendas", map[Action]string{ActionView: "ver_vendas", ActionCreate: "criar_vendas", ActionUpdate: "editar_vendas", ActionDelete: "cancelar_vendas"}, nil},
	{"caixa", map[Action]string{ActionView: "ver_caixa", ActionCreate: "abrir_caixa", ActionUpdate: "fechar_caixa", ActionDelete: "excluir_caixa"}, nil},
	{"lojas", map[Action]string{ActionView: "ver_lojas", ActionCreate: "criar_lojas", ActionUpdate: "editar_lojas", ActionDelete: "excluir_lojas"}, nil},
	{"usuarios", map[Action]string{ActionView: "ver_usuarios", ActionCreate: "criar_usuarios", ActionUpdate: "editar_usuarios", ActionDelete: "excluir_usuarios"}, []string{"editar_permissoes"}},
	{"logs", map[Action]string{ActionView: "ver_logs"}, nil},
	{"relatorios", map[Action]string{ActionView: "ver_relatorios"}, []string{"gerar_pdf"}},
}

// Defaults returns a fresh all-false map covering every known flag.
func Defaults() Map {
	sections := make(Sections, len(template))
	for _, s := range template {
		flags := make(map[string]bool, len(s.flags)+len(s.extra))
		for _, f := range s.flags {
			flags[f] = false
		}
		for _, f := range s.extra {
			flags[f] = false
		}
		sections[s.section] = flags
	}
	return Map{Sections: sections}
}

// Merge overlays stored onto the default template section by section, so
// flags introduced after stored was written read as false instead of being
// absent. Unknown sections and flags in stored are kept.
func Merge(stored Map) Map {
	out := Defaults()
	out.LojaID = stored.LojaID
	for section, flags := range stored.Sections {
		dst, ok := out.Sections[section]
		if !ok {
			dst = make(map[string]bool, len(flags))
			out.Sections[section] = dst
		}
		for name, v := range flags {
			dst[name] = v
		}
	}
	return out
}

// Can reports whether flag in section is granted. Unknown entries are false.
func (m Map) Can(section, flag string) bool {
	return m.Sections[section][flag]
}

// SeesStore reports whether the actor may see data of store lojaID.
func (m Map) SeesStore(lojaID int64) bool {
	return m.LojaID == nil || *m.LojaID == lojaID
}

// Set grants or revokes one flag, creating the section when needed.
func (m *Map) Set(section, flag string, value bool) {
	if m.Sections == nil {
		m.Sections = Sections{}
	}
	if m.Sections[section] == nil {
		m.Sections[section] = map[string]bool{}
	}
	m.Sections[section][flag] = value
}

// Clone deep-copies m.
func (m Map) Clone() Map {
	out := Map{Sections: make(Sections, len(m.Sections))}
	if m.LojaID != nil {
		v := *m.LojaID
		out.LojaID = &v
	}
	for section, flags := range m.Sections {
		cp := make(map[string]bool, len(flags))
		for k, v := range flags {
			cp[k] = v
		}
		out.Sections[section] = cp
	}
	return out
}

// FlagFor returns the section and flag guarding action on table.
func FlagFor(table string, action Action) (string, string, error) {
	for _, s := range template {
		if s.section != table {
			continue
		}
		flag, ok := s.flags[action]
		if !ok {
			return "", "", fmt.Errorf("no %s permission for %s", action, table)
		}
		return s.section, flag, nil
	}
	return "", "", fmt.Errorf("unknown table %q", table)
}

// MarshalJSON renders sections at the top level next to loja_id.
func (m Map) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Sections)+1)
	for section, flags := range m.Sections {
		out[section] = flags
	}
	out[LojaKey] = m.LojaID
	return json.Marshal(out)
}

func (m *Map) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = Map{Sections: Sections{}}
	for key, value := range raw {
		if key == LojaKey {
			if err := json.Unmarshal(value, &m.LojaID); err != nil {
				return fmt.Errorf("loja_id: %w", err)
			}
			continue
		}
		var flags map[string]bool
		if err := json.Unmarshal(value, &flags); err != nil {
			return fmt.Errorf("section %s: %w", key, err)
		}
		m.Sections[key] = flags
	}
	return nil
}

// FromAny decodes a map produced by a JSON decoder (or a record column)
// into a Map. Shapes that do not fit are skipped rather than rejected, so a
// malformed push payload still yields a usable map once merged.
func FromAny(v any) Map {
	out := Map{Sections: Sections{}}
	raw, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for key, value := range raw {
		if key == LojaKey {
			out.LojaID = toInt64Ptr(value)
			continue
		}
		flagsRaw, ok := value.(map[string]any)
		if !ok {
			continue
		}
		flags := make(map[string]bool, len(flagsRaw))
		for name, fv := range flagsRaw {
			if b, ok := fv.(bool); ok {
				flags[name] = b
			}
		}
		out.Sections[key] = flags
	}
	return out
}

// FromRow builds a Map out of a permissoes row: {"loja_id", "permissoes"}.
func FromRow(row map[string]any) Map {
	m := FromAny(row["permissoes"])
	if v, ok := row[LojaKey]; ok {
		m.LojaID = toInt64Ptr(v)
	}
	return m
}

func toInt64Ptr(v any) *int64 {
	var n int64
	switch value := v.(type) {
	case float64:
		n = int64(value)
	case int64:
		n = value
	case int:
		n = int64(value)
	default:
		return nil
	}
	return &n
}
