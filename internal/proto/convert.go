package proto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/varejo/internal/records"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct converts any JSON-marshalable value with an object shape into a
// Struct. Values go through encoding/json first, so typed maps, slices and
// json.Marshaler implementations are accepted.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return structpb.NewStruct(m)
}

// FromStruct decodes s into v through encoding/json.
func FromStruct(s *structpb.Struct, v any) error {
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return json.Unmarshal(b, v)
}

// String returns field of s as text. Numbers are rendered as keys are.
func String(s *structpb.Struct, field string) string {
	v, ok := s.GetFields()[field]
	if !ok {
		return ""
	}
	return records.KeyString(v.AsInterface())
}

// Bool returns field of s, false when absent.
func Bool(s *structpb.Struct, field string) bool {
	return s.GetFields()[field].GetBoolValue()
}

// Has reports whether field is present in s, even as null.
func Has(s *structpb.Struct, field string) bool {
	_, ok := s.GetFields()[field]
	return ok
}

// Record returns the object stored under field, nil when absent or not an
// object.
func Record(s *structpb.Struct, field string) records.Record {
	obj := s.GetFields()[field].GetStructValue()
	if obj == nil {
		return nil
	}
	return records.Record(obj.AsMap())
}

// Records returns the list of objects stored under field.
func Records(s *structpb.Struct, field string) []records.Record {
	list := s.GetFields()[field].GetListValue()
	out := make([]records.Record, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		if obj := v.GetStructValue(); obj != nil {
			out = append(out, records.Record(obj.AsMap()))
		}
	}
	return out
}

// File is an attachment as carried on the wire; Data is base64 encoded.
type File struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        string `json:"data"`
}

// EncodeFile prepares raw bytes for the wire.
func EncodeFile(name, contentType string, data []byte) File {
	return File{Name: name, ContentType: contentType, Data: base64.StdEncoding.EncodeToString(data)}
}

// DecodeFile reads the attachment under FieldFile and returns it with its
// decoded bytes. f is nil when the message carries none.
func DecodeFile(s *structpb.Struct) (f *File, data []byte, err error) {
	obj := s.GetFields()[FieldFile].GetStructValue()
	if obj == nil {
		return nil, nil, nil
	}
	f = &File{}
	if err := FromStruct(obj, f); err != nil {
		return nil, nil, err
	}
	data, err = base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("file data: %w", err)
	}
	return f, data, nil
}
