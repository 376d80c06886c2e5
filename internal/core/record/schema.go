package record

import (
	"strings"

	perr "stockpipe/internal/platform/errors"

	"github.com/google/uuid"
)

// FieldSpec declares one column of a Schema
type FieldSpec struct {
	Name        string
	Kind        Kind
	Required    bool
	Description string
}

// Schema is the target table contract records are validated against
type Schema struct {
	Table     string
	Fields    []FieldSpec
	KeyFields []string // identity fields, in order
}

// keyNamespace scopes identity UUIDs to this pipeline
var keyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("stockpipe/record-key"))

// Field looks up a field spec by name
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Names returns the field names in declaration order
func (s Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Check verifies the schema itself: unique names, valid kinds, required key fields
func (s Schema) Check() error {
	if strings.TrimSpace(s.Table) == "" {
		return perr.InvalidArgf("schema has no table name")
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" || seen[f.Name] {
			return perr.InvalidArgf("schema %s: empty or duplicate field %q", s.Table, f.Name)
		}
		if f.Kind == KindInvalid || f.Kind > KindTimestamp {
			return perr.InvalidArgf("schema %s: field %q has invalid kind", s.Table, f.Name)
		}
		seen[f.Name] = true
	}
	if len(s.KeyFields) == 0 {
		return perr.InvalidArgf("schema %s: no key fields", s.Table)
	}
	for _, k := range s.KeyFields {
		f, ok := s.Field(k)
		if !ok || !f.Required {
			return perr.InvalidArgf("schema %s: key field %q must exist and be required", s.Table, k)
		}
	}
	return nil
}

// Validate checks r against the schema: no unknown fields, every required field
// present and non-null, and every value of the declared kind
func (s Schema) Validate(r Record) error {
	for _, f := range r.fields {
		spec, ok := s.Field(f.Name)
		if !ok {
			return perr.WithField(perr.SchemaViolationf("unknown field %q", f.Name), f.Name)
		}
		if f.Value.Kind() != spec.Kind {
			return perr.WithField(
				perr.SchemaViolationf("field %q is %s, want %s", f.Name, f.Value.Kind(), spec.Kind), f.Name)
		}
	}
	for _, spec := range s.Fields {
		if !spec.Required {
			continue
		}
		v, ok := r.Get(spec.Name)
		if !ok || v.IsNull() {
			return perr.WithField(perr.SchemaViolationf("required field %q is missing", spec.Name), spec.Name)
		}
		if spec.Kind == KindString && strings.TrimSpace(v.Str()) == "" {
			return perr.WithField(perr.SchemaViolationf("required field %q is empty", spec.Name), spec.Name)
		}
	}
	return nil
}

// Key derives the deterministic identity of r from the schema's key fields
func (s Schema) Key(r Record) (string, error) {
	var b strings.Builder
	for i, name := range s.KeyFields {
		v, ok := r.Get(name)
		if !ok || v.IsNull() {
			return "", perr.WithField(perr.SchemaViolationf("key field %q is missing", name), name)
		}
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(v.Canonical())
	}
	return uuid.NewSHA1(keyNamespace, []byte(b.String())).String(), nil
}

// Project returns r's values in schema order with nulls for absent optional fields
func (s Schema) Project(r Record) []Value {
	out := make([]Value, len(s.Fields))
	for i, spec := range s.Fields {
		if v, ok := r.Get(spec.Name); ok {
			out[i] = v
			continue
		}
		out[i] = Null(spec.Kind)
	}
	return out
}
