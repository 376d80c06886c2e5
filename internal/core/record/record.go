package record

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	perr "stockpipe/internal/platform/errors"
)

// Field is one named value of a Record
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered mapping of field name to typed value
type Record struct {
	fields []Field
}

// New builds a record from fields in order; later duplicates replace earlier ones in place
func New(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

// Set assigns name, keeping its original position when it already exists
func (r *Record) Set(name string, v Value) {
	for i := range r.fields {
		if r.fields[i].Name == name {
			r.fields[i].Value = v
			return
		}
	}
	r.fields = append(r.fields, Field{Name: name, Value: v})
}

// Get returns the value for name
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Len returns the number of fields
func (r Record) Len() int { return len(r.fields) }

// Fields returns a copy of the fields in order
func (r Record) Fields() []Field { return append([]Field(nil), r.fields...) }

// Names returns the field names in order
func (r Record) Names() []string {
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = f.Name
	}
	return out
}

// Equal reports whether both records hold the same fields in the same order
func (r Record) Equal(o Record) bool {
	if len(r.fields) != len(o.fields) {
		return false
	}
	for i := range r.fields {
		if r.fields[i].Name != o.fields[i].Name || !r.fields[i].Value.Equal(o.fields[i].Value) {
			return false
		}
	}
	return true
}

// MarshalJSON writes a JSON object whose key order matches the record
func (r Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		v, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Decode parses one JSON object into a Record, keeping key order. Values of
// fields known to s are coerced to the declared kind when the JSON shape allows;
// anything else keeps its natural kind so Validate can report it
func Decode(data []byte, s Schema) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Record{}, perr.Wrap(err, perr.ErrorCodeSchemaViolation, "record is not a JSON object")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Record{}, perr.SchemaViolationf("record is not a JSON object")
	}

	var r Record
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return Record{}, perr.Wrap(err, perr.ErrorCodeSchemaViolation, "malformed record")
		}
		name, _ := kt.(string)

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return Record{}, perr.WithField(perr.Wrap(err, perr.ErrorCodeSchemaViolation, "malformed value"), name)
		}
		spec, known := s.Field(name)
		v, err := coerce(raw, spec.Kind, known)
		if err != nil {
			return Record{}, perr.WithField(err, name)
		}
		if _, dup := r.Get(name); dup {
			return Record{}, perr.WithField(perr.SchemaViolationf("duplicate field %q", name), name)
		}
		r.fields = append(r.fields, Field{Name: name, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return Record{}, perr.Wrap(err, perr.ErrorCodeSchemaViolation, "malformed record")
	}
	if _, err := dec.Token(); err != io.EOF {
		return Record{}, perr.SchemaViolationf("trailing data after record")
	}
	return r, nil
}

func coerce(raw any, want Kind, known bool) (Value, error) {
	if raw == nil {
		if known {
			return Null(want), nil
		}
		return Null(KindString), nil
	}
	switch x := raw.(type) {
	case bool:
		return Bool(x), nil
	case json.Number:
		if known && want == KindInt {
			if i, err := x.Int64(); err == nil {
				return Int(i), nil
			}
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, perr.Wrap(err, perr.ErrorCodeSchemaViolation, "invalid number")
		}
		return Float(f), nil
	case string:
		if known {
			switch want {
			case KindDate:
				t, err := time.Parse(DateLayout, x)
				if err != nil {
					return Value{}, perr.Wrapf(err, perr.ErrorCodeSchemaViolation, "invalid date %q", x)
				}
				return Date(t), nil
			case KindTimestamp:
				t, err := time.Parse(time.RFC3339Nano, x)
				if err != nil {
					return Value{}, perr.Wrapf(err, perr.ErrorCodeSchemaViolation, "invalid timestamp %q", x)
				}
				return Timestamp(t), nil
			}
		}
		return String(x), nil
	}
	return Value{}, perr.SchemaViolationf("unsupported JSON value %T", raw)
}
