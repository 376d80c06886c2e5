package record

import (
	"math"
	"testing"
	"time"

	perr "stockpipe/internal/platform/errors"
	kit "stockpipe/internal/platform/testkit"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func sample() Record {
	return New(
		Field{FieldStockName, String("Apple")},
		Field{FieldDate, Date(day(2025, time.March, 14))},
		Field{FieldPrice, Float(213.49)},
		Field{FieldVol, Float(60_110_000)},
		Field{FieldChange, Null(KindFloat)},
	)
}

func TestRecordSetKeepsPosition(t *testing.T) {
	t.Parallel()
	r := sample()
	r.Set(FieldStockName, String("Apple Inc"))
	r.Set(FieldLow, Float(1))
	names := r.Names()
	if names[0] != FieldStockName || names[len(names)-1] != FieldLow {
		t.Fatalf("names = %v", names)
	}
	if v, _ := r.Get(FieldStockName); v.Str() != "Apple Inc" {
		t.Fatalf("Set did not replace in place: %q", v.Str())
	}
	if r.Len() != 6 {
		t.Fatalf("Len = %d", r.Len())
	}
}

func TestMarshalOrderedAndDecode(t *testing.T) {
	t.Parallel()
	r := sample()
	b, err := r.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	want := `{"stock_name":"Apple","Date":"2025-03-14","Price":213.49,"Vol":6.011e+07,"Change":null}`
	if string(b) != want {
		t.Fatalf("MarshalJSON =\n%s\nwant\n%s", b, want)
	}

	got, err := Decode(b, StockSchema(""))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.Equal(r) {
		t.Fatalf("decoded record differs:\n%+v\n%+v", got.Fields(), r.Fields())
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()
	s := StockSchema("")
	cases := map[string]string{
		"not object":   `[1,2]`,
		"bad date":     `{"Date":"14/03/2025"}`,
		"duplicate":    `{"Price":1,"Price":2}`,
		"trailing":     `{"Price":1} {}`,
		"nested value": `{"Price":{"x":1}}`,
		"truncated":    `{"Price":1`,
	}
	for name, in := range cases {
		if _, err := Decode([]byte(in), s); !perr.IsCode(err, perr.ErrorCodeSchemaViolation) {
			t.Fatalf("%s: want schema violation, got %v", name, err)
		}
	}
}

func TestDecodeKeepsUnknownForValidate(t *testing.T) {
	t.Parallel()
	s := StockSchema("")
	r, err := Decode([]byte(`{"stock_name":"X","Date":"2025-01-02","Extra":"y"}`), s)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	err = s.Validate(r)
	kit.MustCode(t, err, perr.ErrorCodeSchemaViolation)
	if e, _ := perr.As(err); e.Field() != "Extra" {
		t.Fatalf("field = %q", e.Field())
	}
}

func TestSchemaValidate(t *testing.T) {
	t.Parallel()
	s := StockSchema("")
	if err := s.Validate(sample()); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	missingDate := New(Field{FieldStockName, String("Apple")})
	wrongKind := sample()
	wrongKind.Set(FieldPrice, String("213.49"))
	blankName := sample()
	blankName.Set(FieldStockName, String("  "))
	nullKey := sample()
	nullKey.Set(FieldDate, Null(KindDate))

	cases := []struct {
		name  string
		r     Record
		field string
	}{
		{"missing required", missingDate, FieldDate},
		{"kind mismatch", wrongKind, FieldPrice},
		{"blank required string", blankName, FieldStockName},
		{"null required", nullKey, FieldDate},
	}
	for _, c := range cases {
		err := s.Validate(c.r)
		if !perr.IsCode(err, perr.ErrorCodeSchemaViolation) {
			t.Fatalf("%s: want schema violation, got %v", c.name, err)
		}
		if e, _ := perr.As(err); e.Field() != c.field {
			t.Fatalf("%s: field = %q, want %q", c.name, e.Field(), c.field)
		}
	}
}

func TestSchemaKeyDeterministic(t *testing.T) {
	t.Parallel()
	s := StockSchema("")
	a, err := s.Key(sample())
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	other := sample()
	other.Set(FieldPrice, Float(1)) // non-key fields do not change identity
	b, _ := s.Key(other)
	if a != b {
		t.Fatalf("identity changed with non-key field: %s vs %s", a, b)
	}
	next := sample()
	next.Set(FieldDate, Date(day(2025, time.March, 17)))
	c, _ := s.Key(next)
	if a == c {
		t.Fatalf("different dates share identity")
	}
	if _, err := s.Key(New(Field{FieldStockName, String("x")})); !perr.IsCode(err, perr.ErrorCodeSchemaViolation) {
		t.Fatalf("missing key field should fail, got %v", err)
	}
}

func TestSchemaCheckAndProject(t *testing.T) {
	t.Parallel()
	s := StockSchema("Daily")
	if err := s.Check(); err != nil {
		t.Fatalf("stock schema invalid: %v", err)
	}
	if len(s.KeyFields) != 2 || s.KeyFields[0] != FieldStockName || s.KeyFields[1] != FieldDate {
		t.Fatalf("stock key fields = %v", s.KeyFields)
	}
	bad := s
	bad.KeyFields = []string{FieldPrice}
	kit.MustCode(t, bad.Check(), perr.ErrorCodeInvalidArgument)
	bad.KeyFields = nil
	kit.MustCode(t, bad.Check(), perr.ErrorCodeInvalidArgument)

	vals := s.Project(sample())
	if len(vals) != len(s.Fields) {
		t.Fatalf("Project len = %d", len(vals))
	}
	if !vals[3].IsNull() || vals[3].Kind() != KindFloat { // Open absent
		t.Fatalf("absent optional should project as typed null: %+v", vals[3])
	}
}

func TestValueBasics(t *testing.T) {
	t.Parallel()
	d := Date(time.Date(2025, 3, 14, 23, 30, 0, 0, time.FixedZone("x", -5*3600)))
	if d.Canonical() != "2025-03-14" {
		t.Fatalf("Date keeps the wall-clock day, got %s", d.Canonical())
	}
	if Float(math.NaN()).Any() == nil {
		t.Fatalf("Any should return payload")
	}
	if b, _ := Float(math.Inf(1)).MarshalJSON(); string(b) != "null" {
		t.Fatalf("Inf should encode as null, got %s", b)
	}
	if Null(KindString).Any() != nil {
		t.Fatalf("null Any should be nil")
	}
	if KindDate.String() != "DATE" || Kind(42).String() != "Kind(42)" {
		t.Fatalf("Kind names mismatch")
	}
	if !Int(3).Equal(Int(3)) || Int(3).Equal(Float(3)) {
		t.Fatalf("Equal mismatch")
	}
}
