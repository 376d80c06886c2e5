package validate

import (
	"testing"

	perr "stockpipe/internal/platform/errors"
	kit "stockpipe/internal/platform/testkit"
)

type opts struct {
	BatchSize int    `env:"BATCH_SIZE" validate:"min=1,max=10000"`
	Dataset   string `env:"DATASET" validate:"required,ident"`
	Email     string `json:"client_email" validate:"omitempty,email"`
}

func TestStructOK(t *testing.T) {
	t.Parallel()
	if err := Struct(opts{BatchSize: 500, Dataset: "StockMktData"}); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestStructFailures(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		in    opts
		field string
		msg   string
	}{
		{"min", opts{BatchSize: 0, Dataset: "d"}, "BATCH_SIZE", "BATCH_SIZE must be at least 1"},
		{"max", opts{BatchSize: 20000, Dataset: "d"}, "BATCH_SIZE", "BATCH_SIZE must be at most 10000"},
		{"ident", opts{BatchSize: 1, Dataset: "stock-data"}, "DATASET", "warehouse identifier"},
		{"email", opts{BatchSize: 1, Dataset: "d", Email: "nope"}, "client_email", "client_email"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := Struct(c.in)
			kit.MustCode(t, err, perr.ErrorCodeInvalidArgument)
			e, _ := perr.As(err)
			if e.Field() != c.field {
				t.Fatalf("field = %q, want %q", e.Field(), c.field)
			}
			kit.MustContain(t, err.Error(), c.msg)
		})
	}
}

func TestStructInvalidInput(t *testing.T) {
	t.Parallel()
	kit.MustCode(t, Struct(42), perr.ErrorCodeUnknown)
}
