package normalize

import (
	"strings"

	"stockpipe/internal/core/record"
	perr "stockpipe/internal/platform/errors"
)

// Cell is one header/text pair from a scraped table row
type Cell struct {
	Header string
	Text   string
}

// headerAliases maps lowercased table headers to stock schema columns
var headerAliases = map[string]string{
	"date":     record.FieldDate,
	"price":    record.FieldPrice,
	"close":    record.FieldPrice,
	"last":     record.FieldPrice,
	"open":     record.FieldOpen,
	"high":     record.FieldHigh,
	"low":      record.FieldLow,
	"vol":      record.FieldVol,
	"vol.":     record.FieldVol,
	"volume":   record.FieldVol,
	"change":   record.FieldChange,
	"change %": record.FieldChange,
	"change%":  record.FieldChange,
	"% change": record.FieldChange,
	"chg %":    record.FieldChange,
}

// Column returns the schema column for a raw header, or "" when the header is not mapped
func Column(header string) string {
	return headerAliases[strings.ToLower(Text(header))]
}

// Stock normalizes history-table rows into records of record.StockSchema
type Stock struct{}

// NewStock constructs a Stock normalizer
func NewStock() *Stock { return &Stock{} }

// Normalize maps one scraped row of entity's history table to a record.
// Unmapped headers are dropped; unparsable cells, a missing name or a missing
// date yield a Normalization error naming the offending column
func (Stock) Normalize(entity string, cells []Cell) (record.Record, error) {
	name := Text(entity)
	if name == "" {
		return record.Record{}, perr.WithField(perr.Normalizationf("row has no stock name"), record.FieldStockName)
	}

	out := record.New(record.Field{Name: record.FieldStockName, Value: record.String(name)})
	sawDate := false

	for _, c := range cells {
		col := Column(c.Header)
		if col == "" {
			continue
		}
		if _, dup := out.Get(col); dup {
			return record.Record{}, perr.WithField(perr.Normalizationf("column %q mapped twice", col), col)
		}

		var (
			v   record.Value
			err error
		)
		switch col {
		case record.FieldDate:
			t, derr := ParseDate(c.Text)
			if derr != nil {
				err = derr
				break
			}
			v, sawDate = record.Date(t), true
		case record.FieldVol:
			v, err = floatValue(ParseVolume(c.Text))
		case record.FieldChange:
			v, err = floatValue(ParsePercent(c.Text))
		default:
			v, err = floatValue(ParseNumber(c.Text))
		}
		if err != nil {
			return record.Record{}, perr.WithField(perr.WithOp(err, "normalize."+col), col)
		}
		out.Set(col, v)
	}

	if !sawDate {
		return record.Record{}, perr.WithField(perr.Normalizationf("row for %q has no date", name), record.FieldDate)
	}
	return out, nil
}

func floatValue(f float64, ok bool, err error) (record.Value, error) {
	if err != nil {
		return record.Value{}, err
	}
	if !ok {
		return record.Null(record.KindFloat), nil
	}
	return record.Float(f), nil
}
