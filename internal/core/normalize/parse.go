package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	perr "stockpipe/internal/platform/errors"
)

// dateLayouts are tried in order; history tables have used both the long and the US numeric form
var dateLayouts = []string{
	"Jan 02, 2006",
	"Jan 2, 2006",
	"01/02/2006",
	"2006-01-02",
	"02.01.2006",
}

// nullish cells carry no value
func nullish(s string) bool {
	switch strings.ToLower(s) {
	case "", "-", "--", "nan", "n/a", "na", "null":
		return true
	}
	return false
}

// ParseNumber parses a price-like cell: thousands separators are dropped, a leading
// plus is allowed. ok=false means the cell is empty. Only finite decimal notation
// is accepted
func ParseNumber(s string) (f float64, ok bool, err error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if nullish(s) {
		return 0, false, nil
	}
	s = strings.TrimPrefix(s, "+")
	if !decimal(s) {
		return 0, false, perr.Normalizationf("invalid number %q", s)
	}
	f, err = strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false, perr.Normalizationf("invalid number %q", s)
	}
	return f, true, nil
}

// decimal rejects the spellings ParseFloat allows beyond plain decimals (Inf, NaN, hex)
func decimal(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+', r == 'e', r == 'E':
		default:
			return false
		}
	}
	return true
}

// ParseVolume parses a volume cell with an optional K, M or B multiplier
func ParseVolume(s string) (float64, bool, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if nullish(s) {
		return 0, false, nil
	}
	mult := 1.0
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1e3
	case 'M', 'm':
		mult = 1e6
	case 'B', 'b':
		mult = 1e9
	}
	if mult != 1 {
		num := strings.TrimSpace(s[:len(s)-1])
		if num == "" {
			return 0, false, perr.Normalizationf("volume %q has no number", s)
		}
		s = num
	}
	f, ok, err := ParseNumber(s)
	if err != nil || !ok {
		return 0, ok, err
	}
	return f * mult, true, nil
}

// ParsePercent parses a change cell such as "-1.25%"
func ParsePercent(s string) (float64, bool, error) {
	return ParseNumber(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}

// ParseDate parses a trading day in any of the known layouts
func ParseDate(s string) (time.Time, error) {
	s = Text(s)
	if s == "" {
		return time.Time{}, perr.Normalizationf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, perr.Normalizationf("unrecognized date %q", s)
}
