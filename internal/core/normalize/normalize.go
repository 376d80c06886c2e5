// Package normalize turns scraped history-table cells into typed stock records.
// Text pipeline for names and headers
// 1 UTF-8 repair drop invalid bytes
// 2 Unicode NFKC normalization
// 3 Remove format characters (zero-width joiners, BOM, soft hyphen)
// 4 Width fold fullwidth to ASCII
// 5 Collapse whitespace to single spaces and trim
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			runes.Remove(runes.In(unicode.Cf)),
			width.Fold,
		)
	},
}

// Text returns the cleaned form of s following the pipeline above
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	tr := chainPool.Get().(transform.Transformer)
	ns, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		ns = s
	}
	return strings.Join(strings.Fields(ns), " ")
}
