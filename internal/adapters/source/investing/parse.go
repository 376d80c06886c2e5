package investing

import (
	"net/url"
	"strings"

	"stockpipe/internal/core/normalize"
	perr "stockpipe/internal/platform/errors"

	"github.com/PuerkitoBio/goquery"
)

// StockLinks lists the stocks of the index page in page order. Rows without an
// anchor are ignored; a page without the listing table is an error
func StockLinks(doc *goquery.Document, origin *url.URL) ([]Link, error) {
	tbody := doc.Find(`tbody[class*="datatable"]`).First()
	if tbody.Length() == 0 {
		return nil, perr.SourceUnavailablef("index page has no stock table")
	}
	var out []Link
	tbody.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		a := tr.Find("a").First()
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		name := normalize.Text(a.Text())
		if name == "" {
			return
		}
		out = append(out, Link{Stock: name, URL: HistoryURL(origin, href)})
	})
	return out, nil
}

// HistoryURL resolves href against origin and points it at the history page
func HistoryURL(origin *url.URL, href string) string {
	href = strings.TrimSpace(href)
	base := strings.TrimRight(origin.String(), "/")
	switch {
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href + historySuffix
	case strings.HasPrefix(href, "/"):
		return base + href + historySuffix
	default:
		return base + "/" + href + historySuffix
	}
}

// HistoryTable returns the header texts and cell texts of the first history
// table on a stock page; ok is false when the page has none
func HistoryTable(doc *goquery.Document) (headers []string, rows [][]string, ok bool) {
	table := doc.Find(`table[class*="freeze-column"]`).First()
	if table.Length() == 0 {
		return nil, nil, false
	}
	table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(th.Text()))
	})
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})
		rows = append(rows, cells)
	})
	return headers, rows, len(headers) > 0
}
