// Package investing scrapes daily history tables from investing.com style pages.
//
// The index page lists stocks in a table whose tbody class contains "datatable";
// every row links to a quote page whose history lives under "<link>-historical-data"
// in a table whose class contains "freeze-column"
package investing

import (
	"context"
	stderrs "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stockpipe/internal/core/normalize"
	perr "stockpipe/internal/platform/errors"
	"stockpipe/internal/platform/logger"
	"stockpipe/internal/platform/retry"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	historySuffix    = "-historical-data"
	maxPageBytes     = 16 << 20
)

// Config configures the scraper
type Config struct {
	Endpoint        string        // index page, e.g. https://www.investing.com
	Timeout         time.Duration // per request; <=0 -> 10s
	MaxRetries      int           // attempts per page including the first; <=0 -> 3
	RetryBase       time.Duration // first backoff; <=0 -> 3s
	Interval        time.Duration // minimum gap between requests; <=0 -> 2s
	MaxStocks       int           // 0 = every listed stock
	SkipUnavailable bool          // log and count stock pages that exhaust retries
	UserAgent       string
}

// Item is one history row of one stock with its cells keyed by column header
type Item struct {
	Stock string
	URL   string
	Cells []normalize.Cell
}

// Stats summarizes one scrape
type Stats struct {
	Stocks       int // stocks listed on the index page (after MaxStocks)
	Pages        int // stock pages that produced a history table
	Rows         int // items emitted
	NoTable      int // stock pages without a history table
	SkippedPages int // stock pages given up on under SkipUnavailable
}

// Link is a stock listed on the index page
type Link struct {
	Stock string
	URL   string
}

// Client fetches and parses pages
type Client struct {
	cfg     Config
	origin  *url.URL
	http    *http.Client
	limiter *rate.Limiter
	sleep   func(context.Context, time.Duration) error
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http client
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithLimiter replaces the request pacing limiter
func WithLimiter(l *rate.Limiter) Option { return func(c *Client) { c.limiter = l } }

// WithSleep replaces the backoff sleep between retries
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// New validates cfg and returns a Client
func New(cfg Config, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.Endpoint))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, perr.InvalidArgf("source endpoint %q is not an absolute url", cfg.Endpoint)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 3 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	cfg.Endpoint = u.String()

	c := &Client{
		cfg:     cfg,
		origin:  &url.URL{Scheme: u.Scheme, Host: u.Host},
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Every(cfg.Interval), 1),
		sleep:   retry.SleepCtx,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Scrape walks the index page and every listed stock page, calling emit for each
// history row in page order. token, when set, is sent as a bearer token. An emit
// error stops the scrape and is returned as is
func (c *Client) Scrape(ctx context.Context, token string, emit func(Item) error) (Stats, error) {
	log := logger.C(ctx).With().Str("component", "investing").Logger()
	var st Stats

	index, err := c.fetch(ctx, c.cfg.Endpoint, token)
	if err != nil {
		return st, err
	}
	links, err := StockLinks(index, c.origin)
	if err != nil {
		return st, err
	}
	if c.cfg.MaxStocks > 0 && len(links) > c.cfg.MaxStocks {
		links = links[:c.cfg.MaxStocks]
	}
	st.Stocks = len(links)
	log.Info().Int("stocks", len(links)).Str("endpoint", c.cfg.Endpoint).Msg("index page parsed")

	for i, l := range links {
		if err := ctx.Err(); err != nil {
			return st, perr.Wrap(err, perr.ErrorCodeCanceled, "scrape canceled")
		}
		doc, err := c.fetch(ctx, l.URL, token)
		if err != nil {
			if c.cfg.SkipUnavailable && perr.IsCode(err, perr.ErrorCodeSourceUnavailable) {
				st.SkippedPages++
				log.Warn().Err(err).Str("stock", l.Stock).Str("url", l.URL).Msg("stock page unavailable, skipping")
				continue
			}
			return st, err
		}
		headers, rows, ok := HistoryTable(doc)
		if !ok {
			st.NoTable++
			log.Warn().Str("stock", l.Stock).Str("url", l.URL).Msg("no history table, skipping")
			continue
		}
		st.Pages++
		n := 0
		for _, cells := range rows {
			if len(cells) != len(headers) {
				continue
			}
			item := Item{Stock: l.Stock, URL: l.URL, Cells: make([]normalize.Cell, len(cells))}
			for j := range cells {
				item.Cells[j] = normalize.Cell{Header: headers[j], Text: cells[j]}
			}
			if err := emit(item); err != nil {
				return st, err
			}
			n++
		}
		st.Rows += n
		log.Debug().Str("stock", l.Stock).Int("rows", n).Int("page", i+1).Int("of", len(links)).Msg("stock page scraped")
	}
	return st, nil
}

// statusError is a non 2xx answer
type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string { return fmt.Sprintf("GET %s: status %d", e.url, e.code) }

func (e *statusError) transient() bool {
	return e.code == http.StatusTooManyRequests || e.code == http.StatusRequestTimeout || e.code >= 500
}

func classify(ctx context.Context, err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.transient()
	}
	return retry.Transient(ctx, err)
}

// failureCode maps a definitive answer from the source to a non-retryable code;
// exhausted transient failures stay SourceUnavailable
func failureCode(err error) perr.ErrorCode {
	var se *statusError
	if stderrs.As(err, &se) && !se.transient() {
		if se.code == http.StatusNotFound || se.code == http.StatusGone {
			return perr.ErrorCodeNotFound
		}
		return perr.ErrorCodeInvalidArgument
	}
	if perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		return perr.ErrorCodeInvalidArgument
	}
	return perr.ErrorCodeSourceUnavailable
}

// fetch GETs and parses one page with pacing and bounded retries. A 4xx surfaces
// as NotFound or InvalidArgument, anything else but cancellation as SourceUnavailable
func (c *Client) fetch(ctx context.Context, u, token string) (*goquery.Document, error) {
	var doc *goquery.Document
	p := retry.Policy{
		Attempts: c.cfg.MaxRetries,
		Base:     c.cfg.RetryBase,
		Sleep:    c.sleep,
		Classify: classify,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			logger.C(ctx).Warn().Err(err).Str("url", u).Int("attempt", attempt).Dur("backoff", wait).Msg("page fetch failed, retrying")
		},
	}
	err := p.Do(ctx, func(ctx context.Context, _ int) error {
		d, err := c.get(ctx, u, token)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	switch {
	case err == nil:
		return doc, nil
	case perr.IsCode(err, perr.ErrorCodeCanceled) || ctx.Err() != nil:
		return nil, perr.Wrapf(err, perr.ErrorCodeCanceled, "fetch %s canceled", u)
	default:
		return nil, perr.Wrapf(err, failureCode(err), "fetch %s", u)
	}
}

func (c *Client) get(ctx context.Context, u, token string) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "build request for %s", u)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode, url: u}
	}
	return goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
}
