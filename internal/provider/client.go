package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownFormat is returned when a provider response matches none of the
// tolerated page shapes.
var ErrUnknownFormat = errors.New("provider: unknown payload format, expected list or {\"results\": [...]}")

type Config struct {
	BaseURL     string
	Timeout     time.Duration // per-request timeout, default 10s
	MaxRetries  int           // attempts per page, default 3
	BackoffUnit time.Duration // backoff = unit * 2^(attempt-1), default 1s
}

// Client fetches paginated event data from the remote provider. It is the
// only layer that absorbs transient remote failures: each page fetch is
// retried with exponential backoff up to MaxRetries, then the last error is
// surfaced as final for the attempt.
type Client struct {
	baseURL     string
	http        *http.Client
	maxRetries  int
	backoffUnit time.Duration
	log         *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		http:        &http.Client{Timeout: cfg.Timeout},
		maxRetries:  cfg.MaxRetries,
		backoffUnit: cfg.BackoffUnit,
		log:         log,
	}
}

// Page is one decoded provider response.
type Page struct {
	Records []json.RawMessage
	Next    string // follow-up cursor URL, empty on the last page
}

// FetchPage GETs one page with bounded retries. Non-2xx statuses and network
// errors count as transient; an unrecognized body shape does not and fails
// immediately after a successful fetch.
func (c *Client) FetchPage(ctx context.Context, rawURL string, params url.Values) (*Page, error) {
	body, err := c.getWithRetries(ctx, rawURL, params)
	if err != nil {
		return nil, err
	}

	return decodePage(body)
}

func (c *Client) getWithRetries(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	target := rawURL
	if len(params) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("provider: parse url %q: %w", rawURL, err)
		}
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Set(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		body, err := c.getOnce(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if attempt >= c.maxRetries {
			break
		}

		backoff := c.backoffUnit << (attempt - 1)
		c.log.Warn("provider request failed, backing off",
			zap.String("url", target),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	c.log.Error("provider request exhausted retries",
		zap.String("url", target),
		zap.Int("attempts", c.maxRetries),
		zap.Error(lastErr),
	)

	return nil, lastErr
}

func (c *Client) getOnce(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("provider: GET %s status=%d", target, res.StatusCode)
	}

	return io.ReadAll(res.Body)
}

// decodePage resolves the three tolerated response shapes once, at the
// boundary:
//
//	{"results": [...], "next": <url-or-null>}  cursor pagination
//	[...]                                      single bare page
//	{"anything": [...], ...}                   first list-valued field wins
func decodePage(data []byte) (*Page, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrUnknownFormat
	}

	switch trimmed[0] {
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("provider: decode list page: %w", err)
		}
		return &Page{Records: records}, nil

	case '{':
		var std struct {
			Results *[]json.RawMessage `json:"results"`
			Next    *string            `json:"next"`
		}
		if err := json.Unmarshal(trimmed, &std); err != nil {
			return nil, fmt.Errorf("provider: decode object page: %w", err)
		}
		if std.Results != nil {
			p := &Page{Records: *std.Results}
			if std.Next != nil {
				p.Next = *std.Next
			}
			return p, nil
		}

		if records, ok := firstListField(trimmed); ok {
			return &Page{Records: records}, nil
		}
		return nil, ErrUnknownFormat

	default:
		return nil, ErrUnknownFormat
	}
}

// firstListField walks object keys in document order and returns the first
// array-valued field.
func firstListField(data []byte) ([]json.RawMessage, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil { // opening {
		return nil, false
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil { // key
			return nil, false
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, false
		}
		v := bytes.TrimSpace(raw)
		if len(v) > 0 && v[0] == '[' {
			var records []json.RawMessage
			if err := json.Unmarshal(v, &records); err != nil {
				return nil, false
			}
			return records, true
		}
	}

	return nil, false
}

// RecordIter is a pull-based walk over all records of a paginated response.
// The caller drives iteration, so it can wrap the whole walk in its own
// transaction:
//
//	it := client.Records(ctx, "", params)
//	for it.Next() {
//		raw := it.Record()
//		...
//	}
//	if err := it.Err(); err != nil { ... }
type RecordIter struct {
	client *Client
	ctx    context.Context
	url    string
	params url.Values
	page   []json.RawMessage
	idx    int
	err    error
	done   bool
}

// Records starts an iterator at startURL (the configured base URL when
// empty). Query params are sent only with the first page; cursor URLs
// already encode them.
func (c *Client) Records(ctx context.Context, startURL string, params url.Values) *RecordIter {
	if startURL == "" {
		startURL = c.baseURL
	}

	return &RecordIter{
		client: c,
		ctx:    ctx,
		url:    startURL,
		params: params,
	}
}

// Next advances to the next record, fetching pages on demand. It returns
// false at the end of the stream or on error; check Err afterwards.
func (it *RecordIter) Next() bool {
	if it.err != nil || it.done {
		return false
	}

	for it.idx >= len(it.page) {
		if it.url == "" {
			it.done = true
			return false
		}

		page, err := it.client.FetchPage(it.ctx, it.url, it.params)
		if err != nil {
			it.err = err
			it.done = true
			return false
		}

		it.params = nil // cursor URLs carry their own query
		it.url = page.Next
		it.page = page.Records
		it.idx = 0
	}

	it.idx++

	return true
}

// Record returns the record Next advanced to.
func (it *RecordIter) Record() json.RawMessage {
	return it.page[it.idx-1]
}

func (it *RecordIter) Err() error {
	return it.err
}
