// Package postgrest is a tables.Client for a hosted PostgREST endpoint
// (for example a Supabase project), speaking its REST dialect over HTTP.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	fxerrors "github.com/chazuruo/flowdex/internal/errors"
	"github.com/chazuruo/flowdex/internal/logging"
	"github.com/chazuruo/flowdex/internal/tables"
)

const restPrefix = "/rest/v1/"

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 4 << 10

// Client talks to a PostgREST endpoint.
type Client struct {
	base   *url.URL
	apiKey string
	http   *retryablehttp.Client
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.HTTPClient.Timeout = d }
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.http.RetryMax = n }
}

// WithBackoff sets the wait bounds between retries.
func WithBackoff(minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		c.http.RetryWaitMin = minWait
		c.http.RetryWaitMax = maxWait
	}
}

// WithLogger sets the logger, which also receives retry events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logging.OrNop(l)
		c.http.Logger = leveledLogger{c.logger.Sugar()}
	}
}

// New returns a Client for baseURL authenticated with apiKey.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fxerrors.Mark(errors.New("base url is required"), fxerrors.ErrInvalid)
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fxerrors.Mark(fmt.Errorf("parse base url: %w", err), fxerrors.ErrInvalid)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fxerrors.Mark(fmt.Errorf("base url %q must be http or https", baseURL), fxerrors.ErrInvalid)
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.RetryMax = 1
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	// Hand the last response back instead of a generic "giving up" error,
	// so status codes can still be classified.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		base:   base,
		apiKey: apiKey,
		http:   rc,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Select implements tables.Client.
func (c *Client) Select(ctx context.Context, q tables.Query) ([]tables.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, &fxerrors.CatalogError{Op: "select", Table: q.Table, Err: fxerrors.Mark(err, fxerrors.ErrRejected)}
	}

	endpoint := c.endpoint(q.Table, selectParams(q))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &fxerrors.CatalogError{Op: "select", Table: q.Table, Err: fxerrors.Mark(err, fxerrors.ErrInvalid)}
	}
	c.authorize(req)

	records, err := c.do(req)
	if err != nil {
		return nil, &fxerrors.CatalogError{Op: "select", Table: q.Table, Err: err}
	}
	return records, nil
}

// Insert implements tables.Client.
func (c *Client) Insert(ctx context.Context, table string, rows []tables.Record) ([]tables.Record, error) {
	if err := tables.ValidateIdent(table); err != nil {
		return nil, &fxerrors.CatalogError{Op: "insert", Table: table, Err: fxerrors.Mark(err, fxerrors.ErrRejected)}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rows)
	if err != nil {
		return nil, &fxerrors.CatalogError{Op: "insert", Table: table, Err: fxerrors.Mark(err, fxerrors.ErrInvalid)}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(table, nil), body)
	if err != nil {
		return nil, &fxerrors.CatalogError{Op: "insert", Table: table, Err: fxerrors.Mark(err, fxerrors.ErrInvalid)}
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	records, err := c.do(req)
	if err != nil {
		return nil, &fxerrors.CatalogError{Op: "insert", Table: table, Err: err}
	}
	return records, nil
}

func (c *Client) endpoint(table string, params url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + restPrefix + table
	u.RawQuery = params.Encode()
	return u.String()
}

func (c *Client) authorize(req *retryablehttp.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) do(req *retryablehttp.Request) ([]tables.Record, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fxerrors.Mark(err, fxerrors.ErrCanceled)
		}
		return nil, fxerrors.Mark(err, fxerrors.ErrUnavailable)
	}
	defer resp.Body.Close()

	c.logger.Debug("postgrest request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fxerrors.Mark(fmt.Errorf("read response: %w", err), fxerrors.ErrUnavailable)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var records []tables.Record
	if err := dec.Decode(&records); err != nil {
		return nil, fxerrors.Mark(fmt.Errorf("decode response: %w", err), fxerrors.ErrRejected)
	}
	return records, nil
}

// apiError is the PostgREST error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := strings.TrimSpace(string(data))
	var body apiError
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		msg = body.Message
		if body.Code != "" {
			msg = body.Code + ": " + msg
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	err := fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fxerrors.Mark(err, fxerrors.ErrUnavailable)
	}
	return fxerrors.Mark(err, fxerrors.ErrRejected)
}

// selectParams encodes q in PostgREST's query dialect.
func selectParams(q tables.Query) url.Values {
	params := url.Values{}

	sel := "*"
	if q.Join != nil {
		sel = fmt.Sprintf("*,%s!%s(%s)", q.Join.Table, q.Join.ForeignKey, strings.Join(q.Join.Columns, ","))
	}
	params.Set("select", sel)

	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	}

	cols := make([]string, 0, len(q.Eq))
	for col := range q.Eq {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		if q.Eq[col] == nil {
			params.Add(col, "is.null")
			continue
		}
		params.Add(col, "eq."+formatValue(q.Eq[col]))
	}

	if q.Limit > 0 {
		params.Set("limit", fmt.Sprint(q.Limit))
	}
	return params
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	}
	return fmt.Sprint(v)
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
