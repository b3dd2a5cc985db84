// Package query submits natural-language questions to the query service
// and holds the latest result.
package query

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fastjson"

	"github.com/nixlim/hometop/internal/telemetry"
	"github.com/nixlim/hometop/internal/trace"
)

// QueryPath is the endpoint questions are posted to.
const QueryPath = "/api/query"

const maxBodyBytes = 32 << 20

// QueryError is returned for every failed submission. Message is the text
// shown in the error banner.
type QueryError struct {
	Message string
	Status  int
	Err     error
}

func (e *QueryError) Error() string {
	return e.Message
}

func (e *QueryError) Unwrap() error { return e.Err }

// Result is a tabular query answer. TotalRows may exceed len(Rows).
type Result struct {
	Columns   []string
	Rows      []map[string]any
	TotalRows int
	SQL       string

	// Records holds every row decoded as a log record, so the dashboard
	// tabs can run on query results. Columns a row lacks stay empty.
	Records []telemetry.LogRecord
}

// HasRows reports whether the result carries any rows.
func (r *Result) HasRows() bool {
	return r != nil && len(r.Rows) > 0
}

// Snapshot is a consistent view of the service state.
type Snapshot struct {
	Loading    bool
	Result     *Result
	SQL        string
	Err        error
	Generation uint64
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient sets the HTTP client used for submissions.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		s.client = c
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.client = &http.Client{Timeout: d}
	}
}

// WithLocation sets the location zone-less timestamps in rows are read in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		s.decoder = telemetry.NewDecoder(loc)
	}
}

// WithTrace sets the diagnostic trace logger.
func WithTrace(l trace.Logger) Option {
	return func(s *Service) {
		s.trace = l
	}
}

// Service posts questions to the query endpoint. It is safe for concurrent
// use; when submissions overlap, the last one to complete wins.
type Service struct {
	url     string
	client  *http.Client
	decoder *telemetry.Decoder
	trace   trace.Logger
	parsers fastjson.ParserPool

	mu         sync.RWMutex
	inflight   int
	result     *Result
	sql        string
	err        error
	generation uint64
}

// New creates a Service posting to baseURL + QueryPath.
func New(baseURL string, opts ...Option) *Service {
	s := &Service{
		url:     strings.TrimRight(baseURL, "/") + QueryPath,
		client:  &http.Client{Timeout: 60 * time.Second},
		decoder: telemetry.NewDecoder(nil),
		trace:   trace.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL returns the endpoint questions are posted to.
func (s *Service) URL() string {
	return s.url
}

// Execute submits text and records the outcome. On failure the previous
// result and SQL are cleared and the returned error is a *QueryError.
func (s *Service) Execute(ctx context.Context, text string) (Result, error) {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()

	start := time.Now()
	res, err := s.submit(ctx, text)

	s.mu.Lock()
	s.inflight--
	if err != nil {
		s.result = nil
		s.sql = ""
		s.err = err
	} else {
		r := res
		s.result = &r
		s.sql = res.SQL
		s.err = nil
	}
	s.generation++
	s.mu.Unlock()

	s.trace.LogQuery(trace.QueryEvent{
		Query:     text,
		SQL:       res.SQL,
		Rows:      len(res.Rows),
		TotalRows: res.TotalRows,
		Duration:  time.Since(start),
		Err:       err,
	})
	return res, err
}

func (s *Service) submit(ctx context.Context, text string) (Result, error) {
	payload := requestBody(text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, &QueryError{Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, &QueryError{Message: fmt.Sprintf("query service unreachable: %v", err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{}, &QueryError{Message: fmt.Sprintf("reading query response: %v", err), Status: resp.StatusCode, Err: err}
	}
	return s.decode(resp.StatusCode, body)
}

// requestBody encodes {"query": text, "execute": true}.
func requestBody(text string) []byte {
	var a fastjson.Arena
	o := a.NewObject()
	o.Set("query", a.NewString(text))
	o.Set("execute", a.NewTrue())
	return o.MarshalTo(nil)
}

// decode interprets a query response. An error field wins over the HTTP
// status; a non-2xx status without one is still a failure.
func (s *Service) decode(status int, body []byte) (Result, error) {
	p := s.parsers.Get()
	defer s.parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		if status < 200 || status > 299 {
			return Result{}, &QueryError{Message: fmt.Sprintf("query service returned status %d", status), Status: status, Err: err}
		}
		return Result{}, &QueryError{Message: fmt.Sprintf("malformed query response: %v", err), Status: status, Err: err}
	}

	if msg := errorMessage(v.Get("error")); msg != "" {
		return Result{}, &QueryError{Message: msg, Status: status}
	}
	if status < 200 || status > 299 {
		return Result{}, &QueryError{Message: fmt.Sprintf("query service returned status %d", status), Status: status}
	}

	res := Result{SQL: string(v.GetStringBytes("sql"))}
	results := v.Get("results")
	if results == nil || results.Type() != fastjson.TypeObject {
		return res, nil
	}

	for _, c := range results.GetArray("columns") {
		if b, err := c.StringBytes(); err == nil {
			res.Columns = append(res.Columns, string(b))
		}
	}
	for _, row := range results.GetArray("data") {
		if row.Type() != fastjson.TypeObject {
			continue
		}
		res.Rows = append(res.Rows, telemetry.ToAny(row).(map[string]any))
		if rec, ok := s.decoder.Record(row); ok {
			res.Records = append(res.Records, rec)
		}
	}
	if results.Exists("total_rows") {
		res.TotalRows = results.GetInt("total_rows")
	} else {
		res.TotalRows = len(res.Rows)
	}
	if len(res.Columns) == 0 && len(res.Rows) > 0 {
		res.Columns = columnsOf(results.GetArray("data")[0])
	}
	return res, nil
}

// errorMessage returns the text of an error field. FastAPI-style detail
// objects and other non-string values are rendered as JSON.
func errorMessage(v *fastjson.Value) string {
	if v == nil {
		return ""
	}
	switch v.Type() {
	case fastjson.TypeNull, fastjson.TypeFalse:
		return ""
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return string(b)
	default:
		return v.String()
	}
}

func columnsOf(row *fastjson.Value) []string {
	var cols []string
	obj, err := row.Object()
	if err != nil {
		return nil
	}
	obj.Visit(func(key []byte, _ *fastjson.Value) {
		cols = append(cols, string(key))
	})
	return cols
}

// Snapshot returns the current state.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Loading:    s.inflight > 0,
		Result:     s.result,
		SQL:        s.sql,
		Err:        s.err,
		Generation: s.generation,
	}
}

// Loading reports whether a submission is in flight.
func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Generation increases every time a submission completes.
func (s *Service) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
