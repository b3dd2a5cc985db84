// Package logstore fetches the device log sequence from the logs backend
// and holds it for the dashboard.
package logstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nixlim/hometop/internal/telemetry"
	"github.com/nixlim/hometop/internal/trace"
)

// LogsPath is the endpoint serving the log sequence.
const LogsPath = "/get_logs"

// maxBodyBytes caps how much of a logs response is read.
const maxBodyBytes = 64 << 20

// FetchError describes why a fetch failed. Status is the HTTP status, or
// 0 when no response was received.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching logs from %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetching logs from %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient sets the HTTP client used for fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		s.client = c
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.client = &http.Client{Timeout: d}
	}
}

// WithLocation sets the location zone-less timestamps are read in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		s.decoder = telemetry.NewDecoder(loc)
	}
}

// WithTrace sets the diagnostic trace logger.
func WithTrace(l trace.Logger) Option {
	return func(s *Store) {
		s.trace = l
	}
}

// Store holds the most recently fetched log sequence. It is safe for
// concurrent use.
type Store struct {
	url     string
	client  *http.Client
	decoder *telemetry.Decoder
	trace   trace.Logger

	mu         sync.RWMutex
	records    []telemetry.LogRecord
	err        error
	loaded     bool
	generation uint64
}

// New creates a Store that fetches from baseURL + LogsPath.
func New(baseURL string, opts ...Option) *Store {
	s := &Store{
		url:     strings.TrimRight(baseURL, "/") + LogsPath,
		client:  &http.Client{Timeout: 30 * time.Second},
		decoder: telemetry.NewDecoder(nil),
		trace:   trace.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL returns the endpoint the store fetches from.
func (s *Store) URL() string {
	return s.url
}

// Fetch issues one GET request and replaces the held sequence. On failure
// the sequence is emptied and the returned *FetchError is kept for Err.
func (s *Store) Fetch(ctx context.Context) error {
	start := time.Now()
	records, err := s.fetch(ctx)

	s.mu.Lock()
	if err != nil {
		s.records = nil
		s.err = err
	} else {
		s.records = records
		s.err = nil
	}
	s.loaded = true
	s.generation++
	s.mu.Unlock()

	s.trace.LogFetch(trace.FetchEvent{
		URL:      s.url,
		Records:  len(records),
		Duration: time.Since(start),
		Err:      err,
	})
	return err
}

func (s *Store) fetch(ctx context.Context) ([]telemetry.LogRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &FetchError{URL: s.url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: s.url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: s.url, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: s.url, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	records, err := s.decoder.DecodeFeed(body)
	if err != nil {
		return nil, &FetchError{URL: s.url, Status: resp.StatusCode, Err: err}
	}
	return records, nil
}

// Snapshot is a consistent view of the store.
type Snapshot struct {
	Records    []telemetry.LogRecord
	Err        error
	Loaded     bool
	Generation uint64
}

// Snapshot returns the held sequence together with its generation.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Records:    s.records,
		Err:        s.err,
		Loaded:     s.loaded,
		Generation: s.generation,
	}
}

// Records returns the held sequence. The slice must not be modified.
func (s *Store) Records() []telemetry.LogRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

// Err returns the error from the last fetch, or nil.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Loaded reports whether a fetch has completed.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Generation increases every time a fetch completes.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
