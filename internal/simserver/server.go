// Package simserver is the development backend: it stores simulated
// device logs in SQLite and serves the logs and query endpoints the
// dashboard reads.
package simserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fastjson"

	"github.com/nixlim/hometop/internal/simulator"
	"github.com/nixlim/hometop/internal/telemetry"
)

const (
	maxBodyBytes = 16 << 20
	maxSimHours  = 24 * 31
)

// Generator produces simulated events for hours starting at start.
type Generator func(start time.Time, hours int) ([]simulator.Event, error)

// Option configures a Server.
type Option func(*Server)

// WithGenerator lets POST /simulate run the simulator when no logs are
// posted.
func WithGenerator(g Generator) Option {
	return func(s *Server) { s.gen = g }
}

// WithDefaultHours sets the simulation length used when a request omits
// duration_hours.
func WithDefaultHours(h int) Option {
	return func(s *Server) { s.defaultHours = h }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.log = l }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLocation sets the location zone-less timestamps are read in.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) { s.loc = loc }
}

// Server serves the log table over HTTP.
type Server struct {
	repo         *Repo
	gen          Generator
	defaultHours int
	log          logrus.FieldLogger
	metrics      *Metrics
	loc          *time.Location
	now          func() time.Time
	parsers      fastjson.ParserPool
}

func NewServer(repo *Repo, opts ...Option) *Server {
	s := &Server{
		repo:         repo,
		defaultHours: 24,
		loc:          time.Local,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.log = l
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	return s
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the router with every route and middleware mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/get_logs", s.handleGetLogs)
	r.Post("/simulate", s.handleSimulate)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/query", s.handleQuery)
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeStatus writes the {status, code, message} envelope the logs
// endpoints use.
func writeStatus(w http.ResponseWriter, code int, message string, extra map[string]any) {
	body := map[string]any{
		"status":  "success",
		"code":    code,
		"message": message,
	}
	if code >= 400 {
		body["status"] = "error"
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, code, body)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := s.repo.Count(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "logs": n})
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	rows, err := s.repo.List(r.Context())
	if err != nil {
		s.log.WithError(err).Error("listing logs")
		writeStatus(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	data := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		var state any = row.State
		if json.Valid([]byte(row.State)) {
			state = json.RawMessage(row.State)
		}
		data = append(data, map[string]any{
			"id":          row.ID,
			"device_type": row.DeviceType,
			"device_id":   row.DeviceID,
			"user_id":     row.UserID,
			"action":      row.Action,
			"value":       row.Value,
			"function":    row.Func,
			"timestamp":   row.Timestamp.Format(time.RFC3339Nano),
			"state":       state,
		})
	}

	body := map[string]any{
		"status": "success",
		"code":   http.StatusOK,
		"data":   data,
	}
	if len(data) == 0 {
		body["message"] = "No logs found"
	}
	writeJSON(w, http.StatusOK, body)
}

// handleSimulate stores posted logs, or runs the simulator when the body
// has no logs field.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "reading body: "+err.Error(), nil)
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		writeStatus(w, http.StatusBadRequest, "No data provided", nil)
		return
	}

	p := s.parsers.Get()
	defer s.parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil || v.Type() != fastjson.TypeObject {
		writeStatus(w, http.StatusBadRequest, "body must be a JSON object", nil)
		return
	}

	if logs := v.Get("logs"); logs != nil {
		s.ingest(w, r, logs)
		return
	}
	s.generate(w, r, v)
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request, logs *fastjson.Value) {
	items, err := logs.Array()
	if err != nil {
		writeStatus(w, http.StatusUnprocessableEntity, "logs field must be an array", nil)
		return
	}

	rows := make([]LogRow, 0, len(items))
	ignored := 0
	for _, item := range items {
		row, ok := rowFromJSON(item, s.loc)
		if !ok {
			ignored++
			continue
		}
		rows = append(rows, row)
	}

	stored, err := s.repo.Insert(r.Context(), rows)
	if err != nil {
		s.log.WithError(err).Error("storing posted logs")
		writeStatus(w, http.StatusInternalServerError, "Database error: "+err.Error(), nil)
		return
	}
	s.metrics.LogsStored.Add(float64(stored))
	s.metrics.LogsIgnored.Add(float64(ignored))

	s.log.WithFields(logrus.Fields{"stored": stored, "ignored": ignored}).Info("logs received")
	writeStatus(w, http.StatusOK, fmt.Sprintf("Successfully processed %d logs", stored),
		map[string]any{"stored": stored, "ignored": ignored})
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request, v *fastjson.Value) {
	if s.gen == nil {
		writeStatus(w, http.StatusUnprocessableEntity, "logs field is required", nil)
		return
	}

	hours := s.defaultHours
	if h := v.Get("duration_hours"); h != nil {
		n, err := h.Int()
		if err != nil {
			writeStatus(w, http.StatusUnprocessableEntity, "duration_hours must be an integer", nil)
			return
		}
		hours = n
	}
	if hours <= 0 || hours > maxSimHours {
		writeStatus(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("duration_hours must be between 1 and %d", maxSimHours), nil)
		return
	}

	start := s.now().Add(-time.Duration(hours) * time.Hour).Truncate(time.Minute)
	if st := v.Get("start_time"); st != nil {
		t, ok := telemetry.ParseTimestamp(string(st.GetStringBytes()), s.loc)
		if !ok {
			writeStatus(w, http.StatusUnprocessableEntity, "start_time must be an ISO-8601 timestamp", nil)
			return
		}
		start = t
	}

	events, err := s.gen(start, hours)
	if err != nil {
		writeStatus(w, http.StatusInternalServerError, "simulation failed: "+err.Error(), nil)
		return
	}
	stored, err := s.repo.Insert(r.Context(), RowsFromEvents(events))
	if err != nil {
		s.log.WithError(err).Error("storing simulated logs")
		writeStatus(w, http.StatusInternalServerError, "Database error: "+err.Error(), nil)
		return
	}
	s.metrics.LogsStored.Add(float64(stored))

	s.log.WithFields(logrus.Fields{"stored": stored, "hours": hours, "start": start}).Info("simulation stored")
	writeStatus(w, http.StatusOK, fmt.Sprintf("Simulated %d logs", stored), map[string]any{"stored": stored})
}

// handleQuery answers {"query": ...}. The question is run as SQL; a
// natural-language translator would sit in front of this endpoint.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reading body: " + err.Error()})
		return
	}

	p := s.parsers.Get()
	defer s.parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil || v.Type() != fastjson.TypeObject {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be a JSON object"})
		return
	}
	q := strings.TrimSpace(string(v.GetStringBytes("query")))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	if ex := v.Get("execute"); ex != nil && ex.Type() == fastjson.TypeFalse {
		writeJSON(w, http.StatusOK, map[string]any{"sql": q})
		return
	}

	res, err := s.repo.Query(r.Context(), q)
	if err != nil {
		s.metrics.Queries.WithLabelValues("error").Inc()
		status := http.StatusBadRequest
		if !errors.Is(err, ErrReadOnly) {
			s.log.WithError(err).WithField("sql", q).Warn("query failed")
		}
		writeJSON(w, status, map[string]any{"sql": q, "error": err.Error()})
		return
	}
	s.metrics.Queries.WithLabelValues("ok").Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"sql": q,
		"results": map[string]any{
			"columns":    res.Columns,
			"data":       res.Rows,
			"total_rows": res.TotalRows,
		},
	})
}
