// Package trace writes an optional JSONL diagnostic trace of the
// dashboard's network activity while the TUI owns the terminal.
package trace

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger records fetches and query submissions.
// Implementations must be safe for concurrent use.
type Logger interface {
	// LogFetch records one logs-endpoint fetch.
	LogFetch(e FetchEvent)

	// LogQuery records one query submission.
	LogQuery(e QueryEvent)
}

// FetchEvent describes a completed logs fetch.
type FetchEvent struct {
	URL      string
	Records  int
	Duration time.Duration
	Err      error
}

// QueryEvent describes a completed query submission.
type QueryEvent struct {
	Query     string
	SQL       string
	Rows      int
	TotalRows int
	Duration  time.Duration
	Err       error
}

// NopLogger discards everything. It is the default when -debug is unset.
type NopLogger struct{}

// LogFetch is a no-op.
func (NopLogger) LogFetch(FetchEvent) {}

// LogQuery is a no-op.
func (NopLogger) LogQuery(QueryEvent) {}

// FileLogger writes one JSON object per line to an io.Writer.
type FileLogger struct {
	log *logrus.Logger
}

// NewFileLogger creates a FileLogger that writes to w.
func NewFileLogger(w io.Writer) *FileLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "ts",
			logrus.FieldKeyMsg:  "type",
		},
	})
	return &FileLogger{log: l}
}

// LogFetch writes a "fetch" line.
func (l *FileLogger) LogFetch(e FetchEvent) {
	entry := l.log.WithFields(logrus.Fields{
		"url":         e.URL,
		"records":     e.Records,
		"duration_ms": e.Duration.Milliseconds(),
	})
	if e.Err != nil {
		entry.WithError(e.Err).Warn("fetch")
		return
	}
	entry.Info("fetch")
}

// LogQuery writes a "query" line.
func (l *FileLogger) LogQuery(e QueryEvent) {
	entry := l.log.WithFields(logrus.Fields{
		"query":       e.Query,
		"sql":         e.SQL,
		"rows":        e.Rows,
		"total_rows":  e.TotalRows,
		"duration_ms": e.Duration.Milliseconds(),
	})
	if e.Err != nil {
		entry.WithError(e.Err).Warn("query")
		return
	}
	entry.Info("query")
}
