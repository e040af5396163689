/*
Package audit persists the audit trail of a run.

PURPOSE:
  The engine reports decisions through generic.Auditor. This package
  provides the sinks that outlive the process: a logrus logger writing one
  JSON object per entry, and the human-readable end-of-run summary.

FILES:
  <logdir>/audit_<competency>.log        JSON lines, one per AuditEntry
  <logdir>/audit_summary_<competency>.txt  Summary written by WriteSummary

USAGE:
  logger, err := audit.Open(logDir, competency)
  defer logger.Close()
  recorder := generic.NewAuditRecorder()
  engine, _ := vr.NewEngine(cfg, vr.WithAuditor(generic.MultiAuditor{recorder, logger}))

SEE ALSO:
  - generic/audit.go: AuditEntry and the in-memory recorder
*/
package audit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/warp/benefit-engine/generic"
)

// Logger writes audit entries as JSON lines. It implements generic.Auditor.
type Logger struct {
	log  *logrus.Logger
	file *os.File
	path string
}

// New writes entries to w.
func New(w io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	return &Logger{log: l}
}

// Open creates dir if needed and appends to its audit file for c.
func Open(dir string, c generic.Competency) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	path := LogPath(dir, c)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	l := New(f)
	l.file = f
	l.path = path
	return l, nil
}

// LogPath is where Open writes the audit entries for c.
func LogPath(dir string, c generic.Competency) string {
	return filepath.Join(dir, "audit_"+c.Slug()+".log")
}

// Path returns the file being written, or "" for a plain writer.
func (l *Logger) Path() string { return l.path }

// Record writes one entry. Warnings are logged at warning level, everything
// else at info.
func (l *Logger) Record(e generic.AuditEntry) {
	fields := logrus.Fields{
		"kind":     string(e.Kind),
		"subject":  e.Subject,
		"category": e.Category,
	}
	if e.Kind == generic.AuditValidation {
		fields["passed"] = e.Passed
	}
	for k, v := range e.Fields {
		if _, reserved := fields[k]; !reserved {
			fields[k] = v
		}
	}

	entry := l.log.WithFields(fields)
	if !e.At.IsZero() {
		entry = entry.WithTime(e.At)
	}
	if e.Kind == generic.AuditWarning {
		entry.Warn(e.Message)
		return
	}
	entry.Info(e.Message)
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
