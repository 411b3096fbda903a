// Package audit provides the append-only security event trail. Events are
// serialized one JSON object per line to an append-only sink; a sink outage
// is reported on a fallback slog channel and never surfaces into the
// request path.
package audit

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity classifies an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event types recorded by the security pipeline.
const (
	EventAccessDenied      = "access_denied"
	EventRateLimited       = "rate_limited"
	EventLoginSuccess      = "login_success"
	EventLoginFailed       = "login_failed"
	EventLoginLocked       = "login_locked"
	EventTokenRejected     = "token_rejected"
	EventPrincipalDisabled = "principal_disabled"
	EventIPSetUpdated      = "ip_set_updated"
)

// Event is one immutable record in the trail. The sequence is ordered by
// insertion, not by timestamp, under concurrent writers.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Principal string            `json:"principal,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Severity  Severity          `json:"severity"`
	Details   map[string]string `json:"details,omitempty"`
}

// Log appends security events to an append-only line-oriented sink.
type Log struct {
	mu       sync.Mutex
	sink     io.Writer
	closer   io.Closer
	fallback *slog.Logger
}

// NewLog creates a Log writing to sink. fallback receives write failures.
func NewLog(sink io.Writer, fallback *slog.Logger) *Log {
	if fallback == nil {
		fallback = slog.Default()
	}
	return &Log{
		sink:     sink,
		fallback: fallback,
	}
}

// Open creates a Log appending to the file at path, creating it if needed.
func Open(path string, fallback *slog.Logger) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	l := NewLog(f, fallback)
	l.closer = f
	return l, nil
}

// Record appends one event to the trail. It never returns an error: a
// security log outage must not become a denial-of-service vector, so write
// failures go to the fallback channel along with the event content.
func (l *Log) Record(eventType, principal, ip string, severity Severity, details map[string]string) {
	event := Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Principal: principal,
		IP:        ip,
		Severity:  severity,
		Details:   details,
	}

	line, err := json.Marshal(event)
	if err != nil {
		l.reportFailure(event, err)
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	_, err = l.sink.Write(line)
	l.mu.Unlock()

	if err != nil {
		l.reportFailure(event, err)
	}
}

func (l *Log) reportFailure(event Event, err error) {
	l.fallback.Error("audit write failed",
		slog.Any("error", err),
		slog.String("event_type", event.EventType),
		slog.String("principal", event.Principal),
		slog.String("ip", event.IP),
		slog.String("severity", string(event.Severity)))
}

// Close closes the underlying sink when it was opened by this package.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
