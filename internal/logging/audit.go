package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType identifies what a query-audit entry records.
type AuditEventType string

const (
	// Query lifecycle events
	AuditQueryReceived AuditEventType = "query_received"
	AuditQueryAnswered AuditEventType = "query_answered"
	AuditQueryFailed   AuditEventType = "query_failed"

	// LLM API events
	AuditLLMRequest  AuditEventType = "llm_request"
	AuditLLMResponse AuditEventType = "llm_response"
	AuditLLMError    AuditEventType = "llm_error"

	// Export events
	AuditExportWritten AuditEventType = "export_written"
)

// AuditEvent is one append-only JSONL entry in the query audit trail.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"` // Unix milliseconds
	EventType  AuditEventType `json:"event"`
	RequestID  string         `json:"req,omitempty"`
	Query      string         `json:"query,omitempty"`
	Model      string         `json:"model,omitempty"`
	Sources    []string       `json:"sources,omitempty"`
	Success    bool           `json:"success"`
	DurationMs int64          `json:"dur_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// AuditLogger appends structured events to .metropulse/audit.jsonl.
// Unlike the category loggers, the audit trail is written even when
// debug_mode is off: the query history is operational data, not debug data.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

var (
	auditLogger *AuditLogger
	auditOnce   sync.Once
)

// Audit returns the process-wide audit logger, creating it on first use.
// Returns a no-op logger when the workspace is not initialized.
func Audit() *AuditLogger {
	auditOnce.Do(func() {
		auditLogger = &AuditLogger{}
		if workspace == "" {
			return
		}
		dir := filepath.Join(workspace, ".metropulse")
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "[audit] Warning: could not create %s: %v\n", dir, err)
			return
		}
		path := filepath.Join(dir, "audit.jsonl")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[audit] Warning: could not open %s: %v\n", path, err)
			return
		}
		auditLogger.file = f
		auditLogger.path = path
	})
	return auditLogger
}

// Record appends one event. Failures are swallowed: the audit trail never
// blocks the query path.
func (a *AuditLogger) Record(ev AuditEvent) {
	if a == nil || a.file == nil {
		return
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.file.Write(append(data, '\n'))
}

// Close releases the underlying file.
func (a *AuditLogger) Close() error {
	if a == nil || a.file == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.file.Close()
	a.file = nil
	return err
}
