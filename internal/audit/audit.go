package audit

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ryanuber/go-glob"

	"github.com/kenneth/xmlenc-gateway/internal/config"
)

// EventType represents the type of audit event.
type EventType string

const (
	// EventTypeEncrypt represents an encryption operation.
	EventTypeEncrypt EventType = "encrypt"
	// EventTypeDecrypt represents a decryption operation.
	EventTypeDecrypt EventType = "decrypt"
	// EventTypeKeyRotation represents a key rotation operation.
	EventTypeKeyRotation EventType = "key_rotation"
	// EventTypeAccess represents an access operation.
	EventTypeAccess EventType = "access"
)

// AuditEvent represents a single audit log event. Source/DocumentID
// identify what was encrypted or decrypted: Source is the origin of the
// plaintext or CipherReference URI ("memory", "uri", or an XML node
// path), DocumentID is the EncryptedData element's Id attribute.
type AuditEvent struct {
	Timestamp  time.Time              `json:"timestamp"`
	EventType  EventType              `json:"event_type"`
	Operation  string                 `json:"operation"`
	Source     string                 `json:"source,omitempty"`
	DocumentID string                 `json:"document_id,omitempty"`
	ClientIP   string                 `json:"client_ip,omitempty"`
	UserAgent  string                 `json:"user_agent,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	Algorithm  string                 `json:"algorithm,omitempty"`
	KeyVersion int                    `json:"key_version,omitempty"`
	Success    bool                   `json:"success"`
	Error      string                 `json:"error,omitempty"`
	Duration   time.Duration          `json:"duration_ms"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Logger is the interface for audit logging.
type Logger interface {
	// Log logs an audit event.
	Log(event *AuditEvent) error

	// LogEncrypt logs an encryption operation.
	LogEncrypt(source, documentID, algorithm string, keyVersion int, success bool, err error, duration time.Duration, metadata map[string]interface{})

	// LogDecrypt logs a decryption operation.
	LogDecrypt(source, documentID, algorithm string, keyVersion int, success bool, err error, duration time.Duration, metadata map[string]interface{})

	// LogKeyRotation logs a key rotation operation.
	LogKeyRotation(keyVersion int, success bool, err error)

	// LogAccess logs a general access operation.
	LogAccess(eventType, source, documentID, clientIP, userAgent, requestID string, success bool, err error, duration time.Duration)

	// GetEvents returns all audit events (for testing/querying).
	GetEvents() []*AuditEvent

	// Close closes the logger and its underlying writer.
	Close() error
}

// auditLogger implements the Logger interface.
type auditLogger struct {
	mu           sync.Mutex
	events       []*AuditEvent
	maxEvents    int
	writer       EventWriter
	redactKeys   []string
	redactGlobs  []string
}

// EventWriter is an interface for writing audit events.
type EventWriter interface {
	WriteEvent(event *AuditEvent) error
}

// NewLogger creates a new audit logger.
func NewLogger(maxEvents int, writer EventWriter) Logger {
	return NewLoggerWithRedaction(maxEvents, writer, nil, nil)
}

// NewLoggerWithRedaction creates a new audit logger with exact-match and
// glob-pattern metadata key redaction.
func NewLoggerWithRedaction(maxEvents int, writer EventWriter, redactKeys, redactGlobs []string) Logger {
	if writer == nil {
		writer = &defaultWriter{}
	}

	return &auditLogger{
		events:      make([]*AuditEvent, 0, maxEvents),
		maxEvents:   maxEvents,
		writer:      writer,
		redactKeys:  redactKeys,
		redactGlobs: redactGlobs,
	}
}

// NewLoggerFromConfig creates a new audit logger from configuration.
func NewLoggerFromConfig(cfg config.AuditConfig) (Logger, error) {
	var writer EventWriter

	switch cfg.Sink.Type {
	case "http":
		writer = NewHTTPSink(cfg.Sink.Endpoint, cfg.Sink.Headers)
	case "file":
		writer = NewFileSink(cfg.Sink.FilePath)
	case "redis":
		writer = NewRedisSink(cfg.Sink.RedisAddr, cfg.Sink.RedisKey)
	case "stdout", "":
		writer = &defaultWriter{}
	default:
		return nil, fmt.Errorf("unknown sink type: %s", cfg.Sink.Type)
	}

	if cfg.Sink.BatchSize > 0 || cfg.Sink.FlushInterval > 0 {
		writer = NewBatchSink(writer, cfg.Sink.BatchSize, cfg.Sink.FlushInterval, cfg.Sink.RetryCount, cfg.Sink.RetryBackoff)
	}

	return NewLoggerWithRedaction(cfg.MaxEvents, writer, cfg.RedactMetadataKeys, cfg.RedactMetadataGlobs), nil
}

// Log logs an audit event.
func (l *auditLogger) Log(event *AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	event.Metadata = l.redactMetadata(event.Metadata)

	if l.writer != nil {
		_ = l.writer.WriteEvent(event)
	}

	l.events = append(l.events, event)
	if l.maxEvents > 0 && len(l.events) > l.maxEvents {
		l.events = l.events[len(l.events)-l.maxEvents:]
	}

	return nil
}

// Close closes the logger and its underlying writer.
func (l *auditLogger) Close() error {
	if closer, ok := l.writer.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// redactMetadata replaces with "[REDACTED]" the value of every metadata
// entry whose key matches an exact entry in redactKeys or a glob pattern
// in redactGlobs.
func (l *auditLogger) redactMetadata(metadata map[string]interface{}) map[string]interface{} {
	if (len(l.redactKeys) == 0 && len(l.redactGlobs) == 0) || len(metadata) == 0 {
		return metadata
	}

	clone := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		clone[k] = v
	}

	for key := range clone {
		if l.matchesRedaction(key) {
			clone[key] = "[REDACTED]"
		}
	}
	return clone
}

func (l *auditLogger) matchesRedaction(key string) bool {
	for _, k := range l.redactKeys {
		if k == key {
			return true
		}
	}
	for _, pattern := range l.redactGlobs {
		if glob.Glob(pattern, key) {
			return true
		}
	}
	return false
}

// LogEncrypt logs an encryption operation.
func (l *auditLogger) LogEncrypt(source, documentID, algorithm string, keyVersion int, success bool, err error, duration time.Duration, metadata map[string]interface{}) {
	event := &AuditEvent{
		Timestamp:  time.Now(),
		EventType:  EventTypeEncrypt,
		Operation:  "encrypt",
		Source:     source,
		DocumentID: documentID,
		Algorithm:  algorithm,
		KeyVersion: keyVersion,
		Success:    success,
		Duration:   duration,
		Metadata:   metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}
	l.Log(event)
}

// LogDecrypt logs a decryption operation.
func (l *auditLogger) LogDecrypt(source, documentID, algorithm string, keyVersion int, success bool, err error, duration time.Duration, metadata map[string]interface{}) {
	event := &AuditEvent{
		Timestamp:  time.Now(),
		EventType:  EventTypeDecrypt,
		Operation:  "decrypt",
		Source:     source,
		DocumentID: documentID,
		Algorithm:  algorithm,
		KeyVersion: keyVersion,
		Success:    success,
		Duration:   duration,
		Metadata:   metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}
	l.Log(event)
}

// LogKeyRotation logs a key rotation operation.
func (l *auditLogger) LogKeyRotation(keyVersion int, success bool, err error) {
	event := &AuditEvent{
		Timestamp:  time.Now(),
		EventType:  EventTypeKeyRotation,
		Operation:  "key_rotation",
		KeyVersion: keyVersion,
		Success:    success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	l.Log(event)
}

// LogAccess logs a general access operation.
func (l *auditLogger) LogAccess(eventType, source, documentID, clientIP, userAgent, requestID string, success bool, err error, duration time.Duration) {
	event := &AuditEvent{
		Timestamp:  time.Now(),
		EventType:  EventType(eventType),
		Operation:  eventType,
		Source:     source,
		DocumentID: documentID,
		ClientIP:   clientIP,
		UserAgent:  userAgent,
		RequestID:  requestID,
		Success:    success,
		Duration:   duration,
	}
	if err != nil {
		event.Error = err.Error()
	}
	l.Log(event)
}

// GetEvents returns all audit events (for testing/querying).
func (l *auditLogger) GetEvents() []*AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := make([]*AuditEvent, len(l.events))
	copy(events, l.events)
	return events
}

// defaultWriter writes events to stdout as JSON.
type defaultWriter struct{}

func (w *defaultWriter) WriteEvent(event *AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	fmt.Printf("%s\n", string(data))
	return nil
}
