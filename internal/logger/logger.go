package logger

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/gzhole/groupguard/internal/redact"
)

// defaultMaxLogBytes is the size at which the audit log is rotated to <path>.1.
const defaultMaxLogBytes = 10 << 20

// Decisions recorded in the audit log.
const (
	DecisionEnforced = "ENFORCED"
	DecisionRejected = "REJECTED"
	DecisionFailed   = "FAILED"
	DecisionTest     = "TEST"
)

// AuditEvent is one line of the enforcement audit log.
type AuditEvent struct {
	Timestamp       string `json:"timestamp"`
	Cycle           string `json:"cycle,omitempty"`
	Source          string `json:"source,omitempty"`
	Group           string `json:"group"`
	User            string `json:"user"`
	Decision        string `json:"decision"`
	Rule            string `json:"rule,omitempty"`
	Reason          string `json:"reason,omitempty"`
	DurationSeconds int64  `json:"duration_seconds,omitempty"`
	Error           string `json:"error,omitempty"`
}

type AuditLogger struct {
	path     string
	maxBytes int64
	file     *os.File
	mu       sync.Mutex
}

func New(path string) (*AuditLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &AuditLogger{path: path, maxBytes: defaultMaxLogBytes, file: file}, nil
}

func (l *AuditLogger) Log(event AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Reasons come from the model and may quote chat text verbatim.
	event.Reason = redact.Redact(event.Reason)
	if event.Error != "" {
		event.Error = redact.Redact(event.Error)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := l.rotateIfNeeded(int64(len(data))); err != nil {
		return err
	}
	_, err = l.file.Write(data)
	return err
}

func (l *AuditLogger) rotateIfNeeded(incoming int64) error {
	info, err := l.file.Stat()
	if err != nil {
		return err
	}
	if info.Size()+incoming <= l.maxBytes {
		return nil
	}
	if err := l.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(l.path, l.path+".1"); err != nil {
		return err
	}
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	l.file = file
	return nil
}

func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}
