package memory

import (
	"context"
	"strings"
	"sync"

	"account_ledger/internal/domain"
)

// AuditLog keeps formatted audit lines in memory. It matches the file-backed log
// line for line and is used where no log file is wanted.
type AuditLog struct {
	mu    sync.RWMutex
	lines []string
}

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (l *AuditLog) Append(ctx context.Context, entry domain.AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, entry.Format())
	return nil
}

func (l *AuditLog) QueryByUsername(ctx context.Context, username string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []string
	for _, line := range l.lines {
		if strings.Contains(line, username) {
			result = append(result, line)
		}
	}
	return result, nil
}

func (l *AuditLog) Lines() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}
