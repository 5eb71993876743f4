package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"account_ledger/internal/domain"
)

// AuditLog appends one formatted line per entry to a text file. The file is
// opened per call so no handle outlives an operation.
type AuditLog struct {
	path string
}

func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

func (l *AuditLog) Append(ctx context.Context, entry domain.AuditEntry) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLogUnavailable, err)
	}

	if _, err := f.WriteString(entry.Format() + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", domain.ErrLogUnavailable, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLogUnavailable, err)
	}
	return nil
}

// QueryByUsername returns every line containing username anywhere in its text.
// The match is not field-aware: "al" also matches lines for "alice".
func (l *AuditLog) QueryByUsername(ctx context.Context, username string) ([]string, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLogUnavailable, err)
	}
	defer f.Close()

	var result []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		if line := scanner.Text(); strings.Contains(line, username) {
			result = append(result, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLogUnavailable, err)
	}
	return result, nil
}
