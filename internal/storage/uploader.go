// Package storage keeps uploaded source documents and the audit trail of
// ledger uploads.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Uploader archives the original workbook of an upload and returns a
// reference the audit row can carry.
type Uploader interface {
	Store(ctx context.Context, name string, content []byte) (string, error)
}

// NoopUploader discards documents. Used when no archive target is
// configured.
type NoopUploader struct{}

func (NoopUploader) Store(ctx context.Context, name string, content []byte) (string, error) {
	return "", nil
}

// DirUploader archives documents on the local filesystem under a date
// prefix, returning the stored path.
type DirUploader struct {
	Root   string
	Logger *slog.Logger
}

func (u DirUploader) Store(ctx context.Context, name string, content []byte) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." {
		base = "upload.xlsx"
	}
	dir := filepath.Join(u.Root, time.Now().UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: create archive dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), base))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("storage: write document: %w", err)
	}
	if u.Logger != nil {
		u.Logger.DebugContext(ctx, "document archived", slog.String("path", path))
	}
	return path, nil
}
