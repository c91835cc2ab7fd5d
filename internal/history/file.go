package history

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
)

// FileJournal appends entries as JSON lines to a file.
type FileJournal struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileJournal returns a journal at path. The file and its directory are
// created on first append.
func NewFileJournal(path string, logger *slog.Logger) *FileJournal {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileJournal{path: path, logger: logger}
}

// Path returns the journal file path.
func (j *FileJournal) Path() string { return j.path }

// Append implements Journal.
func (j *FileJournal) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode history entry: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return &cferrors.StorageError{Op: "append", Path: j.path, Err: fmt.Errorf("%w: %w", cferrors.ErrIO, err)}
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &cferrors.StorageError{Op: "append", Path: j.path, Err: fmt.Errorf("%w: %w", cferrors.ErrIO, err)}
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return &cferrors.StorageError{Op: "append", Path: j.path, Err: fmt.Errorf("%w: %w", cferrors.ErrIO, err)}
	}
	return nil
}

// List implements Journal. Lines that fail to parse are skipped. A limit
// of zero or less returns every entry.
func (j *FileJournal) List(ctx context.Context, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.mu.Lock()
	data, err := os.ReadFile(j.path)
	j.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &cferrors.StorageError{Op: "list", Path: j.path, Err: fmt.Errorf("%w: %w", cferrors.ErrIO, err)}
	}

	var entries []Entry
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			j.logger.Warn("skipping unreadable history line", "path", j.path, "line", n, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, &cferrors.StorageError{Op: "list", Path: j.path, Err: fmt.Errorf("%w: %w", cferrors.ErrIO, err)}
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Started.After(entries[b].Started)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
