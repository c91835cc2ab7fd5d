package history

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
	"github.com/chazuruo/clickflow/internal/logging"
)

func entry(id string, started time.Time) Entry {
	return Entry{ID: id, Workflow: "login", Started: started, Duration: 1500 * time.Millisecond, Clicked: 2, Skipped: 1}
}

func TestFileJournal(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.jsonl")
	j := NewFileJournal(path, logging.Discard())

	entries, err := j.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, j.Append(ctx, entry("a", base)))
	require.NoError(t, j.Append(ctx, entry("b", base.Add(2*time.Minute))))
	require.NoError(t, j.Append(ctx, entry("c", base.Add(time.Minute))))

	entries, err = j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})
	assert.Equal(t, 1500*time.Millisecond, entries[0].Duration)
	assert.True(t, entries[0].Started.Equal(base.Add(2*time.Minute)))

	entries, err = j.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFileJournal_SkipsBadLines(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("not json\n\n"), 0o644))

	j := NewFileJournal(path, logging.Discard())
	require.NoError(t, j.Append(ctx, entry("a", time.Now())))

	entries, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ID)
}

func TestFileJournal_Unwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	j := NewFileJournal(filepath.Join(blocker, "history.jsonl"), logging.Discard())
	err := j.Append(context.Background(), entry("a", time.Now()))
	require.Error(t, err)
	assert.True(t, cferrors.IsIO(err))
	se, ok := cferrors.AsStorageError(err)
	require.True(t, ok)
	assert.Equal(t, "append", se.Op)
}

func TestEntry_Status(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{"ok", Entry{Clicked: 3}, "ok"},
		{"partial", Entry{Clicked: 1, Failed: 1}, "partial"},
		{"canceled", Entry{Failed: 1, Canceled: true}, "canceled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.Status())
		})
	}
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := NormalizeDSN("user:pw@tcp(localhost:3306)/clickflow")
	require.NoError(t, err)
	assert.True(t, strings.Contains(dsn, "parseTime=true"), dsn)

	_, err = NormalizeDSN("user:pw@tcp(localhost:3306)")
	assert.True(t, cferrors.IsInvalid(err))
}

func TestOpenMySQL_RejectsTableName(t *testing.T) {
	_, err := OpenMySQL(context.Background(), "user:pw@tcp(localhost:3306)/db", "runs; DROP TABLE x")
	assert.True(t, cferrors.IsInvalid(err))
}

// Runs against a real server when CLICKFLOW_TEST_MYSQL_DSN is set.
func TestMySQLJournal(t *testing.T) {
	dsn := os.Getenv("CLICKFLOW_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("CLICKFLOW_TEST_MYSQL_DSN not set")
	}
	ctx := context.Background()
	table := "clickflow_runs_test"
	j, err := OpenMySQL(ctx, dsn, table)
	require.NoError(t, err)
	defer j.Close()
	_, err = j.db.ExecContext(ctx, "DELETE FROM "+table)
	require.NoError(t, err)

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, j.Append(ctx, entry("00000000-0000-0000-0000-000000000001", base)))
	require.NoError(t, j.Append(ctx, entry("00000000-0000-0000-0000-000000000002", base.Add(time.Minute))))

	entries, err := j.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "00000000-0000-0000-0000-000000000002", entries[0].ID)
	assert.Equal(t, 1500*time.Millisecond, entries[0].Duration)
}
