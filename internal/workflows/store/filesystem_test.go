package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
	"github.com/chazuruo/clickflow/internal/logging"
	"github.com/chazuruo/clickflow/internal/workflows"
)

func newTestStore(t *testing.T, format string) *FileSystemStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "workflows"), format, logging.Discard())
	require.NoError(t, err)
	return s
}

func makeTestWorkflow(name string) *workflows.Workflow {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return &workflows.Workflow{
		SchemaVersion: workflows.SchemaVersion,
		Name:          name,
		Created:       workflows.FormatTimestamp(at),
		Steps: []workflows.Step{
			workflows.NewClickStep(0, at, "submit.png", 0.85),
			workflows.NewWaitStep(1, at.Add(time.Second), 2.0),
		},
	}
}

func TestNew(t *testing.T) {
	_, err := New("", "yaml", nil)
	assert.Error(t, err)

	_, err = New(t.TempDir(), "toml", nil)
	assert.True(t, cferrors.IsInvalid(err))
}

func TestFileSystemStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "yaml")

	ref, err := s.Save(ctx, makeTestWorkflow("Login Flow"), SaveOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Login Flow", ref.Name)
	assert.Equal(t, "login-flow", ref.Slug)
	assert.Equal(t, filepath.Join(s.Dir(), "login-flow.yaml"), ref.Path)
	assert.Equal(t, 2, ref.Steps)
	assert.FileExists(t, ref.Path)

	wf, err := s.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "Login Flow", wf.Name)
	assert.Equal(t, makeTestWorkflow("x").Steps, wf.Steps)
}

func TestFileSystemStore_SaveJSON(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "json")

	ref, err := s.Save(ctx, makeTestWorkflow("daily"), SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, ".json", filepath.Ext(ref.Path))

	ref2, err := s.Save(ctx, makeTestWorkflow("daily"), SaveOptions{Format: "yaml"})
	require.NoError(t, err)
	assert.Equal(t, ".yaml", filepath.Ext(ref2.Path))
}

func TestFileSystemStore_SaveExisting(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "yaml")

	_, err := s.Save(ctx, makeTestWorkflow("login"), SaveOptions{})
	require.NoError(t, err)

	_, err = s.Save(ctx, makeTestWorkflow("login"), SaveOptions{})
	assert.True(t, cferrors.IsAlreadyExists(err))

	_, err = s.Save(ctx, makeTestWorkflow("login"), SaveOptions{Force: true})
	assert.NoError(t, err)
}

func TestFileSystemStore_SaveInvalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "yaml")

	empty := makeTestWorkflow("empty")
	empty.Steps = nil
	_, err := s.Save(ctx, empty, SaveOptions{})
	assert.True(t, cferrors.IsInvalid(err))

	_, err = s.Save(ctx, makeTestWorkflow("!!!"), SaveOptions{})
	assert.True(t, cferrors.IsInvalid(err))
}

func TestFileSystemStore_List(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "yaml")

	refs, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, refs)

	for _, name := range []string{"zeta", "Alpha run", "beta"} {
		_, err := s.Save(ctx, makeTestWorkflow(name), SaveOptions{})
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "broken.yaml"), []byte("name: [\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0644))

	refs, err = s.List(ctx, Filter{})
	require.NoError(t, err)
	var names []string
	for _, r := range refs {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Alpha run", "beta", "zeta"}, names)

	refs, err = s.List(ctx, Filter{Search: "ALP"})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "Alpha run", refs[0].Name)
}

func TestFileSystemStore_LoadByName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "yaml")
	_, err := s.Save(ctx, makeTestWorkflow("Login Flow"), SaveOptions{})
	require.NoError(t, err)

	// a file whose name does not match its slug
	legacy := `[{"step": 0, "type": "wait", "timestamp": "2024-01-01T00:00:00", "data": {"duration": 1}}]`
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "old_one.json"), []byte(legacy), 0644))

	for _, name := range []string{"Login Flow", "login-flow", "old_one"} {
		t.Run(name, func(t *testing.T) {
			wf, ref, err := s.LoadByName(ctx, name)
			require.NoError(t, err)
			assert.NotNil(t, wf)
			assert.False(t, ref.IsZero())
		})
	}

	_, _, err = s.LoadByName(ctx, "missing")
	assert.True(t, cferrors.IsNotFound(err))
}

func TestFileSystemStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "yaml")

	ref, err := s.Save(ctx, makeTestWorkflow("temp"), SaveOptions{})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, ref))
	assert.NoFileExists(t, ref.Path)

	err = s.Delete(ctx, ref)
	assert.True(t, cferrors.IsNotFound(err))
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Login Flow", "login-flow"},
		{"workflow_20250102_030405", "workflow_20250102_030405"},
		{"  Fix: Bug #123!  ", "fix-bug-123"},
		{"朝の作業 #2", "朝の作業-2"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

