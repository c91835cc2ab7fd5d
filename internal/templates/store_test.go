package templates

import (
	"bytes"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
	"github.com/chazuruo/clickflow/internal/testutil"
)

func TestStore_SaveAndList(t *testing.T) {
	dir := filepath.Join(testutil.TempDir(t), "images")
	s := New(dir)

	d, err := s.Save("submit", testutil.PatternImage(20, 10, 1))
	require.NoError(t, err)
	assert.Equal(t, "submit.png", d.Name)
	assert.Equal(t, 20, d.Width)
	assert.Equal(t, 10, d.Height)
	assert.Equal(t, "png", d.Format)
	assert.Len(t, d.Digest, 64)

	// overwrite keeps a single entry
	_, err = s.Save("submit.png", testutil.PatternImage(30, 15, 2))
	require.NoError(t, err)

	_, err = s.Save("b.jpg", testutil.PatternImage(16, 16, 3))
	require.NoError(t, err)
	_, err = s.Save("a.bmp", testutil.PatternImage(12, 12, 4))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	list, err := s.List()
	require.NoError(t, err)

	var names []string
	for _, d := range list {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"a.bmp", "b.jpg", "submit.png"}, names)
	assert.Equal(t, "bmp", list[0].Format)
	assert.Equal(t, "jpeg", list[1].Format)
	assert.Equal(t, 30, list[2].Width)
}

func TestStore_ListCreatesDir(t *testing.T) {
	dir := filepath.Join(testutil.TempDir(t), "a", "b")
	list, err := New(dir).List()
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.DirExists(t, dir)
}

func TestStore_Load(t *testing.T) {
	s := New(testutil.TempDir(t))
	_, err := s.Save("icon", testutil.SolidImage(8, 6, color.RGBA{R: 200, A: 255}))
	require.NoError(t, err)

	img, err := s.Load("icon")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
	assert.True(t, s.Exists("icon.png"))

	_, err = s.Load("missing.png")
	assert.True(t, cferrors.IsNotFound(err))
	te, ok := cferrors.AsTemplateError(err)
	require.True(t, ok)
	assert.Equal(t, "missing.png", te.Name)
	assert.False(t, s.Exists("missing"))
}

func TestStore_LoadCorrupt(t *testing.T) {
	dir := testutil.TempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.png"), []byte("not an image"), 0644))

	_, err := New(dir).Load("bad.png")
	require.Error(t, err)
	_, ok := cferrors.AsStorageError(err)
	assert.True(t, ok)
	assert.True(t, cferrors.IsInvalid(err))
}

func TestStore_Delete(t *testing.T) {
	s := New(testutil.TempDir(t))
	_, err := s.Save("x", testutil.PatternImage(5, 5, 0))
	require.NoError(t, err)

	require.NoError(t, s.Delete("x.png"))
	assert.False(t, s.Exists("x"))

	err = s.Delete("x.png")
	assert.True(t, cferrors.IsNotFound(err))
}

func TestStore_InvalidNames(t *testing.T) {
	s := New(testutil.TempDir(t))
	for _, name := range []string{"", "  ", "..", "a/b.png", `a\b.png`} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Save(name, testutil.PatternImage(5, 5, 0))
			assert.True(t, cferrors.IsInvalid(err))
			assert.True(t, cferrors.IsInvalid(s.Delete(name)))
		})
	}
}

func TestStore_Normalize(t *testing.T) {
	s := New(testutil.TempDir(t))
	tests := map[string]string{
		"button":     "button.png",
		"button.PNG": "button.PNG",
		"photo.jpeg": "photo.jpeg",
		"v1.2":       "v1.2.png",
	}
	for in, want := range tests {
		got, err := s.Normalize(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestStore_DuplicateWarning(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	s := New(testutil.TempDir(t), WithDuplicateDistance(4), WithLogger(logger))

	img := testutil.PatternImage(32, 32, 5)
	_, err := s.Save("first", img)
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), "looks like")

	_, err = s.Save("second", img)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "template looks like an existing one")
	assert.Contains(t, logs.String(), "similar=first.png")
}

func TestStore_SaveSelections(t *testing.T) {
	clock := func() time.Time { return time.Unix(1700000000, 0) }
	s := New(testutil.TempDir(t), WithClock(clock), WithMinSelection(10))
	screen := testutil.PatternImage(200, 100, 7)

	names, err := s.SaveSelections("login", screen, []image.Rectangle{
		image.Rect(10, 10, 40, 30),
		image.Rect(120, 80, 100, 50), // reversed corners
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"login_1700000000_01.png", "login_1700000000_02.png"}, names)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 30, list[0].Width)
	assert.Equal(t, 20, list[0].Height)
	assert.Equal(t, 20, list[1].Width)
	assert.Equal(t, 30, list[1].Height)
}

func TestStore_SaveSelectionsRejectsSmall(t *testing.T) {
	s := New(testutil.TempDir(t), WithMinSelection(10))
	screen := testutil.PatternImage(100, 100, 7)

	_, err := s.SaveSelections("x", screen, []image.Rectangle{
		image.Rect(0, 0, 50, 50),
		image.Rect(0, 0, 5, 50),
	})
	assert.True(t, cferrors.IsInvalid(err))

	list, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.SaveSelections("x", screen, nil)
	assert.True(t, cferrors.IsInvalid(err))
}

func TestCrop(t *testing.T) {
	src := testutil.PatternImage(50, 50, 1)
	out := Crop(src, image.Rect(10, 20, 15, 30))
	assert.Equal(t, image.Rect(0, 0, 5, 10), out.Bounds())
	assert.Equal(t, src.At(10, 20), out.At(0, 0))
	assert.Equal(t, src.At(14, 29), out.At(4, 9))
}
