// Package testutil provides helper functions and fakes for testing.
package testutil

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/chazuruo/clickflow/internal/match"
)

// TempDir creates a temporary directory and registers a cleanup function.
// The directory is automatically deleted when the test completes.
func TempDir(t *testing.T) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	t.Cleanup(func() {
		if err := os.RemoveAll(dir); err != nil {
			t.Errorf("failed to cleanup temp dir %s: %v", dir, err)
		}
	})

	return dir
}

// WriteWorkflow writes content to a temporary file named name and returns the path.
func WriteWorkflow(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(TempDir(t), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write workflow file: %v", err)
	}
	return path
}

// SolidImage returns a w x h image filled with c.
func SolidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// PatternImage returns a deterministic textured image; different seeds give
// different textures.
func PatternImage(w, h, seed int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*x*(seed+1) + 3*y*y + 7*x*y + seed*17) % 251)
			img.SetRGBA(x, y, color.RGBA{R: v, G: 255 - v, B: uint8((x*31 + seed) % 256), A: 255})
		}
	}
	return img
}

// WriteTemplate writes img as a PNG file into dir and returns the path.
func WriteTemplate(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create template dir: %v", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create template: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode template: %v", err)
	}
	return path
}

// Probe returns the same frame on every capture and counts calls.
type Probe struct {
	Frame *image.RGBA
	Err   error

	calls atomic.Int32
}

// Capture implements screen.Probe.
func (p *Probe) Capture(ctx context.Context) (*image.RGBA, error) {
	p.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Frame == nil {
		return image.NewRGBA(image.Rect(0, 0, 100, 100)), nil
	}
	return p.Frame, nil
}

// Calls returns the number of captures.
func (p *Probe) Calls() int { return int(p.calls.Load()) }

// MatchFunc decides a match from the template alone.
type MatchFunc func(tmpl image.Image, confidence float64) (match.Result, bool, error)

// Matcher delegates to Fn and counts calls.
type Matcher struct {
	Fn MatchFunc

	calls atomic.Int32
}

// Match implements match.Matcher.
func (m *Matcher) Match(ctx context.Context, screen *image.RGBA, tmpl image.Image, confidence float64) (match.Result, bool, error) {
	m.calls.Add(1)
	if m.Fn == nil {
		return match.Result{}, false, nil
	}
	return m.Fn(tmpl, confidence)
}

// Calls returns the number of Match calls.
func (m *Matcher) Calls() int { return int(m.calls.Load()) }

// Never is a MatchFunc that never finds anything.
func Never(image.Image, float64) (match.Result, bool, error) {
	return match.Result{Score: 0.1}, false, nil
}

// AlwaysAt is a MatchFunc that finds every template at box with score 1.
func AlwaysAt(box image.Rectangle) MatchFunc {
	return func(_ image.Image, confidence float64) (match.Result, bool, error) {
		return match.Result{Box: box, Score: 1}, 1 >= confidence, nil
	}
}

// ByColor finds templates whose top-left pixel is one of the given colors.
func ByColor(box image.Rectangle, colors ...color.RGBA) MatchFunc {
	return func(tmpl image.Image, confidence float64) (match.Result, bool, error) {
		b := tmpl.Bounds()
		got := color.RGBAModel.Convert(tmpl.At(b.Min.X, b.Min.Y)).(color.RGBA)
		for _, c := range colors {
			if got == c {
				return match.Result{Box: box, Score: 0.95}, 0.95 >= confidence, nil
			}
		}
		return match.Result{Score: 0.2}, false, nil
	}
}

// Clicker records clicks and optionally fails.
type Clicker struct {
	Err error

	mu     sync.Mutex
	points []image.Point
}

// Click implements input.Clicker.
func (c *Clicker) Click(ctx context.Context, p image.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	c.points = append(c.points, p)
	c.mu.Unlock()
	return nil
}

// Points returns the clicks performed.
func (c *Clicker) Points() []image.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]image.Point(nil), c.points...)
}
