package match

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noiseScreen returns a screen whose every window is distinct.
func noiseScreen(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*x + 3*y*y + 7*x*y) % 251)
			img.SetRGBA(x, y, color.RGBA{R: v, G: 255 - v, B: uint8((x * 31) % 256), A: 255})
		}
	}
	return img
}

func crop(img *image.RGBA, r image.Rectangle) image.Image {
	return img.SubImage(r)
}

func TestNCCMatcher_FindsExactCrop(t *testing.T) {
	screen := noiseScreen(60, 40)
	tmpl := crop(screen, image.Rect(17, 9, 29, 21))

	m := &NCCMatcher{Stride: 1}
	res, found, err := m.Match(context.Background(), screen, tmpl, 0.95)
	require.NoError(t, err)

	assert.True(t, found)
	assert.Equal(t, image.Rect(17, 9, 29, 21), res.Box)
	assert.InDelta(t, 1.0, res.Score, 1e-9)
	assert.Equal(t, image.Pt(23, 15), res.Center())
}

func TestNCCMatcher_CoarseGrid(t *testing.T) {
	screen := noiseScreen(64, 48)
	tmpl := crop(screen, image.Rect(16, 8, 32, 24))

	m := &NCCMatcher{Stride: 4, Refine: true}
	res, found, err := m.Match(context.Background(), screen, tmpl, 0.9)
	require.NoError(t, err)

	assert.True(t, found)
	assert.Equal(t, image.Pt(16, 8), res.Box.Min)
}

func TestNCCMatcher_ScreenOffset(t *testing.T) {
	screen := noiseScreen(50, 30)
	tmpl := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			tmpl.Set(x, y, screen.At(20+x, 5+y))
		}
	}
	// second display to the right of a 1920px primary
	screen.Rect = screen.Rect.Add(image.Pt(1920, 0))

	res, found, err := (&NCCMatcher{Stride: 1}).Match(context.Background(), screen, tmpl, 0.95)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, image.Pt(1940, 5), res.Box.Min)
}

func TestNCCMatcher_NotFoundBelowConfidence(t *testing.T) {
	// smooth horizontal ramp
	screen := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			v := uint8(x * 6)
			screen.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	// checkerboard template
	tmpl := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			tmpl.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}

	res, found, err := (&NCCMatcher{Stride: 1}).Match(context.Background(), screen, tmpl, 0.8)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Less(t, res.Score, 0.8)
}

func TestNCCMatcher_FlatTemplate(t *testing.T) {
	screen := image.NewRGBA(image.Rect(0, 0, 50, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 50; x++ {
			screen.SetRGBA(x, y, color.RGBA{A: 255})
		}
	}
	for y := 20; y < 30; y++ {
		for x := 30; x < 40; x++ {
			screen.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	tmpl := image.NewRGBA(image.Rect(0, 0, 6, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			tmpl.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	res, found, err := (&NCCMatcher{Stride: 1}).Match(context.Background(), screen, tmpl, 0.99)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, image.Pt(30, 20), res.Box.Min)
}

func TestNCCMatcher_Errors(t *testing.T) {
	screen := noiseScreen(10, 10)
	m := &NCCMatcher{Stride: 1}

	_, _, err := m.Match(context.Background(), screen, image.NewRGBA(image.Rect(0, 0, 11, 5)), 0.5)
	assert.ErrorIs(t, err, ErrTemplateTooLarge)

	_, _, err = m.Match(context.Background(), nil, screen, 0.5)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = m.Match(ctx, screen, crop(screen, image.Rect(0, 0, 3, 3)), 0.5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	m, err := New("ncc", 2)
	require.NoError(t, err)
	assert.IsType(t, &NCCMatcher{}, m)

	_, err = New("sift", 1)
	assert.Error(t, err)
}
