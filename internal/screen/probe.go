// Package screen captures the live display as a raster image.
package screen

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"os"

	"github.com/kbinani/screenshot"

	// decoders for ImageProbe sources
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
)

// Probe captures the current screen. Pixel coordinates of the returned
// image are screen coordinates.
type Probe interface {
	Capture(ctx context.Context) (*image.RGBA, error)
}

// NumDisplays returns the number of active displays.
func NumDisplays() int {
	return screenshot.NumActiveDisplays()
}

// DisplayProbe captures one display through the platform screenshot API.
type DisplayProbe struct {
	Display int
}

// NewDisplayProbe returns a probe for the display at index.
func NewDisplayProbe(display int) (*DisplayProbe, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active display found; an interactive session is required")
	}
	if display < 0 || display >= n {
		return nil, fmt.Errorf("display %d out of range (found %d)", display, n)
	}
	return &DisplayProbe{Display: display}, nil
}

// Bounds returns the display rectangle in screen coordinates.
func (p *DisplayProbe) Bounds() image.Rectangle {
	return screenshot.GetDisplayBounds(p.Display)
}

// Capture implements Probe.
func (p *DisplayProbe) Capture(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bounds := screenshot.GetDisplayBounds(p.Display)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to capture display %d: %w", p.Display, err)
	}
	// CaptureRect returns an image anchored at the origin.
	img.Rect = img.Rect.Add(bounds.Min)
	return img, nil
}

// ImageProbe serves a fixed image, typically a saved screenshot, in place of
// the live display.
type ImageProbe struct {
	img *image.RGBA
}

// NewImageProbe wraps img.
func NewImageProbe(img image.Image) *ImageProbe {
	return &ImageProbe{img: ToRGBA(img)}
}

// LoadImageProbe reads a PNG, JPEG or BMP file.
func LoadImageProbe(path string) (*ImageProbe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open screen image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode screen image %s: %w", path, err)
	}
	return NewImageProbe(img), nil
}

// Capture implements Probe.
func (p *ImageProbe) Capture(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.img, nil
}

// ToRGBA returns img as *image.RGBA, copying only when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return rgba
}
