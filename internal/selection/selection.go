// Package selection turns a captured screen into the regions a user marked.
package selection

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"strings"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
)

// Capturer lets a user mark up to max regions on screen. An empty
// selection is reported as ErrCanceled.
type Capturer interface {
	Select(ctx context.Context, screen image.Image, max int) ([]image.Rectangle, error)
}

// Fixed is a Capturer that returns predetermined regions, used by the CLI
// where regions are given as x1,y1,x2,y2 arguments.
type Fixed struct {
	Regions []image.Rectangle
	// MinSize is the minimum width and height of each region.
	MinSize int
}

// NewFixed parses regions of the form "x1,y1,x2,y2".
func NewFixed(minSize int, regions ...string) (*Fixed, error) {
	f := &Fixed{MinSize: minSize}
	for _, region := range regions {
		r, err := ParseRect(region)
		if err != nil {
			return nil, err
		}
		f.Regions = append(f.Regions, r)
	}
	return f, nil
}

// Select implements Capturer. Regions are clipped to the screen and
// truncated to max.
func (f *Fixed) Select(ctx context.Context, screen image.Image, max int) ([]image.Rectangle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.Regions) == 0 {
		return nil, fmt.Errorf("%w: no region selected", cferrors.ErrCanceled)
	}

	regions := f.Regions
	if max > 0 && len(regions) > max {
		regions = regions[:max]
	}

	out := make([]image.Rectangle, 0, len(regions))
	for _, r := range regions {
		r = r.Canon()
		if screen != nil {
			r = r.Intersect(screen.Bounds())
		}
		if r.Dx() < f.MinSize || r.Dy() < f.MinSize {
			return nil, cferrors.Invalidf("region %v is smaller than %dx%d", r, f.MinSize, f.MinSize)
		}
		out = append(out, r)
	}
	return out, nil
}

// ParseRect parses "x1,y1,x2,y2" into a canonical rectangle.
func ParseRect(region string) (image.Rectangle, error) {
	parts := strings.Split(region, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, cferrors.Invalidf("region %q: want x1,y1,x2,y2", region)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, cferrors.Invalidf("region %q: %v", region, err)
		}
		v[i] = n
	}
	return image.Rect(v[0], v[1], v[2], v[3]), nil
}
