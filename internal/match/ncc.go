package match

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrTemplateTooLarge is returned when the template does not fit the screen.
var ErrTemplateTooLarge = errors.New("template larger than screen")

const varianceEpsilon = 1e-6

// NCCMatcher is a pure-Go grayscale normalized cross-correlation matcher.
//
// Stride > 1 scans a coarse grid first; Refine then searches every pixel
// around the best coarse hit.
type NCCMatcher struct {
	Stride int
	Refine bool
}

// grayImage is a luma plane with the origin of the source image.
type grayImage struct {
	pix    []float64
	w, h   int
	origin image.Point
}

func toGray(img image.Image) grayImage {
	b := img.Bounds()
	g := grayImage{pix: make([]float64, b.Dx()*b.Dy()), w: b.Dx(), h: b.Dy(), origin: b.Min}

	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < g.h; y++ {
			row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+g.w*4]
			for x := 0; x < g.w; x++ {
				p := row[x*4 : x*4+3]
				g.pix[y*g.w+x] = 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
			}
		}
		return g
	}

	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			r, gg, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			g.pix[y*g.w+x] = (0.299*float64(r) + 0.587*float64(gg) + 0.114*float64(bb)) / 257
		}
	}
	return g
}

// integral holds summed-area tables of values and squared values.
type integral struct {
	sum, sq []float64
	stride  int
}

func newIntegral(g grayImage) integral {
	stride := g.w + 1
	in := integral{sum: make([]float64, stride*(g.h+1)), sq: make([]float64, stride*(g.h+1)), stride: stride}
	for y := 0; y < g.h; y++ {
		var rowSum, rowSq float64
		for x := 0; x < g.w; x++ {
			v := g.pix[y*g.w+x]
			rowSum += v
			rowSq += v * v
			in.sum[(y+1)*stride+x+1] = in.sum[y*stride+x+1] + rowSum
			in.sq[(y+1)*stride+x+1] = in.sq[y*stride+x+1] + rowSq
		}
	}
	return in
}

func (in integral) rect(table []float64, x, y, w, h int) float64 {
	s := in.stride
	return table[(y+h)*s+x+w] - table[y*s+x+w] - table[(y+h)*s+x] + table[y*s+x]
}

// Match implements Matcher.
func (m *NCCMatcher) Match(ctx context.Context, screen *image.RGBA, tmpl image.Image, confidence float64) (Result, bool, error) {
	if screen == nil || tmpl == nil {
		return Result{}, false, fmt.Errorf("screen and template are required")
	}

	hay := toGray(screen)
	needle := toGray(tmpl)
	if needle.w == 0 || needle.h == 0 {
		return Result{}, false, fmt.Errorf("template is empty")
	}
	if needle.w > hay.w || needle.h > hay.h {
		return Result{}, false, fmt.Errorf("%w: %dx%d > %dx%d", ErrTemplateTooLarge, needle.w, needle.h, hay.w, hay.h)
	}

	s := scorer{hay: hay, needle: needle, table: newIntegral(hay)}
	s.prepareTemplate()

	stride := m.Stride
	if stride < 1 {
		stride = 1
	}

	maxX, maxY := hay.w-needle.w, hay.h-needle.h
	bestX, bestY, best := 0, 0, math.Inf(-1)

	for y := 0; y <= maxY; y += stride {
		if err := ctx.Err(); err != nil {
			return Result{}, false, err
		}
		for x := 0; x <= maxX; x += stride {
			if score := s.at(x, y); score > best {
				bestX, bestY, best = x, y, score
			}
		}
	}

	if m.Refine && stride > 1 {
		for y := max(0, bestY-stride+1); y <= min(maxY, bestY+stride-1); y++ {
			for x := max(0, bestX-stride+1); x <= min(maxX, bestX+stride-1); x++ {
				if score := s.at(x, y); score > best {
					bestX, bestY, best = x, y, score
				}
			}
		}
	}

	if best > 1-1e-9 {
		best = 1
	}

	topLeft := hay.origin.Add(image.Pt(bestX, bestY))
	res := Result{
		Box:   image.Rectangle{Min: topLeft, Max: topLeft.Add(image.Pt(needle.w, needle.h))},
		Score: best,
	}
	return res, best >= confidence, nil
}

type scorer struct {
	hay    grayImage
	needle grayImage
	table  integral

	dev   []float64 // template minus its mean
	mean  float64
	tvar  float64 // sum of squared deviations
	count float64
}

func (s *scorer) prepareTemplate() {
	n := len(s.needle.pix)
	s.count = float64(n)
	for _, v := range s.needle.pix {
		s.mean += v
	}
	s.mean /= s.count

	s.dev = make([]float64, n)
	for i, v := range s.needle.pix {
		d := v - s.mean
		s.dev[i] = d
		s.tvar += d * d
	}
}

func (s *scorer) at(x, y int) float64 {
	w, h := s.needle.w, s.needle.h
	sum := s.table.rect(s.table.sum, x, y, w, h)
	sq := s.table.rect(s.table.sq, x, y, w, h)
	wmean := sum / s.count
	wvar := sq - sum*sum/s.count
	if wvar < 0 {
		wvar = 0
	}

	// A flat template has no correlation signal; compare brightness and
	// penalize texture in the window instead.
	if s.tvar/s.count <= varianceEpsilon {
		return 1 - (math.Abs(wmean-s.mean)+math.Sqrt(wvar/s.count))/255
	}
	if wvar/s.count <= varianceEpsilon {
		return 0
	}

	var cross float64
	for ty := 0; ty < h; ty++ {
		row := s.hay.pix[(y+ty)*s.hay.w+x : (y+ty)*s.hay.w+x+w]
		dev := s.dev[ty*w : ty*w+w]
		for tx, v := range row {
			cross += v * dev[tx]
		}
	}
	return math.Min(1, cross/math.Sqrt(wvar*s.tvar))
}
