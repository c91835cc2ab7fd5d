//go:build gocv

package match

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

const openCVAvailable = true

// OpenCVMatcher matches with cv::matchTemplate (TM_CCOEFF_NORMED).
type OpenCVMatcher struct{}

func newOpenCVMatcher() (Matcher, error) {
	return &OpenCVMatcher{}, nil
}

// Match implements Matcher.
func (m *OpenCVMatcher) Match(ctx context.Context, screen *image.RGBA, tmpl image.Image, confidence float64) (Result, bool, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, false, err
	}
	if screen == nil || tmpl == nil {
		return Result{}, false, fmt.Errorf("screen and template are required")
	}

	src, err := gocv.ImageToMatRGB(screen)
	if err != nil {
		return Result{}, false, fmt.Errorf("failed to convert screen: %w", err)
	}
	defer src.Close()

	needle, err := gocv.ImageToMatRGB(tmpl)
	if err != nil {
		return Result{}, false, fmt.Errorf("failed to convert template: %w", err)
	}
	defer needle.Close()

	if needle.Cols() > src.Cols() || needle.Rows() > src.Rows() {
		return Result{}, false, fmt.Errorf("%w: %dx%d > %dx%d", ErrTemplateTooLarge,
			needle.Cols(), needle.Rows(), src.Cols(), src.Rows())
	}

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(src, needle, &result, gocv.TmCcoeffNormed, mask)
	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)

	topLeft := screen.Bounds().Min.Add(maxLoc)
	res := Result{
		Box:   image.Rectangle{Min: topLeft, Max: topLeft.Add(image.Pt(needle.Cols(), needle.Rows()))},
		Score: float64(maxVal),
	}
	return res, res.Score >= confidence, nil
}
