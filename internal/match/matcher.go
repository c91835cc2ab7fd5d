// Package match locates a template image inside a screen capture.
package match

import (
	"context"
	"fmt"
	"image"
)

// Result is the best match of a template on a screen.
type Result struct {
	// Box is the matched region in screen coordinates.
	Box image.Rectangle
	// Score is the similarity in [-1, 1]; 1 is a perfect match.
	Score float64
}

// Center returns the center point of the matched region.
func (r Result) Center() image.Point {
	return image.Pt(r.Box.Min.X+r.Box.Dx()/2, r.Box.Min.Y+r.Box.Dy()/2)
}

// Matcher compares a template against a screen.
//
// Match reports found only when the best score is at least confidence.
// An error means the primitive itself failed; "not found" is not an error.
type Matcher interface {
	Match(ctx context.Context, screen *image.RGBA, tmpl image.Image, confidence float64) (Result, bool, error)
}

// New returns the matcher registered under name.
func New(name string, stride int) (Matcher, error) {
	switch name {
	case "", "ncc":
		return &NCCMatcher{Stride: stride, Refine: true}, nil
	case "opencv":
		return newOpenCVMatcher()
	default:
		return nil, fmt.Errorf("unknown matcher %q", name)
	}
}

// Available lists the matcher names this build supports.
func Available() []string {
	if openCVAvailable {
		return []string{"ncc", "opencv"}
	}
	return []string{"ncc"}
}
