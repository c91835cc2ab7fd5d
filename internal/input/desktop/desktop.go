// Package desktop implements input against the local desktop session
// with robotgo.
package desktop

import (
	"context"
	"image"

	"github.com/go-vgo/robotgo"
)

// Clicker moves the system pointer and presses the left button.
type Clicker struct{}

// NewClicker returns a desktop clicker.
func NewClicker() *Clicker { return &Clicker{} }

// Click moves to p and clicks once.
func (c *Clicker) Click(ctx context.Context, p image.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	robotgo.Move(p.X, p.Y)
	robotgo.Click("left")
	return nil
}

// Pointer reads the system pointer.
type Pointer struct{}

// Position returns the pointer location.
func (Pointer) Position() (image.Point, error) {
	x, y := robotgo.Location()
	return image.Pt(x, y), nil
}

// ScreenSize returns the main display size.
func (Pointer) ScreenSize() (image.Point, error) {
	w, h := robotgo.GetScreenSize()
	return image.Pt(w, h), nil
}
