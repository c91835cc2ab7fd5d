// Package input synthesizes clicks and reads the pointer.
package input

import (
	"context"
	"image"
	"log/slog"
	"sync"
)

// Clicker moves the pointer to a screen coordinate and clicks.
type Clicker interface {
	Click(ctx context.Context, p image.Point) error
}

// PointerSource reports the pointer position and screen size.
type PointerSource interface {
	Position() (image.Point, error)
	ScreenSize() (image.Point, error)
}

// LogClicker logs clicks instead of performing them (dry run).
type LogClicker struct {
	Logger *slog.Logger

	mu     sync.Mutex
	points []image.Point
}

// Click records p.
func (c *LogClicker) Click(ctx context.Context, p image.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.points = append(c.points, p)
	c.mu.Unlock()

	if c.Logger != nil {
		c.Logger.Info("click (dry run)", "x", p.X, "y", p.Y)
	}
	return nil
}

// Points returns the clicks seen so far.
func (c *LogClicker) Points() []image.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]image.Point(nil), c.points...)
}
