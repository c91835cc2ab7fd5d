package failsafe

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/chazuruo/clickflow/internal/input"
)

// InCorner reports whether p lies within margin pixels of a corner of a
// screen of the given size.
func InCorner(p, size image.Point, margin int) bool {
	nearX := p.X <= margin || p.X >= size.X-1-margin
	nearY := p.Y <= margin || p.Y >= size.Y-1-margin
	return nearX && nearY
}

// CornerWatcher trips a switch when the pointer reaches a screen corner.
type CornerWatcher struct {
	Pointer  input.PointerSource
	Switch   *Switch
	Margin   int
	Interval time.Duration
	Logger   *slog.Logger
}

// Check trips the switch if the pointer is in a corner right now.
func (w *CornerWatcher) Check() bool {
	p, err := w.Pointer.Position()
	if err != nil {
		w.logger().Debug("pointer position unavailable", "error", err)
		return false
	}
	size, err := w.Pointer.ScreenSize()
	if err != nil {
		w.logger().Debug("screen size unavailable", "error", err)
		return false
	}
	if InCorner(p, size, w.Margin) {
		w.logger().Warn("fail-safe triggered", "x", p.X, "y", p.Y)
		w.Switch.Trip("pointer moved to a screen corner")
		return true
	}
	return false
}

// Run polls until ctx is done or the switch trips.
func (w *CornerWatcher) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if w.Check() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-w.Switch.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *CornerWatcher) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
