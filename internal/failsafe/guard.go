package failsafe

import (
	"context"
	"image"

	"github.com/chazuruo/clickflow/internal/input"
)

// GuardClicker wraps a clicker with the fail-safe: it refuses to click once
// the switch has tripped and checks the pointer before every click.
type GuardClicker struct {
	Next    input.Clicker
	Switch  *Switch
	Watcher *CornerWatcher // optional
}

// Click implements input.Clicker.
func (g *GuardClicker) Click(ctx context.Context, p image.Point) error {
	if g.Watcher != nil {
		g.Watcher.Check()
	}
	if err := g.Switch.Err(); err != nil {
		return err
	}
	return g.Next.Click(ctx, p)
}
