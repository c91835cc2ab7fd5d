//go:build windows

package failsafe

import (
	"context"
	"fmt"

	"github.com/moutend/go-hook/pkg/keyboard"
	"github.com/moutend/go-hook/pkg/types"
)

// WatchHotkey trips sw when Esc or Pause is pressed. It blocks until ctx
// is done or the switch trips.
func WatchHotkey(ctx context.Context, sw *Switch) error {
	events := make(chan types.KeyboardEvent, 100)
	installed := make(chan error, 1)
	go func() { installed <- keyboard.Install(nil, events) }()
	defer keyboard.Uninstall()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sw.Done():
			return nil
		case err := <-installed:
			if err != nil {
				return fmt.Errorf("failed to install keyboard hook: %w", err)
			}
			installed = nil
		case ev := <-events:
			if ev.Message != types.WM_KEYDOWN {
				continue
			}
			if reason, ok := hotkeyReason(uint32(ev.VKCode)); ok {
				sw.Trip(reason)
				return nil
			}
		}
	}
}
