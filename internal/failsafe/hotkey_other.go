//go:build !windows

package failsafe

import (
	"context"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
)

// WatchHotkey is only available on Windows.
func WatchHotkey(ctx context.Context, sw *Switch) error {
	return cferrors.Invalidf("abort hotkey is not supported on this platform")
}
