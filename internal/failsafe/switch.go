// Package failsafe implements the global abort switch.
//
// Once tripped, every locate, click, and replay in flight stops and no
// further click is performed until the switch is reset.
package failsafe

import (
	"context"
	"fmt"
	"sync"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
)

// Switch is a one-shot abort signal shared by all workers.
type Switch struct {
	mu     sync.Mutex
	done   chan struct{}
	reason string
}

// New returns an untripped switch.
func New() *Switch {
	return &Switch{done: make(chan struct{})}
}

// Trip fires the switch. Later calls keep the first reason.
func (s *Switch) Trip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
	default:
		s.reason = reason
		close(s.done)
	}
}

// Tripped reports whether the switch has fired.
func (s *Switch) Tripped() bool {
	select {
	case <-s.Done():
		return true
	default:
		return false
	}
}

// Done is closed when the switch trips.
func (s *Switch) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err returns nil until tripped, then an error wrapping ErrAborted.
func (s *Switch) Err() error {
	if !s.Tripped() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reason == "" {
		return cferrors.ErrAborted
	}
	return fmt.Errorf("%w: %s", cferrors.ErrAborted, s.reason)
}

// Reset re-arms a tripped switch.
func (s *Switch) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		s.done = make(chan struct{})
		s.reason = ""
	default:
	}
}

// Context returns a context canceled when parent is done or the switch trips.
// The returned cancel must be called to release resources.
func (s *Switch) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	if err := s.Err(); err != nil {
		cancel(err)
		return ctx, func() { cancel(context.Canceled) }
	}
	done := s.Done()
	stop := make(chan struct{})
	go func() {
		select {
		case <-done:
			cancel(s.Err())
		case <-ctx.Done():
		case <-stop:
		}
	}()
	return ctx, func() {
		close(stop)
		cancel(context.Canceled)
	}
}
