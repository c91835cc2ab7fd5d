// Package history keeps a journal of workflow runs.
package history

import (
	"context"
	"time"
)

// Entry is one finished workflow run.
type Entry struct {
	ID       string        `json:"id"`
	Workflow string        `json:"workflow"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Clicked  int           `json:"clicked"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Canceled bool          `json:"canceled"`
}

// Status returns a one-word summary of the run.
func (e Entry) Status() string {
	switch {
	case e.Canceled:
		return "canceled"
	case e.Failed > 0:
		return "partial"
	default:
		return "ok"
	}
}

// Journal records runs and lists the most recent ones first.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
}

// Nop is a Journal that keeps nothing.
type Nop struct{}

// Append implements Journal.
func (Nop) Append(context.Context, Entry) error { return nil }

// List implements Journal.
func (Nop) List(context.Context, int) ([]Entry, error) { return nil, nil }
