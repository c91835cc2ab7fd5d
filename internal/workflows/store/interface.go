package store

import (
	"context"

	"github.com/chazuruo/clickflow/internal/workflows"
)

// Store defines the interface for workflow persistence operations.
type Store interface {
	// List returns workflow references matching the given filter, sorted by
	// name. If filter is empty, returns all workflows.
	List(ctx context.Context, filter Filter) ([]WorkflowRef, error)

	// Load reads a workflow from the store by its reference.
	Load(ctx context.Context, ref WorkflowRef) (*workflows.Workflow, error)

	// LoadByName reads a workflow by its name or slug.
	LoadByName(ctx context.Context, name string) (*workflows.Workflow, WorkflowRef, error)

	// Save writes a workflow to the store.
	// Returns the reference to the saved workflow.
	Save(ctx context.Context, wf *workflows.Workflow, opts SaveOptions) (WorkflowRef, error)

	// Delete removes a workflow from the store.
	Delete(ctx context.Context, ref WorkflowRef) error
}

// SaveOptions contains options for saving a workflow.
type SaveOptions struct {
	// Force allows overwriting an existing workflow if true.
	Force bool

	// Format overrides the store's file format ("yaml" or "json").
	Format string
}
