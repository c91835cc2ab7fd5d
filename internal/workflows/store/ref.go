package store

import "time"

// WorkflowRef is a lightweight reference to a workflow file.
type WorkflowRef struct {
	// Name is the workflow name recorded in the file.
	Name string

	// Slug is the file name without extension.
	Slug string

	// Path is the full path to the workflow file.
	Path string

	// Steps is the number of recorded steps.
	Steps int

	// UpdatedAt is the last modification time.
	UpdatedAt time.Time
}

// IsZero reports whether ref points at nothing.
func (r WorkflowRef) IsZero() bool { return r.Path == "" }

// Filter defines criteria for filtering workflows.
type Filter struct {
	// Search matches a case-insensitive substring of the workflow name.
	Search string
}
