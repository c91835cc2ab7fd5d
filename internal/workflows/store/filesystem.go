package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
	"github.com/chazuruo/clickflow/internal/workflows"
)

// extensions recognized as workflow files, in lookup order.
var extensions = []string{".yaml", ".yml", ".json"}

// FileSystemStore implements the Store interface with one file per
// workflow in a flat directory.
type FileSystemStore struct {
	dir    string
	format string
	logger *slog.Logger
}

// New creates a new FileSystemStore. format is "yaml" or "json".
func New(dir, format string, logger *slog.Logger) (*FileSystemStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("workflow directory cannot be empty")
	}
	if format == "" {
		format = "yaml"
	}
	if format != "yaml" && format != "json" {
		return nil, cferrors.Invalidf("workflow format %q", format)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSystemStore{dir: dir, format: format, logger: logger}, nil
}

// Dir returns the workflow directory.
func (s *FileSystemStore) Dir() string { return s.dir }

// List returns workflow references matching the given filter.
// Files that fail to parse are skipped with a warning.
func (s *FileSystemStore) List(ctx context.Context, filter Filter) ([]WorkflowRef, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &cferrors.StorageError{Op: "list", Path: s.dir, Err: fmt.Errorf("%w: %w", cferrors.ErrIO, err)}
	}

	search := strings.ToLower(filter.Search)
	var refs []WorkflowRef
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !isWorkflowFile(e.Name()) {
			continue
		}

		path := filepath.Join(s.dir, e.Name())
		ref, err := s.pathToRef(path)
		if err != nil {
			s.logger.Warn("skipping unreadable workflow", "path", path, "error", err)
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(ref.Name), search) {
			continue
		}
		refs = append(refs, ref)
	}

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Name != refs[j].Name {
			return refs[i].Name < refs[j].Name
		}
		return refs[i].Path < refs[j].Path
	})
	return refs, nil
}

// Load reads a workflow from the store by its reference.
func (s *FileSystemStore) Load(ctx context.Context, ref WorkflowRef) (*workflows.Workflow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return workflows.LoadFile(ref.Path)
}

// LoadByName finds a workflow by slug first, then by recorded name.
func (s *FileSystemStore) LoadByName(ctx context.Context, name string) (*workflows.Workflow, WorkflowRef, error) {
	if slug := Slugify(name); slug != "" {
		for _, ext := range extensions {
			path := filepath.Join(s.dir, slug+ext)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			wf, err := workflows.LoadFile(path)
			if err != nil {
				return nil, WorkflowRef{}, err
			}
			ref, err := s.pathToRef(path)
			return wf, ref, err
		}
	}

	refs, err := s.List(ctx, Filter{})
	if err != nil {
		return nil, WorkflowRef{}, err
	}
	for _, ref := range refs {
		if ref.Name == name {
			wf, err := s.Load(ctx, ref)
			return wf, ref, err
		}
	}
	return nil, WorkflowRef{}, &cferrors.WorkflowError{Op: "load", ID: name, Err: cferrors.ErrNotFound}
}

// Save writes a workflow to the store.
func (s *FileSystemStore) Save(ctx context.Context, wf *workflows.Workflow, opts SaveOptions) (WorkflowRef, error) {
	if err := ctx.Err(); err != nil {
		return WorkflowRef{}, err
	}
	if err := wf.Validate(); err != nil {
		return WorkflowRef{}, &cferrors.WorkflowError{Op: "save", ID: wf.Name, Err: fmt.Errorf("%w: %w", cferrors.ErrInvalid, err)}
	}

	slug := Slugify(wf.Name)
	if slug == "" {
		return WorkflowRef{}, &cferrors.WorkflowError{Op: "save", ID: wf.Name, Err: cferrors.Invalidf("cannot generate slug from name")}
	}

	format := s.format
	if opts.Format != "" {
		format = opts.Format
	}

	var (
		data []byte
		ext  string
		err  error
	)
	switch format {
	case "json":
		data, err = workflows.MarshalWorkflowJSON(wf)
		ext = ".json"
	case "yaml":
		data, err = workflows.MarshalWorkflow(wf)
		ext = ".yaml"
	default:
		return WorkflowRef{}, cferrors.Invalidf("workflow format %q", format)
	}
	if err != nil {
		return WorkflowRef{}, &cferrors.WorkflowError{Op: "save", ID: wf.Name, Err: err}
	}

	path := filepath.Join(s.dir, slug+ext)

	// Check if file exists and Force is not set
	if _, err := os.Stat(path); err == nil && !opts.Force {
		return WorkflowRef{}, &cferrors.WorkflowError{Op: "save", ID: wf.Name,
			Err: fmt.Errorf("%w: %s (use Force to overwrite)", cferrors.ErrAlreadyExists, path)}
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return WorkflowRef{}, &cferrors.StorageError{Op: "mkdir", Path: s.dir, Err: fmt.Errorf("%w: %w", cferrors.ErrIO, err)}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return WorkflowRef{}, &cferrors.StorageError{Op: "save", Path: path, Err: fmt.Errorf("%w: %w", cferrors.ErrIO, err)}
	}

	s.logger.Debug("workflow saved", "name", wf.Name, "path", path, "steps", len(wf.Steps))
	return s.pathToRef(path)
}

// Delete removes a workflow from the store.
func (s *FileSystemStore) Delete(ctx context.Context, ref WorkflowRef) error {
	if err := os.Remove(ref.Path); err != nil {
		if os.IsNotExist(err) {
			return &cferrors.WorkflowError{Op: "delete", ID: ref.Name, Err: cferrors.ErrNotFound}
		}
		return &cferrors.StorageError{Op: "delete", Path: ref.Path, Err: fmt.Errorf("%w: %w", cferrors.ErrIO, err)}
	}
	return nil
}

// pathToRef converts a file path to a WorkflowRef.
func (s *FileSystemStore) pathToRef(path string) (WorkflowRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		return WorkflowRef{}, &cferrors.StorageError{Op: "stat", Path: path, Err: fmt.Errorf("%w: %w", cferrors.ErrIO, err)}
	}
	wf, err := workflows.LoadFile(path)
	if err != nil {
		return WorkflowRef{}, err
	}

	base := filepath.Base(path)
	return WorkflowRef{
		Name:      wf.Name,
		Slug:      strings.TrimSuffix(base, filepath.Ext(base)),
		Path:      path,
		Steps:     len(wf.Steps),
		UpdatedAt: info.ModTime(),
	}, nil
}

func isWorkflowFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
