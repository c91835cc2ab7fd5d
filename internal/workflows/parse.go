package workflows

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
)

// LoadFile reads a workflow file (YAML or JSON).
//
// A legacy file holding only a list of steps is named after the file stem.
// Read and decode failures are returned as *errors.StorageError.
func LoadFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &cferrors.StorageError{Op: "load", Path: path, Err: cferrors.ErrNotFound}
		}
		return nil, &cferrors.StorageError{Op: "load", Path: path, Err: fmt.Errorf("%w: %w", cferrors.ErrIO, err)}
	}
	wf, err := unmarshalNamed(data, stem(path))
	if err != nil {
		return nil, &cferrors.StorageError{Op: "load", Path: path, Err: err}
	}
	return wf, nil
}

// LoadReader unmarshals a workflow from an io.Reader.
//
// LoadReader is useful for reading workflows from stdin or other
// streaming sources.
func LoadReader(r io.Reader) (*Workflow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return UnmarshalWorkflow(data)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
