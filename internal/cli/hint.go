package cli

import (
	"fmt"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
)

// Hint suggests a next step for a command error, or returns "" when there
// is nothing useful to add.
func Hint(err error) string {
	if err == nil {
		return ""
	}

	if ce, ok := cferrors.AsConfigError(err); ok {
		if ce.Path != "" && !cferrors.IsNotFound(ce) {
			return fmt.Sprintf("fix %s or recreate it with 'clickflow init --force'", ce.Path)
		}
		return "run 'clickflow init' to create a configuration"
	}
	if te, ok := cferrors.AsTemplateError(err); ok && cferrors.IsNotFound(te) {
		return "run 'clickflow templates list' to see saved templates"
	}

	switch {
	case cferrors.IsAborted(err):
		return "the fail-safe stopped automation; move the pointer away from the screen corner and retry"
	case cferrors.IsBusy(err):
		return "wait for the current run or recording to finish"
	case cferrors.IsMatch(err):
		return "screen capture or clicking failed; check that a display session is attached"
	case cferrors.IsAlreadyExists(err):
		return "pass --force to overwrite"
	}
	if se, ok := cferrors.AsStorageError(err); ok && cferrors.IsIO(se) {
		return fmt.Sprintf("check permissions and free space for %s", se.Path)
	}
	return ""
}
