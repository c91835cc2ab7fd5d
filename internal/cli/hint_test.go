package cli

import (
	"fmt"
	"os"
	"strings"
	"testing"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
)

func TestHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", fmt.Errorf("boom"), ""},
		{"missing config", &cferrors.ConfigError{Path: "/c.toml", Err: cferrors.ErrNotFound}, "clickflow init'"},
		{"broken config", &cferrors.ConfigError{Path: "/c.toml", Err: cferrors.ErrInvalid}, "fix /c.toml"},
		{"missing template", fmt.Errorf("click: %w", &cferrors.TemplateError{Op: "load", Name: "a.png", Err: cferrors.ErrNotFound}), "templates list"},
		{"fail-safe", fmt.Errorf("%w: pointer in corner", cferrors.ErrAborted), "fail-safe"},
		{"busy", &cferrors.WorkflowError{Op: "run", ID: "login", Err: cferrors.ErrBusy}, "current run"},
		{"match", &cferrors.MatchError{Op: "capture", Err: fmt.Errorf("no display")}, "display session"},
		{"exists", fmt.Errorf("%w: login.yaml", cferrors.ErrAlreadyExists), "--force"},
		{"io", &cferrors.StorageError{Op: "save", Path: "/t/a.png", Err: fmt.Errorf("%w: %w", cferrors.ErrIO, os.ErrPermission)}, "/t/a.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Hint(tt.err)
			if tt.want == "" {
				if got != "" {
					t.Errorf("Hint() = %q, want none", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("Hint() = %q, want it to mention %q", got, tt.want)
			}
		})
	}
}
