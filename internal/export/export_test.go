package export

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
	"github.com/chazuruo/clickflow/internal/workflows"
)

func sampleWorkflow() *workflows.Workflow {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	steps := []workflows.Step{
		workflows.NewCaptureStep(0, at, "submit.png", image.Rect(10, 20, 110, 60)),
		workflows.NewClickStep(1, at, "submit.png", 0.85),
		workflows.NewWaitStep(2, at, 2),
		workflows.NewClickStep(3, at, "ok.png", 0.9),
	}
	return &workflows.Workflow{
		SchemaVersion: workflows.SchemaVersion,
		Name:          "login",
		Created:       workflows.FormatTimestamp(at),
		StepsCount:    len(steps),
		Steps:         steps,
	}
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "markdown format", opts: Options{Format: FormatMarkdown}},
		{name: "yaml format", opts: Options{Format: FormatYAML}},
		{name: "json format", opts: Options{Format: FormatJSON}},
		{name: "invalid format", opts: Options{Format: Format("invalid")}, wantErr: true},
		{name: "custom template on json", opts: Options{Format: FormatJSON, CustomTemplate: "x.tmpl"}, wantErr: true},
		{name: "missing custom template", opts: Options{Format: FormatMarkdown, CustomTemplate: "/nonexistent/x.tmpl"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExporter(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"md", FormatMarkdown},
		{"markdown", FormatMarkdown},
		{"yml", FormatYAML},
		{"yaml", FormatYAML},
		{"json", FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFormat("html")
	assert.True(t, cferrors.IsInvalid(err))
}

func TestExporter_Markdown(t *testing.T) {
	e, err := NewExporter(Options{Format: FormatMarkdown, TemplateDir: "templates"})
	require.NoError(t, err)

	out, err := e.Export(sampleWorkflow())
	require.NoError(t, err)

	assert.Contains(t, out, "# login\n")
	assert.Contains(t, out, "**Created:** 2025-01-02T03:04:05.000000Z")
	assert.Contains(t, out, "4 steps: 2 clicks, 1 waits, 1 captures")
	assert.Contains(t, out, "| 1 | capture | `submit.png` from (10,20,110,60) |")
	assert.Contains(t, out, "| 2 | click | `submit.png` at confidence 0.85 |")
	assert.Contains(t, out, "| 3 | wait | 2s |")
	assert.Contains(t, out, "- ![submit.png](templates/submit.png)\n- ![ok.png](templates/ok.png)\n")
	assert.Contains(t, out, "*Generated by clickflow*")
}

func TestExporter_CustomTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("{{.Name}}:{{range .Steps}} {{.kind}}{{end}}\n"), 0o644))

	e, err := NewExporter(Options{Format: FormatMarkdown, CustomTemplate: path})
	require.NoError(t, err)
	out, err := e.Export(sampleWorkflow())
	require.NoError(t, err)
	assert.Equal(t, "login: capture click wait click\n", out)
}

func TestExporter_JSONRoundTrip(t *testing.T) {
	e, err := NewExporter(Options{Format: FormatJSON})
	require.NoError(t, err)

	wf := sampleWorkflow()
	out, err := e.Export(wf)
	require.NoError(t, err)
	assert.Contains(t, out, `"steps_count": 4`)
	assert.Contains(t, out, `"type": "screenshot"`)
	assert.NotContains(t, out, `"type": "capture"`)

	back, err := workflows.UnmarshalWorkflow([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, wf.Steps, back.Steps)
	assert.Equal(t, "login", back.Name)
}

func TestExporter_YAMLToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "login.yaml")
	e, err := NewExporter(Options{Format: FormatYAML, Out: out})
	require.NoError(t, err)

	text, err := e.Export(sampleWorkflow())
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, text, string(data))

	back, err := workflows.UnmarshalWorkflow(data)
	require.NoError(t, err)
	assert.Len(t, back.Steps, 4)
}

func TestExporter_Errors(t *testing.T) {
	e, err := NewExporter(Options{Format: FormatYAML, Out: filepath.Join(t.TempDir(), "missing", "x.yaml")})
	require.NoError(t, err)

	_, err = e.Export(sampleWorkflow())
	assert.True(t, cferrors.IsIO(err))

	_, err = e.Export(nil)
	assert.True(t, cferrors.IsInvalid(err))
}
