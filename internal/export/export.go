// Package export renders workflows for sharing and documentation.
package export

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"text/template"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
	"github.com/chazuruo/clickflow/internal/workflows"
)

// Format represents the export format.
type Format string

const (
	// FormatMarkdown exports as Markdown.
	FormatMarkdown Format = "md"
	// FormatYAML exports as YAML.
	FormatYAML Format = "yaml"
	// FormatJSON exports the JSON record read by the desktop tool.
	FormatJSON Format = "json"
)

// ParseFormat accepts the format names and common aliases.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "md", "markdown":
		return FormatMarkdown, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", cferrors.Invalidf("unsupported format: %s (use md, yaml or json)", s)
	}
}

// Exporter exports workflows in various formats.
type Exporter struct {
	format      Format
	outPath     string
	templateDir string
	template    *template.Template
}

// Options contains export options.
type Options struct {
	Format Format
	// Out is the output file; empty or "-" leaves writing to the caller.
	Out string
	// CustomTemplate is a text/template file used for markdown output.
	CustomTemplate string
	// TemplateDir is where markdown image links point.
	TemplateDir string
}

// NewExporter creates a new exporter.
func NewExporter(opts Options) (*Exporter, error) {
	e := &Exporter{
		format:      opts.Format,
		outPath:     opts.Out,
		templateDir: opts.TemplateDir,
	}

	switch e.format {
	case FormatMarkdown:
		tmpl, err := loadTemplate(opts.CustomTemplate)
		if err != nil {
			return nil, err
		}
		e.template = tmpl
	case FormatYAML, FormatJSON:
		if opts.CustomTemplate != "" {
			return nil, cferrors.Invalidf("custom templates only apply to md output")
		}
	default:
		return nil, cferrors.Invalidf("unsupported format: %s", e.format)
	}
	return e, nil
}

func loadTemplate(customPath string) (*template.Template, error) {
	if customPath == "" {
		return template.New("export").Parse(builtinMarkdownTemplate)
	}
	data, err := os.ReadFile(customPath)
	if err != nil {
		return nil, fmt.Errorf("reading template file: %w", err)
	}
	tmpl, err := template.New(filepath.Base(customPath)).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing template file: %w", cferrors.ErrInvalid, err)
	}
	return tmpl, nil
}

// Export renders wf and writes it to the configured output file, if any.
func (e *Exporter) Export(wf *workflows.Workflow) (string, error) {
	if wf == nil {
		return "", cferrors.Invalidf("nil workflow")
	}

	var (
		data []byte
		err  error
	)
	switch e.format {
	case FormatJSON:
		data, err = workflows.MarshalDesktopJSON(wf)
	case FormatYAML:
		data, err = workflows.MarshalWorkflow(wf)
	default:
		var buf bytes.Buffer
		if err = e.template.Execute(&buf, e.templateData(wf)); err != nil {
			err = fmt.Errorf("executing template: %w", err)
		}
		data = buf.Bytes()
	}
	if err != nil {
		return "", err
	}

	if e.outPath != "" && e.outPath != "-" {
		if err := os.WriteFile(e.outPath, data, 0o644); err != nil {
			return "", &cferrors.StorageError{Op: "export", Path: e.outPath, Err: fmt.Errorf("%w: %w", cferrors.ErrIO, err)}
		}
	}
	return string(data), nil
}

// templateData creates template data from workflow.
func (e *Exporter) templateData(wf *workflows.Workflow) map[string]interface{} {
	var (
		images []map[string]interface{}
		seen   = map[string]bool{}
		counts = map[workflows.Kind]int{}
	)
	addImage := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		images = append(images, map[string]interface{}{
			"name": name,
			"link": e.imageLink(name),
		})
	}

	stepsData := make([]map[string]interface{}, len(wf.Steps))
	for i, step := range wf.Steps {
		counts[step.Kind]++
		stepData := map[string]interface{}{
			"position":  i + 1,
			"index":     step.Index,
			"kind":      string(step.Kind),
			"timestamp": step.Timestamp,
			"summary":   step.Describe(),
		}
		switch step.Kind {
		case workflows.KindCapture:
			stepData["image"] = step.Capture.Filename
			r := step.Capture.Coords
			stepData["region"] = fmt.Sprintf("%d,%d,%d,%d", r.X1, r.Y1, r.X2, r.Y2)
			addImage(step.Capture.Filename)
		case workflows.KindClick:
			stepData["image"] = step.Click.Image
			stepData["confidence"] = strconv.FormatFloat(step.Click.Confidence, 'f', -1, 64)
			addImage(step.Click.Image)
		case workflows.KindWait:
			stepData["seconds"] = strconv.FormatFloat(step.Wait.Duration, 'f', -1, 64)
		}
		stepsData[i] = stepData
	}

	return map[string]interface{}{
		"Name":     wf.Name,
		"Created":  wf.Created,
		"Count":    len(wf.Steps),
		"Captures": counts[workflows.KindCapture],
		"Clicks":   counts[workflows.KindClick],
		"Waits":    counts[workflows.KindWait],
		"Steps":    stepsData,
		"Images":   images,
	}
}

func (e *Exporter) imageLink(name string) string {
	if e.templateDir == "" {
		return name
	}
	return path.Join(filepath.ToSlash(e.templateDir), name)
}

// builtinMarkdownTemplate is the default Markdown template.
const builtinMarkdownTemplate = "# {{.Name}}\n\n" +
	"{{if .Created}}**Created:** {{.Created}}\n\n{{end}}" +
	"{{.Count}} steps: {{.Clicks}} clicks, {{.Waits}} waits, {{.Captures}} captures\n\n" +
	"## Steps\n\n" +
	"| # | Type | Details | Recorded |\n" +
	"|---|------|---------|----------|\n" +
	"{{range .Steps}}| {{.position}} | {{.kind}} | " +
	"{{if eq .kind \"click\"}}`{{.image}}` at confidence {{.confidence}}" +
	"{{else if eq .kind \"wait\"}}{{.seconds}}s" +
	"{{else if eq .kind \"capture\"}}`{{.image}}` from ({{.region}}){{end}}" +
	" | {{.timestamp}} |\n{{end}}" +
	"{{if .Images}}\n## Templates\n\n{{range .Images}}- ![{{.name}}]({{.link}})\n{{end}}{{end}}" +
	"\n---\n*Generated by clickflow*\n"
