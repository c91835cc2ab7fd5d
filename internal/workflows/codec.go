package workflows

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
)

// record is the on-disk form shared by YAML and JSON files.
type record struct {
	SchemaVersion int          `yaml:"schema_version,omitempty" json:"schema_version,omitempty"`
	Name          string       `yaml:"name" json:"name"`
	Created       string       `yaml:"created" json:"created"`
	StepsCount    int          `yaml:"steps_count" json:"steps_count"`
	Workflow      []stepRecord `yaml:"workflow" json:"workflow"`
}

type stepRecord struct {
	Step      int    `yaml:"step" json:"step"`
	Type      string `yaml:"type" json:"type"`
	Timestamp string `yaml:"timestamp" json:"timestamp"`
	Data      any    `yaml:"data" json:"data"`
}

type captureRecord struct {
	Filename string `yaml:"filename" json:"filename"`
	Coords   []int  `yaml:"coords,flow" json:"coords"`
}

type clickRecord struct {
	Image      string  `yaml:"image" json:"image"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
}

type waitRecord struct {
	Duration float64 `yaml:"duration" json:"duration"`
}

func (s Step) toRecord() stepRecord {
	r := stepRecord{Step: s.Index, Type: string(s.Kind), Timestamp: s.Timestamp}
	switch {
	case s.Capture != nil:
		c := s.Capture.Coords
		r.Data = captureRecord{Filename: s.Capture.Filename, Coords: []int{c.X1, c.Y1, c.X2, c.Y2}}
	case s.Click != nil:
		r.Data = clickRecord{Image: s.Click.Image, Confidence: s.Click.Confidence}
	case s.Wait != nil:
		r.Data = waitRecord{Duration: s.Wait.Duration}
	}
	return r
}

func (w *Workflow) toRecord() record {
	rec := record{
		SchemaVersion: w.SchemaVersion,
		Name:          w.Name,
		Created:       w.Created,
		StepsCount:    len(w.Steps),
		Workflow:      make([]stepRecord, len(w.Steps)),
	}
	for i, s := range w.Steps {
		rec.Workflow[i] = s.toRecord()
	}
	return rec
}

// MarshalYAML implements custom YAML marshaling for Step
func (s Step) MarshalYAML() (interface{}, error) {
	return s.toRecord(), nil
}

// UnmarshalYAML implements custom YAML unmarshaling for Step
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Step      int       `yaml:"step"`
		Type      string    `yaml:"type"`
		Timestamp string    `yaml:"timestamp"`
		Data      yaml.Node `yaml:"data"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	*s = Step{Index: raw.Step, Timestamp: raw.Timestamp}
	switch raw.Type {
	case string(KindCapture), legacyCaptureKind:
		var d captureRecord
		if err := raw.Data.Decode(&d); err != nil {
			return fmt.Errorf("step %d: capture data: %w", raw.Step, err)
		}
		if len(d.Coords) != 4 {
			return fmt.Errorf("%w: step %d: capture coords must have 4 values; got %d",
				cferrors.ErrInvalid, raw.Step, len(d.Coords))
		}
		s.Kind = KindCapture
		s.Capture = &CaptureData{Filename: d.Filename,
			Coords: Rect{X1: d.Coords[0], Y1: d.Coords[1], X2: d.Coords[2], Y2: d.Coords[3]}}
	case string(KindClick):
		var d clickRecord
		if err := raw.Data.Decode(&d); err != nil {
			return fmt.Errorf("step %d: click data: %w", raw.Step, err)
		}
		s.Kind = KindClick
		s.Click = &ClickData{Image: d.Image, Confidence: d.Confidence}
	case string(KindWait):
		var d waitRecord
		if err := raw.Data.Decode(&d); err != nil {
			return fmt.Errorf("step %d: wait data: %w", raw.Step, err)
		}
		s.Kind = KindWait
		s.Wait = &WaitData{Duration: d.Duration}
	default:
		return fmt.Errorf("%w: step %d: unknown step type %q", cferrors.ErrInvalid, raw.Step, raw.Type)
	}
	return nil
}

// MarshalYAML implements custom YAML marshaling for Workflow
func (w Workflow) MarshalYAML() (interface{}, error) {
	return w.toRecord(), nil
}

// MarshalJSON writes the same record form as YAML.
func (w Workflow) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.toRecord())
}

// UnmarshalJSON reads the record form.
func (w *Workflow) UnmarshalJSON(data []byte) error {
	wf, err := UnmarshalWorkflow(data)
	if err != nil {
		return err
	}
	*w = *wf
	return nil
}

// UnmarshalWorkflow unmarshals a workflow from YAML or JSON bytes.
// Legacy files holding a bare step list get the name "loaded_workflow".
func UnmarshalWorkflow(data []byte) (*Workflow, error) {
	return unmarshalNamed(data, "loaded_workflow")
}

func unmarshalNamed(data []byte, fallback string) (*Workflow, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal workflow: %w", cferrors.ErrInvalid, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty workflow document", cferrors.ErrInvalid)
	}
	root := doc.Content[0]

	wf := &Workflow{SchemaVersion: SchemaVersion}
	switch root.Kind {
	case yaml.SequenceNode:
		wf.Name = fallback
		if err := root.Decode(&wf.Steps); err != nil {
			return nil, decodeErr(err)
		}
	case yaml.MappingNode:
		var rec struct {
			SchemaVersion int    `yaml:"schema_version"`
			Name          string `yaml:"name"`
			Created       string `yaml:"created"`
			Steps         []Step `yaml:"workflow"`
		}
		if err := root.Decode(&rec); err != nil {
			return nil, decodeErr(err)
		}
		wf.Name, wf.Created, wf.Steps = rec.Name, rec.Created, rec.Steps
		if rec.SchemaVersion != 0 {
			wf.SchemaVersion = rec.SchemaVersion
		}
		if wf.Name == "" {
			wf.Name = fallback
		}
	default:
		return nil, fmt.Errorf("%w: workflow must be a mapping or a list of steps", cferrors.ErrInvalid)
	}
	wf.StepsCount = len(wf.Steps)

	if wf.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", cferrors.ErrInvalid, wf.SchemaVersion)
	}
	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("%w: workflow validation failed: %w", cferrors.ErrInvalid, err)
	}
	return wf, nil
}

// decodeErr keeps ErrInvalid visible through yaml's error wrapping.
func decodeErr(err error) error {
	if cferrors.IsInvalid(err) {
		return err
	}
	return fmt.Errorf("%w: failed to decode workflow: %w", cferrors.ErrInvalid, err)
}

// MarshalWorkflow marshals a workflow to YAML bytes
func MarshalWorkflow(wf *Workflow) ([]byte, error) {
	data, err := yaml.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow: %w", err)
	}
	return data, nil
}

// MarshalWorkflowJSON marshals a workflow to indented JSON bytes.
func MarshalWorkflowJSON(wf *Workflow) ([]byte, error) {
	return marshalJSON(wf.toRecord())
}

// MarshalDesktopJSON marshals a workflow to the JSON read by the desktop
// recorder, which tags capture steps "screenshot".
func MarshalDesktopJSON(wf *Workflow) ([]byte, error) {
	rec := wf.toRecord()
	for i := range rec.Workflow {
		if rec.Workflow[i].Type == string(KindCapture) {
			rec.Workflow[i].Type = legacyCaptureKind
		}
	}
	return marshalJSON(rec)
}

func marshalJSON(rec record) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow: %w", err)
	}
	return append(data, '\n'), nil
}
