package workflows

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"time"
)

// SchemaVersion is the current workflow schema version
const SchemaVersion = 1

// Kind tags a workflow step.
type Kind string

// Step kinds.
const (
	KindCapture Kind = "capture"
	KindClick   Kind = "click"
	KindWait    Kind = "wait"
)

// legacyCaptureKind is the tag older recordings use for capture steps.
const legacyCaptureKind = "screenshot"

// TimestampLayout is used for new step and workflow timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Workflow is a named, ordered sequence of recorded steps.
type Workflow struct {
	SchemaVersion int
	Name          string
	// Created is the creation time exactly as recorded.
	Created    string
	StepsCount int
	Steps      []Step
}

// Rect is a rectangle in screen coordinates.
type Rect struct {
	X1, Y1, X2, Y2 int
}

// RectFrom converts an image rectangle.
func RectFrom(r image.Rectangle) Rect {
	r = r.Canon()
	return Rect{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Image returns r as an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// CaptureData is the payload of a capture step.
type CaptureData struct {
	Filename string
	Coords   Rect
}

// ClickData is the payload of a click step.
type ClickData struct {
	Image      string
	Confidence float64
}

// WaitData is the payload of a wait step.
type WaitData struct {
	// Duration is in seconds.
	Duration float64
}

// MaxWaitSeconds is the longest wait representable as a time.Duration.
const MaxWaitSeconds = float64(math.MaxInt64) / float64(time.Second)

// Interval returns the wait as a time.Duration.
func (w WaitData) Interval() time.Duration {
	return time.Duration(w.Duration * float64(time.Second))
}

// Step is one recorded action. Exactly one payload matching Kind is set.
type Step struct {
	Index int
	Kind  Kind
	// Timestamp is the creation time exactly as recorded; it is never
	// re-stamped on save.
	Timestamp string

	Capture *CaptureData
	Click   *ClickData
	Wait    *WaitData
}

// NewCaptureStep returns a capture step.
func NewCaptureStep(index int, at time.Time, filename string, r image.Rectangle) Step {
	return Step{Index: index, Kind: KindCapture, Timestamp: FormatTimestamp(at),
		Capture: &CaptureData{Filename: filename, Coords: RectFrom(r)}}
}

// NewClickStep returns a click step.
func NewClickStep(index int, at time.Time, image string, confidence float64) Step {
	return Step{Index: index, Kind: KindClick, Timestamp: FormatTimestamp(at),
		Click: &ClickData{Image: image, Confidence: confidence}}
}

// NewWaitStep returns a wait step of seconds.
func NewWaitStep(index int, at time.Time, seconds float64) Step {
	return Step{Index: index, Kind: KindWait, Timestamp: FormatTimestamp(at),
		Wait: &WaitData{Duration: seconds}}
}

// FormatTimestamp formats t with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp accepts RFC 3339 and naive ISO 8601 timestamps.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.Local)
}

// DefaultName returns the name given to unnamed recordings.
func DefaultName(t time.Time) string {
	return "workflow_" + t.Format("20060102_150405")
}

// Validate validates the workflow structure and content
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return errors.New("workflow name is required")
	}

	if len(w.Steps) == 0 {
		return errors.New("workflow must have at least one step")
	}

	for i, step := range w.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if i > 0 && step.Index <= w.Steps[i-1].Index {
			return fmt.Errorf("step %d: index %d is not after %d", i, step.Index, w.Steps[i-1].Index)
		}
	}

	return nil
}

// Validate checks that the payload matches the kind.
func (s *Step) Validate() error {
	if s.Index < 0 {
		return fmt.Errorf("negative step index %d", s.Index)
	}
	set := 0
	for _, p := range []bool{s.Capture != nil, s.Click != nil, s.Wait != nil} {
		if p {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("step must carry exactly one payload; has %d", set)
	}

	switch s.Kind {
	case KindCapture:
		if s.Capture == nil {
			return errors.New("capture step without capture data")
		}
		if s.Capture.Filename == "" {
			return errors.New("capture filename is required")
		}
	case KindClick:
		if s.Click == nil {
			return errors.New("click step without click data")
		}
		if s.Click.Image == "" {
			return errors.New("click image is required")
		}
		if c := s.Click.Confidence; math.IsNaN(c) || c < 0 || c > 1 {
			return fmt.Errorf("click confidence must be within [0, 1]; got %v", s.Click.Confidence)
		}
	case KindWait:
		if s.Wait == nil {
			return errors.New("wait step without wait data")
		}
		if d := s.Wait.Duration; math.IsNaN(d) || d < 0 || d >= MaxWaitSeconds {
			return fmt.Errorf("wait duration must be within [0, %.0f) seconds; got %v", MaxWaitSeconds, d)
		}
	default:
		return fmt.Errorf("unknown step type %q", s.Kind)
	}
	return nil
}

// Describe returns a one-line summary of the step.
func (s Step) Describe() string {
	switch s.Kind {
	case KindCapture:
		r := s.Capture.Coords
		return fmt.Sprintf("capture %s (%d,%d)-(%d,%d)", s.Capture.Filename, r.X1, r.Y1, r.X2, r.Y2)
	case KindClick:
		return fmt.Sprintf("click %s @ %s", s.Click.Image, strconv.FormatFloat(s.Click.Confidence, 'f', -1, 64))
	case KindWait:
		return fmt.Sprintf("wait %ss", strconv.FormatFloat(s.Wait.Duration, 'f', -1, 64))
	default:
		return string(s.Kind)
	}
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	out := *w
	out.Steps = make([]Step, len(w.Steps))
	for i, s := range w.Steps {
		if s.Capture != nil {
			c := *s.Capture
			s.Capture = &c
		}
		if s.Click != nil {
			c := *s.Click
			s.Click = &c
		}
		if s.Wait != nil {
			c := *s.Wait
			s.Wait = &c
		}
		out.Steps[i] = s
	}
	return &out
}
