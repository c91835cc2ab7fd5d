package recorder

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
	"github.com/chazuruo/clickflow/internal/screen"
	"github.com/chazuruo/clickflow/internal/selection"
	"github.com/chazuruo/clickflow/internal/templates"
	"github.com/chazuruo/clickflow/internal/workflows"
)

// TemplateSaver stores cropped templates.
type TemplateSaver interface {
	Save(name string, img image.Image) (templates.Descriptor, error)
}

// CaptureAndClick captures the screen, lets the user select one region,
// saves it as workflow_<step>_<unix>.png, and records a capture step
// followed by a click step on the new template.
//
// Any failure leaves the recorder Recording with no steps added.
func (r *Recorder) CaptureAndClick(ctx context.Context, probe screen.Probe, sel selection.Capturer, saver TemplateSaver, confidence float64) ([]workflows.Step, error) {
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return nil, cferrors.Invalidf("confidence must be within [0, 1]; got %v", confidence)
	}
	if r.State() != Recording {
		return nil, cferrors.ErrNotRecording
	}

	frame, err := probe.Capture(ctx)
	if err != nil {
		return nil, &cferrors.MatchError{Op: "capture", Err: err}
	}

	rects, err := sel.Select(ctx, frame, 1)
	if err != nil {
		return nil, err
	}
	if len(rects) == 0 {
		return nil, fmt.Errorf("%w: no region selected", cferrors.ErrCanceled)
	}
	rect := rects[0]

	name := fmt.Sprintf("workflow_%d_%d.png", r.Step(), r.now().Unix())
	if _, err := saver.Save(name, templates.Crop(frame, rect)); err != nil {
		return nil, err
	}

	return r.add(
		func(i int, at time.Time) workflows.Step { return workflows.NewCaptureStep(i, at, name, rect) },
		func(i int, at time.Time) workflows.Step { return workflows.NewClickStep(i, at, name, confidence) },
	)
}
