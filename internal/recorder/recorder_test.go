package recorder

import (
	"context"
	"errors"
	"image"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
	"github.com/chazuruo/clickflow/internal/logging"
	"github.com/chazuruo/clickflow/internal/selection"
	"github.com/chazuruo/clickflow/internal/templates"
	"github.com/chazuruo/clickflow/internal/testutil"
	"github.com/chazuruo/clickflow/internal/workflows"
	"github.com/chazuruo/clickflow/internal/workflows/store"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newRecorder(t *testing.T) (*Recorder, *store.FileSystemStore) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "workflows"), "yaml", logging.Discard())
	require.NoError(t, err)
	return New(s, WithClock(clock), WithLogger(logging.Discard())), s
}

type flakySaver struct {
	err   error
	calls int
}

func (f *flakySaver) Save(_ context.Context, wf *workflows.Workflow, _ store.SaveOptions) (store.WorkflowRef, error) {
	f.calls++
	if f.err != nil {
		return store.WorkflowRef{}, f.err
	}
	return store.WorkflowRef{Name: wf.Name, Path: "/tmp/" + wf.Name + ".yaml", Steps: len(wf.Steps)}, nil
}

func TestRecorder_LoginScenario(t *testing.T) {
	ctx := context.Background()
	r, s := newRecorder(t)

	require.NoError(t, r.Start("login"))
	assert.Equal(t, Recording, r.State())

	_, err := r.AddClick("submit.png", 0.85)
	require.NoError(t, err)
	_, err = r.AddWait(2.0)
	require.NoError(t, err)

	ref, err := r.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, Idle, r.State())
	assert.Equal(t, "login", ref.Name)

	wf, _, err := s.LoadByName(ctx, "login")
	require.NoError(t, err)
	require.Len(t, wf.Steps, 2)

	assert.Equal(t, 0, wf.Steps[0].Index)
	assert.Equal(t, workflows.KindClick, wf.Steps[0].Kind)
	assert.Equal(t, &workflows.ClickData{Image: "submit.png", Confidence: 0.85}, wf.Steps[0].Click)

	assert.Equal(t, 1, wf.Steps[1].Index)
	assert.Equal(t, workflows.KindWait, wf.Steps[1].Kind)
	assert.Equal(t, 2.0, wf.Steps[1].Wait.Duration)

	assert.Equal(t, workflows.FormatTimestamp(fixedNow), wf.Steps[0].Timestamp)
}

func TestRecorder_AddWhileIdle(t *testing.T) {
	r, _ := newRecorder(t)

	_, err := r.AddClick("a.png", 0.8)
	assert.True(t, cferrors.IsNotRecording(err))
	_, err = r.AddWait(1)
	assert.True(t, cferrors.IsNotRecording(err))
	_, err = r.AddCapture("a.png", image.Rect(0, 0, 10, 10))
	assert.True(t, cferrors.IsNotRecording(err))
	assert.Nil(t, r.Workflow())

	// idle again after a recording
	require.NoError(t, r.Start("x"))
	_, err = r.AddWait(1)
	require.NoError(t, err)
	_, err = r.Stop(context.Background())
	require.NoError(t, err)

	_, err = r.AddWait(1)
	assert.True(t, cferrors.IsNotRecording(err))
	assert.Len(t, r.Workflow().Steps, 1)
	assert.Equal(t, 1, r.Step())
}

func TestRecorder_StopEmpty(t *testing.T) {
	ctx := context.Background()
	r, s := newRecorder(t)

	require.NoError(t, r.Start(""))
	ref, err := r.Stop(ctx)
	require.NoError(t, err)
	assert.True(t, ref.IsZero())

	refs, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestRecorder_DefaultName(t *testing.T) {
	r, _ := newRecorder(t)
	require.NoError(t, r.Start(""))
	assert.Equal(t, "workflow_20250102_030405", r.Workflow().Name)
}

func TestRecorder_StateErrors(t *testing.T) {
	r, _ := newRecorder(t)

	_, err := r.Stop(context.Background())
	assert.True(t, cferrors.IsNotRecording(err))

	require.NoError(t, r.Start("a"))
	assert.True(t, cferrors.IsBusy(r.Start("b")))
	assert.Equal(t, "a", r.Workflow().Name)
}

func TestRecorder_StartResets(t *testing.T) {
	r, _ := newRecorder(t)
	require.NoError(t, r.Start("a"))
	_, err := r.AddWait(1)
	require.NoError(t, err)
	_, err = r.Stop(context.Background())
	require.NoError(t, err)

	require.NoError(t, r.Start("b"))
	assert.Equal(t, 0, r.Step())
	assert.Empty(t, r.Workflow().Steps)
}

func TestRecorder_InvalidStep(t *testing.T) {
	r, _ := newRecorder(t)
	require.NoError(t, r.Start("a"))

	_, err := r.AddClick("a.png", 1.5)
	assert.True(t, cferrors.IsInvalid(err))
	_, err = r.AddWait(-1)
	assert.True(t, cferrors.IsInvalid(err))
	_, err = r.AddClick("a.png", math.NaN())
	assert.True(t, cferrors.IsInvalid(err))
	_, err = r.AddWait(math.Inf(1))
	assert.True(t, cferrors.IsInvalid(err))
	_, err = r.AddWait(1e10)
	assert.True(t, cferrors.IsInvalid(err))
	assert.Equal(t, 0, r.Step())
	assert.Empty(t, r.Workflow().Steps)
}

func TestRecorder_SaveFailureKeepsWorkflow(t *testing.T) {
	ctx := context.Background()
	saver := &flakySaver{err: errors.New("disk full")}
	r := New(saver, WithClock(clock), WithLogger(logging.Discard()))

	require.NoError(t, r.Start("a"))
	_, err := r.AddWait(1)
	require.NoError(t, err)

	_, err = r.Stop(ctx)
	require.Error(t, err)
	assert.Equal(t, Idle, r.State())
	assert.Len(t, r.Workflow().Steps, 1)

	saver.err = nil
	ref, err := r.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", ref.Name)
	assert.Equal(t, 2, saver.calls)
}

func TestRecorder_Load(t *testing.T) {
	r, _ := newRecorder(t)
	wf := &workflows.Workflow{Name: "loaded", Steps: []workflows.Step{
		workflows.NewWaitStep(0, fixedNow, 1),
		workflows.NewWaitStep(4, fixedNow, 1),
	}}

	require.NoError(t, r.Load(wf))
	assert.Equal(t, "loaded", r.Workflow().Name)
	assert.Equal(t, 5, r.Step())

	// the recorder keeps its own copy
	wf.Steps[0].Wait.Duration = 9
	assert.Equal(t, 1.0, r.Workflow().Steps[0].Wait.Duration)

	require.NoError(t, r.Start("rec"))
	assert.True(t, cferrors.IsBusy(r.Load(wf)))
}

func TestRecorder_CaptureAndClick(t *testing.T) {
	r, _ := newRecorder(t)
	tmpl := templates.New(t.TempDir())
	probe := &testutil.Probe{Frame: testutil.PatternImage(200, 100, 3)}
	sel, err := selection.NewFixed(10, "10,10,60,40")
	require.NoError(t, err)

	require.NoError(t, r.Start("cap"))
	_, err = r.AddWait(0.5)
	require.NoError(t, err)

	steps, err := r.CaptureAndClick(context.Background(), probe, sel, tmpl, 0.9)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	name := "workflow_1_1735787045.png"
	assert.Equal(t, workflows.KindCapture, steps[0].Kind)
	assert.Equal(t, name, steps[0].Capture.Filename)
	assert.Equal(t, workflows.Rect{X1: 10, Y1: 10, X2: 60, Y2: 40}, steps[0].Capture.Coords)
	assert.Equal(t, 1, steps[0].Index)

	assert.Equal(t, workflows.KindClick, steps[1].Kind)
	assert.Equal(t, name, steps[1].Click.Image)
	assert.Equal(t, 0.9, steps[1].Click.Confidence)
	assert.Equal(t, 2, steps[1].Index)

	img, err := tmpl.Load(name)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 50, 30), img.Bounds())
	assert.Equal(t, 3, r.Step())
}

func TestRecorder_CaptureAndClickFailures(t *testing.T) {
	ctx := context.Background()
	tmpl := templates.New(t.TempDir())
	sel, err := selection.NewFixed(10, "10,10,60,40")
	require.NoError(t, err)

	t.Run("idle", func(t *testing.T) {
		r, _ := newRecorder(t)
		_, err := r.CaptureAndClick(ctx, &testutil.Probe{}, sel, tmpl, 0.8)
		assert.True(t, cferrors.IsNotRecording(err))
	})

	t.Run("capture error", func(t *testing.T) {
		r, _ := newRecorder(t)
		require.NoError(t, r.Start("x"))
		_, err := r.CaptureAndClick(ctx, &testutil.Probe{Err: errors.New("no display")}, sel, tmpl, 0.8)
		assert.True(t, cferrors.IsMatch(err))
		assert.Equal(t, Recording, r.State())
		assert.Empty(t, r.Workflow().Steps)
	})

	t.Run("selection canceled", func(t *testing.T) {
		r, _ := newRecorder(t)
		require.NoError(t, r.Start("x"))
		_, err := r.CaptureAndClick(ctx, &testutil.Probe{}, &selection.Fixed{}, tmpl, 0.8)
		assert.True(t, cferrors.IsCanceled(err))
		assert.Equal(t, Recording, r.State())
		assert.Empty(t, r.Workflow().Steps)
	})

	t.Run("bad confidence", func(t *testing.T) {
		r, _ := newRecorder(t)
		require.NoError(t, r.Start("x"))
		_, err := r.CaptureAndClick(ctx, &testutil.Probe{}, sel, tmpl, 3)
		assert.True(t, cferrors.IsInvalid(err))
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "recording", Recording.String())
}
