// Package tui provides tests for Bubble Tea models.
package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chazuruo/clickflow/internal/locator"
	"github.com/chazuruo/clickflow/internal/logging"
	"github.com/chazuruo/clickflow/internal/runner"
	"github.com/chazuruo/clickflow/internal/workflows"
	"github.com/chazuruo/clickflow/internal/workflows/store"
)

type fixedLocator struct {
	clicked bool
	block   bool
}

func (f fixedLocator) LocateAndClick(ctx context.Context, name string, confidence float64, timeout time.Duration) (locator.Result, error) {
	if f.block {
		<-ctx.Done()
		return locator.Result{}, ctx.Err()
	}
	return locator.Result{Clicked: f.clicked, Score: 0.9, Attempts: 1}, nil
}

func testWorkflow() *workflows.Workflow {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &workflows.Workflow{
		SchemaVersion: workflows.SchemaVersion,
		Name:          "login",
		Steps: []workflows.Step{
			workflows.NewClickStep(0, at, "user.png", 0.8),
			workflows.NewWaitStep(1, at, 0.001),
			workflows.NewClickStep(2, at, "submit.png", 0.8),
		},
	}
}

// drive feeds the model task messages until it quits.
func drive(t *testing.T, m RunnerModel) RunnerModel {
	t.Helper()
	cmd := waitForEvent(m.Task)
	for i := 0; i < 100; i++ {
		msg := cmd()
		next, c := m.Update(msg)
		m = next.(RunnerModel)
		if _, done := msg.(RunFinishedMsg); done {
			return m
		}
		cmd = c
	}
	t.Fatal("run did not finish")
	return m
}

func TestRunnerModel_FollowsTask(t *testing.T) {
	wf := testWorkflow()
	r := runner.NewRunner(fixedLocator{clicked: true}, runner.WithLogger(logging.Discard()))
	task, err := r.Start(context.Background(), wf, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m := drive(t, NewRunnerModel(wf, task))

	if !m.Finished {
		t.Fatal("expected model to be finished")
	}
	if !m.DidSucceed() {
		t.Errorf("expected success, got %+v", m.Result)
	}
	want := []runner.Status{runner.StatusClicked, runner.StatusWaited, runner.StatusClicked}
	for i, s := range want {
		if m.Statuses[i] != s {
			t.Errorf("step %d status = %s, want %s", i, m.Statuses[i], s)
		}
	}
	if len(m.log) != 3 {
		t.Errorf("expected 3 log lines, got %d", len(m.log))
	}
	view := m.View()
	if !strings.Contains(view, "completed successfully") || !strings.Contains(view, "2 clicked, 0 failed") {
		t.Errorf("unexpected finished view:\n%s", view)
	}
}

func TestRunnerModel_ReportsMisses(t *testing.T) {
	wf := testWorkflow()
	r := runner.NewRunner(fixedLocator{clicked: false}, runner.WithLogger(logging.Discard()))
	task, err := r.Start(context.Background(), wf, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m := drive(t, NewRunnerModel(wf, task))
	if m.DidSucceed() {
		t.Error("expected run with missed clicks to not succeed")
	}
	if m.Statuses[0] != runner.StatusMissed {
		t.Errorf("expected missed, got %s", m.Statuses[0])
	}
	if !strings.Contains(m.View(), "failed steps") {
		t.Errorf("unexpected view:\n%s", m.View())
	}
}

func TestRunnerModel_Cancel(t *testing.T) {
	wf := testWorkflow()
	r := runner.NewRunner(fixedLocator{block: true}, runner.WithLogger(logging.Discard()))
	task, err := r.Start(context.Background(), wf, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m := NewRunnerModel(wf, task)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = next.(RunnerModel)
	if cmd != nil {
		t.Error("expected no quit before the task stops")
	}
	if !m.Canceling {
		t.Error("expected Canceling to be set")
	}
	if !strings.Contains(m.View(), "Waiting for the current step") {
		t.Errorf("unexpected view:\n%s", m.View())
	}

	m = drive(t, m)
	if !m.DidCancel() {
		t.Errorf("expected canceled result, got %+v", m.Result)
	}
	if !strings.Contains(m.View(), "Workflow canceled") {
		t.Errorf("unexpected view:\n%s", m.View())
	}
}

func TestWorkflowSearch(t *testing.T) {
	refs := []store.WorkflowRef{
		{Name: "login", Slug: "login", Steps: 3},
		{Name: "logout", Slug: "logout", Steps: 1},
		{Name: "daily report", Slug: "daily_report", Steps: 7},
	}

	m := NewWorkflowSearch(refs, "")
	if len(m.results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(m.results))
	}

	type step struct {
		msg  tea.KeyMsg
		want int
	}
	for _, s := range []step{
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("log")}, 2},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("o")}, 1},
		{tea.KeyMsg{Type: tea.KeyBackspace}, 2},
	} {
		next, _ := m.Update(s.msg)
		m = next.(WorkflowSearchModel)
		if len(m.results) != s.want {
			t.Errorf("query %q: expected %d results, got %d", m.Query(), s.want, len(m.results))
		}
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(WorkflowSearchModel)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(WorkflowSearchModel)
	if cmd == nil || !m.DidConfirm() {
		t.Fatal("expected enter to confirm and quit")
	}
	if got := m.GetSelected(); got == nil || got.Name != "logout" {
		t.Errorf("expected logout to be selected, got %+v", got)
	}
}

func TestWorkflowSearch_Quit(t *testing.T) {
	m := NewWorkflowSearch(nil, "")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(WorkflowSearchModel)
	if m.DidConfirm() {
		t.Error("expected no confirmation without results")
	}
	if m.GetSelected() != nil {
		t.Error("expected no selection")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(WorkflowSearchModel)
	if !m.DidQuit() {
		t.Error("expected quit")
	}
	if !strings.Contains(m.View(), "No workflows found.") {
		t.Errorf("unexpected view:\n%s", m.View())
	}
}
