// Package tui provides Bubble Tea models for clickflow.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chazuruo/clickflow/internal/runner"
	"github.com/chazuruo/clickflow/internal/workflows"
)

// RunnerModel is a Bubble Tea model that follows a background workflow run.
type RunnerModel struct {
	// Workflow is the workflow being run.
	Workflow *workflows.Workflow

	// Task is the background run.
	Task *runner.Task

	// Statuses holds the latest status per step position.
	Statuses []runner.Status

	// CurrentStep is the position of the step being executed.
	CurrentStep int

	// Result is set once the run has finished.
	Result runner.RunResult

	// Finished indicates if the run is complete.
	Finished bool

	// Canceling is set after the user asked to stop.
	Canceling bool

	Spinner  spinner.Model
	Viewport viewport.Model
	log      []string

	// styles
	normalStyle  lipgloss.Style
	successStyle lipgloss.Style
	errorStyle   lipgloss.Style
	runningStyle lipgloss.Style
	pendingStyle lipgloss.Style

	// width and height
	width  int
	height int
}

// StepEventMsg carries a runner event.
type StepEventMsg runner.Event

// RunFinishedMsg is sent when the task is done.
type RunFinishedMsg struct {
	Result runner.RunResult
}

// NewRunnerModel creates a new runner model for task running wf.
func NewRunnerModel(wf *workflows.Workflow, task *runner.Task) RunnerModel {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return RunnerModel{
		Workflow:     wf,
		Task:         task,
		Statuses:     make([]runner.Status, len(wf.Steps)),
		CurrentStep:  -1,
		Spinner:      sp,
		Viewport:     viewport.New(60, 15),
		normalStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		successStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("green")),
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("red")),
		runningStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")),
		pendingStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}
}

// Init implements tea.Model.
func (m RunnerModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, waitForEvent(m.Task))
}

// waitForEvent reads the next task event, or the final result once the
// event channel is closed.
func waitForEvent(task *runner.Task) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-task.Events()
		if !ok {
			return RunFinishedMsg{Result: task.Wait()}
		}
		return StepEventMsg(e)
	}
}

// Update implements tea.Model.
func (m RunnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.Finished {
				return m, tea.Quit
			}
			if !m.Canceling {
				m.Canceling = true
				m.appendLog("Canceling...")
				m.Task.Cancel()
			}
			return m, nil
		case "enter":
			if m.Finished {
				return m, tea.Quit
			}
		}

	case StepEventMsg:
		if msg.Position >= 0 && msg.Position < len(m.Statuses) {
			m.Statuses[msg.Position] = msg.Status
			m.CurrentStep = msg.Position
			if msg.Status != runner.StatusRunning {
				line := fmt.Sprintf("%s: %s", m.Workflow.Steps[msg.Position].Describe(), msg.Status)
				if msg.Err != nil && msg.Status != runner.StatusCanceled {
					line += " (" + msg.Err.Error() + ")"
				}
				m.appendLog(line)
			}
		}
		return m, waitForEvent(m.Task)

	case RunFinishedMsg:
		m.Finished = true
		m.Result = msg.Result
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.Viewport.Width = max(msg.Width-40, 20) // leave room for step list
		m.Viewport.Height = max(msg.Height-8, 5)
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

func (m *RunnerModel) appendLog(line string) {
	m.log = append(m.log, line)
	m.Viewport.SetContent(strings.Join(m.log, "\n"))
	m.Viewport.GotoBottom()
}

// View implements tea.Model.
func (m RunnerModel) View() string {
	if m.Finished {
		return m.finishedView()
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.stepListView(), m.outputView())
}

// stepListView renders the step list.
func (m RunnerModel) stepListView() string {
	var b strings.Builder

	b.WriteString(" " + m.Workflow.Name + "\n\n")
	for i, step := range m.Workflow.Steps {
		icon, style := m.statusIcon(i)
		b.WriteString(style.Render(fmt.Sprintf("%s %s", icon, step.Describe())))
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(36).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(b.String())
}

func (m RunnerModel) statusIcon(i int) (string, lipgloss.Style) {
	switch m.Statuses[i] {
	case runner.StatusRunning:
		return m.Spinner.View(), m.runningStyle
	case runner.StatusClicked, runner.StatusWaited:
		return "✓", m.successStyle
	case runner.StatusSkipped:
		return "-", m.normalStyle
	case runner.StatusMissed, runner.StatusFailed:
		return "✗", m.errorStyle
	case runner.StatusCanceled:
		return "■", m.errorStyle
	default:
		return " ", m.pendingStyle
	}
}

// outputView renders the log viewport and help.
func (m RunnerModel) outputView() string {
	var b strings.Builder

	b.WriteString(" Log\n\n")
	b.WriteString(m.Viewport.View())
	b.WriteString("\n\n")
	help := "[q] Cancel run"
	if m.Canceling {
		help = "Waiting for the current step to stop..."
	}
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(help))

	width := max(m.width-40, 40)
	return lipgloss.NewStyle().
		Width(width).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(b.String())
}

// finishedView renders the finished state.
func (m RunnerModel) finishedView() string {
	var b strings.Builder

	res := m.Result
	switch {
	case res.Canceled:
		b.WriteString("\n Workflow canceled: " + res.Reason + "\n\n")
	case res.Success:
		b.WriteString("\n ✓ Workflow completed successfully!\n\n")
	default:
		b.WriteString("\n ✗ Workflow finished with failed steps.\n\n")
	}

	for i, step := range m.Workflow.Steps {
		icon, style := m.statusIcon(i)
		b.WriteString("   " + style.Render(icon+" "+step.Describe()) + "\n")
	}
	fmt.Fprintf(&b, "\n %d clicked, %d failed, %d skipped in %s\n",
		res.Clicked, res.Failed, res.Skipped, res.Duration.Round(time.Millisecond))
	return b.String()
}

// DidSucceed returns true if the workflow succeeded.
func (m RunnerModel) DidSucceed() bool {
	return m.Finished && m.Result.Success
}

// DidCancel returns true if the run was canceled.
func (m RunnerModel) DidCancel() bool {
	return m.Result.Canceled
}

// RunTask shows the run view until task finishes and returns its result.
func RunTask(wf *workflows.Workflow, task *runner.Task, opts ...tea.ProgramOption) (runner.RunResult, error) {
	final, err := tea.NewProgram(NewRunnerModel(wf, task), opts...).Run()
	if err != nil {
		task.Cancel()
		return task.Wait(), fmt.Errorf("failed to run TUI: %w", err)
	}
	if m, ok := final.(RunnerModel); ok && m.Finished {
		return m.Result, nil
	}
	return task.Wait(), nil
}
