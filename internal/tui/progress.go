package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/lexcodex/codebase/framework"
	"github.com/lexcodex/codebase/framework/inspect"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelStyle = lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("245"))
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	hintStyle  = lipgloss.NewStyle().Faint(true)
)

type startMsg struct{ runID string }

type stageMsg struct {
	stage inspect.Stage
	state inspect.State
}

type completeMsg struct{ result inspect.Result }

// Model renders a run as two progress bars: files counted and projects
// finished.
type Model struct {
	files    progress.Model
	projects progress.Model
	spinner  spinner.Model

	// Once set, the program quits after the first completed run.
	quitOnComplete bool

	runID   string
	running bool
	stages  map[inspect.Stage]inspect.State
	last    *inspect.Result
	runs    int
}

// New builds a model. With quitOnComplete the program exits after one run.
func New(quitOnComplete bool) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	return Model{
		files:          progress.New(progress.WithDefaultGradient()),
		projects:       progress.New(progress.WithDefaultGradient()),
		spinner:        spin,
		quitOnComplete: quitOnComplete,
		stages:         make(map[inspect.Stage]inspect.State),
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		width := msg.Width - 14
		if width > 60 {
			width = 60
		}
		if width < 10 {
			width = 10
		}
		m.files.Width = width
		m.projects.Width = width
	case startMsg:
		m.runID = msg.runID
		m.running = true
		m.stages = make(map[inspect.Stage]inspect.State)
	case stageMsg:
		m.stages[msg.stage] = msg.state
	case completeMsg:
		m.running = false
		m.runs++
		res := msg.result
		m.last = &res
		if m.quitOnComplete {
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("codebase"))
	b.WriteString("\n\n")
	if m.running {
		found := m.stages[inspect.StageFetchingFiles]
		if _, counting := m.stages[inspect.StageFetchingLines]; counting {
			b.WriteString(fmt.Sprintf("%s counting lines in %s files\n", m.spinner.View(), humanize.Comma(int64(found.All))))
		} else {
			b.WriteString(fmt.Sprintf("%s discovering files (%s so far)\n", m.spinner.View(), humanize.Comma(int64(found.All))))
		}
		b.WriteString(m.bar("files", m.files, m.stages[inspect.StageProgress]))
		b.WriteString(m.bar("projects", m.projects, m.stages[inspect.StageProgress2]))
	} else if m.last == nil {
		b.WriteString("waiting for the next scan\n")
	}
	if m.last != nil {
		b.WriteString(doneStyle.Render(Describe(*m.last)))
		b.WriteString("\n")
		if errs := framework.Summarize(m.last.Projects).All.Errors; len(errs) > 0 {
			b.WriteString(errStyle.Render(fmt.Sprintf("%d file errors, see `codebase project show`", len(errs))))
			b.WriteString("\n")
		}
	}
	b.WriteString(hintStyle.Render("q to quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) bar(label string, bar progress.Model, state inspect.State) string {
	pct := 0.0
	if state.All > 0 {
		pct = float64(state.Used) / float64(state.All)
	}
	return fmt.Sprintf("%s%s %d/%d\n", labelStyle.Render(label), bar.ViewAs(pct), state.Used, state.All)
}

// Describe returns a one-line account of a finished run.
func Describe(res inspect.Result) string {
	total := framework.Summarize(res.Projects).All
	return fmt.Sprintf("scanned %d projects: %s lines, %s files, %s in %s",
		len(res.Projects),
		humanize.Comma(total.Volume.Lines),
		humanize.Comma(total.Volume.Files),
		humanize.Bytes(uint64(total.Volume.Bytes)),
		res.Duration().Round(time.Millisecond))
}

// Sink forwards run notifications to a running program.
type Sink struct {
	Program *tea.Program
}

func (s Sink) OnStart(runID string) { s.Program.Send(startMsg{runID: runID}) }

func (s Sink) OnUpdate(stage inspect.Stage, state inspect.State) {
	s.Program.Send(stageMsg{stage: stage, state: state})
}

func (s Sink) OnComplete(res inspect.Result) { s.Program.Send(completeMsg{result: res}) }
