package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/codebase/framework"
	"github.com/lexcodex/codebase/framework/inspect"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestModelTracksRun(t *testing.T) {
	m := New(false)
	require.Contains(t, m.View(), "waiting for the next scan")

	m, _ = update(t, m, startMsg{runID: "r1"})
	m, _ = update(t, m, stageMsg{stage: inspect.StageFetchingFiles, state: inspect.State{All: 40, Used: 40}})
	require.Contains(t, m.View(), "discovering files (40 so far)")

	m, _ = update(t, m, stageMsg{stage: inspect.StageFetchingLines, state: inspect.State{All: 40, Used: 40}})
	m, _ = update(t, m, stageMsg{stage: inspect.StageProgress, state: inspect.State{All: 40, Used: 20}})
	m, _ = update(t, m, stageMsg{stage: inspect.StageProgress2, state: inspect.State{All: 2, Used: 1}})
	view := m.View()
	require.Contains(t, view, "counting lines in 40 files")
	require.Contains(t, view, "20/40")
	require.Contains(t, view, "1/2")

	p := framework.NewProject("api", "/src/api", true)
	p.Info.Volume = framework.CodeVolume{Lines: 12000, Bytes: 2048, Files: 3}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res := inspect.Result{RunID: "r1", StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond), Projects: []framework.Project{p}}
	m, cmd := update(t, m, completeMsg{result: res})
	require.Nil(t, cmd)
	require.False(t, m.running)
	require.Contains(t, m.View(), "scanned 1 projects: 12,000 lines, 3 files")
}

func TestModelQuitsOnComplete(t *testing.T) {
	m := New(true)
	m, _ = update(t, m, startMsg{runID: "r1"})
	_, cmd := update(t, m, completeMsg{})
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModelQuitKey(t *testing.T) {
	_, cmd := update(t, New(false), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestDescribe(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got := Describe(inspect.Result{StartedAt: start, FinishedAt: start.Add(time.Second)})
	require.Equal(t, "scanned 0 projects: 0 lines, 0 files, 0 B in 1s", got)
}
