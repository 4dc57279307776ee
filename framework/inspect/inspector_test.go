package inspect

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/codebase/framework"
	"github.com/lexcodex/codebase/framework/scan"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingSink struct {
	starts    []string
	events    []Event
	completes []Result
}

func (r *recordingSink) OnStart(runID string) { r.starts = append(r.starts, runID) }
func (r *recordingSink) OnUpdate(stage Stage, state State) {
	r.events = append(r.events, Event{Kind: EventStage, Stage: stage, State: state})
}
func (r *recordingSink) OnComplete(res Result) { r.completes = append(r.completes, res) }

type recordingTelemetry struct {
	mu     sync.Mutex
	events []framework.Event
}

func (r *recordingTelemetry) Emit(e framework.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingTelemetry) types() []framework.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []framework.EventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func makeProject(t *testing.T, title string, files map[string]int) framework.Project {
	t.Helper()
	root := t.TempDir()
	for rel, n := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(strings.Repeat("line\n", n)), 0o644))
	}
	return framework.NewProject(title, root, false)
}

func newInspector(opts Options) *Inspector {
	return New(scan.New(framework.ScanRules{}), opts)
}

func TestInspectorScansProjects(t *testing.T) {
	alpha := makeProject(t, "alpha", map[string]int{"main.go": 10, "util.go": 5})
	beta := makeProject(t, "beta", map[string]int{"app.py": 7})
	ghost := framework.NewProject("ghost", filepath.Join(t.TempDir(), "missing"), true)
	input := []framework.Project{alpha, beta, ghost}

	tel := &recordingTelemetry{}
	c := newClock()
	insp := newInspector(Options{Workers: 2, Telemetry: tel, Now: c.Now})

	run, err := insp.Start(context.Background(), input)
	require.NoError(t, err)
	sink := &recordingSink{}
	res := run.Drain(sink)

	require.Equal(t, run.ID(), res.RunID)
	require.Len(t, res.Projects, 3)
	require.Equal(t, "alpha", res.Projects[0].Title)
	require.Equal(t, "beta", res.Projects[1].Title)
	require.Equal(t, "ghost", res.Projects[2].Title)

	require.Equal(t, int64(15), res.Projects[0].Info.Volume.Lines)
	require.Equal(t, int64(15), res.Projects[0].Info.ExtensionsVolume[".go"].Lines)
	require.Equal(t, int64(7), res.Projects[1].Info.Volume.Lines)
	require.Len(t, res.Projects[2].Info.Errors, 1)
	require.True(t, res.Projects[2].Info.Volume.IsZero())
	for _, p := range res.Projects {
		require.False(t, p.LastEdit.IsZero(), p.Title)
		require.True(t, p.LastEdit.After(res.StartedAt), p.Title)
		require.False(t, p.LastEdit.After(res.FinishedAt), p.Title)
	}

	// The caller's slice is untouched.
	require.True(t, input[0].LastEdit.IsZero())
	require.True(t, input[0].Info.Volume.IsZero())

	require.Equal(t, []string{run.ID()}, sink.starts)
	require.Len(t, sink.completes, 1)
	require.False(t, insp.Running())

	types := tel.types()
	require.Equal(t, framework.EventRunStart, types[0])
	require.Equal(t, framework.EventRunFinish, types[len(types)-1])
	require.Contains(t, types, framework.EventProjectMissing)
}

func TestInspectorStagesAreMonotonic(t *testing.T) {
	files := map[string]int{}
	for i := 0; i < 23; i++ {
		files[filepath.Join("pkg", string(rune('a'+i))+".go")] = i + 1
	}
	projects := []framework.Project{
		makeProject(t, "one", files),
		makeProject(t, "two", map[string]int{"x.go": 1, "y.go": 2}),
	}
	insp := newInspector(Options{Workers: 2, ProgressStep: 4})

	run, err := insp.Start(context.Background(), projects)
	require.NoError(t, err)

	var events []Event
	for ev := range run.Events() {
		events = append(events, ev)
	}
	<-run.Done()

	require.NotEmpty(t, events)
	require.Equal(t, EventStart, events[0].Kind)

	last := map[Stage]State{}
	for _, ev := range events[1:] {
		require.Equal(t, EventStage, ev.Kind)
		require.LessOrEqual(t, ev.State.Used, ev.State.All, ev.Stage.String())
		if prev, ok := last[ev.Stage]; ok {
			require.GreaterOrEqual(t, ev.State.Used, prev.Used, ev.Stage.String())
		}
		last[ev.Stage] = ev.State
	}
	require.Equal(t, State{All: 25, Used: 25}, last[StageFetchingFiles])
	require.Equal(t, State{All: 25, Used: 25}, last[StageFetchingLines])
	require.Equal(t, State{All: 25, Used: 25}, last[StageProgress])
	require.Equal(t, State{All: 2, Used: 2}, last[StageProgress2])
}

type blockingScanner struct {
	*scan.Scanner
	release chan struct{}
}

func (b blockingScanner) EnumerateFunc(ctx context.Context, root string, onFile func(scan.FileEntry)) (scan.Listing, error) {
	<-b.release
	return b.Scanner.EnumerateFunc(ctx, root, onFile)
}

func TestInspectorRejectsConcurrentStart(t *testing.T) {
	project := makeProject(t, "alpha", map[string]int{"a.go": 1})
	scanner := blockingScanner{Scanner: scan.New(framework.ScanRules{}), release: make(chan struct{})}
	tel := &recordingTelemetry{}
	insp := New(scanner, Options{Telemetry: tel})

	run, err := insp.Start(context.Background(), []framework.Project{project})
	require.NoError(t, err)
	require.True(t, insp.Running())

	second, err := insp.Start(context.Background(), []framework.Project{project})
	require.ErrorIs(t, err, framework.ErrRunInProgress)
	require.Nil(t, second)
	require.Contains(t, tel.types(), framework.EventRunRejected)

	close(scanner.release)
	res, err := run.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Projects[0].Info.Volume.Lines)
	require.False(t, insp.Running())

	third, err := insp.Start(context.Background(), []framework.Project{project})
	require.NoError(t, err)
	_, err = third.Wait(context.Background())
	require.NoError(t, err)
}

func TestInspectorRerunIsIdempotent(t *testing.T) {
	project := makeProject(t, "alpha", map[string]int{"a.go": 3, "b.md": 4})
	c := newClock()
	insp := newInspector(Options{Now: c.Now})

	run, err := insp.Start(context.Background(), []framework.Project{project})
	require.NoError(t, err)
	first, err := run.Wait(context.Background())
	require.NoError(t, err)

	run, err = insp.Start(context.Background(), first.Projects)
	require.NoError(t, err)
	second, err := run.Wait(context.Background())
	require.NoError(t, err)

	require.Equal(t, first.Projects[0].Info, second.Projects[0].Info)
	require.True(t, second.Projects[0].LastEdit.After(first.Projects[0].LastEdit))
}

type panickingScanner struct {
	*scan.Scanner
}

func (panickingScanner) Count(context.Context, scan.Listing, func(scan.FileResult)) framework.ProjectInfo {
	panic("disk on fire")
}

// vanishingScanner deletes a file once the tree has been listed, so counting
// cannot open it.
type vanishingScanner struct {
	*scan.Scanner
	remove string
}

func (v vanishingScanner) EnumerateFunc(ctx context.Context, root string, onFile func(scan.FileEntry)) (scan.Listing, error) {
	listing, err := v.Scanner.EnumerateFunc(ctx, root, onFile)
	if err == nil {
		err = os.Remove(filepath.Join(root, v.remove))
	}
	return listing, err
}

func TestInspectorUnopenableFile(t *testing.T) {
	p := makeProject(t, "trio", map[string]int{"a.go": 10, "b.go": 5, "c.txt": 7})
	tel := &recordingTelemetry{}
	insp := New(vanishingScanner{Scanner: scan.New(framework.ScanRules{}), remove: "c.txt"}, Options{Telemetry: tel})

	run, err := insp.Start(context.Background(), []framework.Project{p})
	require.NoError(t, err)
	res := run.Drain(nil)

	info := res.Projects[0].Info
	require.Equal(t, int64(15), info.Volume.Lines)
	require.Equal(t, int64(2), info.Volume.Files)
	require.Equal(t, map[string]framework.CodeVolume{".go": {Lines: 15, Bytes: 75, Files: 2}}, info.ExtensionsVolume)
	require.Len(t, info.Errors, 1)
	require.True(t, strings.HasPrefix(info.Errors[0], "c.txt: "), info.Errors[0])
	require.Contains(t, tel.types(), framework.EventFileError)
}

func TestInspectorRecoversWorkerPanic(t *testing.T) {
	project := makeProject(t, "alpha", map[string]int{"a.go": 1})
	insp := New(panickingScanner{Scanner: scan.New(framework.ScanRules{})}, Options{})

	run, err := insp.Start(context.Background(), []framework.Project{project})
	require.NoError(t, err)
	res, err := run.Wait(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Projects[0].Info.Errors, 1)
	require.Contains(t, res.Projects[0].Info.Errors[0], "disk on fire")
}

func TestInspectorCancelledRunKeepsPreviousInfo(t *testing.T) {
	project := makeProject(t, "alpha", map[string]int{"a.go": 1})
	project.Info.Volume.Lines = 99
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := newInspector(Options{}).Start(ctx, []framework.Project{project})
	require.NoError(t, err)
	res, err := run.Wait(context.Background())
	require.NoError(t, err)

	require.Equal(t, int64(99), res.Projects[0].Info.Volume.Lines)
	require.True(t, res.Projects[0].LastEdit.IsZero())
}

func TestInspectorEmptyList(t *testing.T) {
	run, err := newInspector(Options{}).Start(context.Background(), nil)
	require.NoError(t, err)

	sink := &recordingSink{}
	res := run.Drain(sink)
	require.Empty(t, res.Projects)
	require.Len(t, sink.starts, 1)
	require.Len(t, sink.completes, 1)
}

func TestRunWaitHonorsContext(t *testing.T) {
	project := makeProject(t, "alpha", map[string]int{"a.go": 1})
	scanner := blockingScanner{Scanner: scan.New(framework.ScanRules{}), release: make(chan struct{})}
	defer close(scanner.release)

	run, err := New(scanner, Options{}).Start(context.Background(), []framework.Project{project})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = run.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSinkFuncsAndMultiSink(t *testing.T) {
	var got []string
	sink := MultiSink{
		SinkFuncs{Start: func(id string) { got = append(got, "start:"+id) }},
		nil,
		SinkFuncs{
			Update:   func(s Stage, st State) { got = append(got, s.String()) },
			Complete: func(Result) { got = append(got, "done") },
		},
	}
	sink.OnStart("r1")
	sink.OnUpdate(StageProgress, State{All: 1, Used: 1})
	sink.OnComplete(Result{})
	require.Equal(t, []string{"start:r1", "progress", "done"}, got)
}
