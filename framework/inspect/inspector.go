package inspect

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lexcodex/codebase/framework"
	"github.com/lexcodex/codebase/framework/scan"
)

// Scanner is the part of scan.Scanner the inspector drives.
type Scanner interface {
	EnumerateFunc(ctx context.Context, root string, onFile func(scan.FileEntry)) (scan.Listing, error)
	Count(ctx context.Context, listing scan.Listing, onFile func(scan.FileResult)) framework.ProjectInfo
}

// Options tune an Inspector.
type Options struct {
	// Workers bounds how many projects are walked or counted at once.
	Workers int
	// ProgressStep is the number of files between progress events.
	ProgressStep int
	Telemetry    framework.Telemetry
	Logger       *slog.Logger
	Now          func() time.Time
}

const (
	defaultWorkers      = 4
	defaultProgressStep = 16
)

func (o Options) normalize() Options {
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.ProgressStep <= 0 {
		o.ProgressStep = defaultProgressStep
	}
	if o.Telemetry == nil {
		o.Telemetry = framework.NopTelemetry{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Inspector scans a list of projects in the background, one run at a time.
type Inspector struct {
	scanner Scanner
	opts    Options

	mu     sync.Mutex
	active *Run
}

// New builds an inspector around scanner.
func New(scanner Scanner, opts Options) *Inspector {
	return &Inspector{scanner: scanner, opts: opts.normalize()}
}

// Running reports whether a run is still active.
func (i *Inspector) Running() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.active != nil
}

// Start copies projects and scans them asynchronously. It returns
// framework.ErrRunInProgress while another run is active.
func (i *Inspector) Start(ctx context.Context, projects []framework.Project) (*Run, error) {
	i.mu.Lock()
	if i.active != nil {
		activeID := i.active.ID()
		i.mu.Unlock()
		i.emit(framework.Event{Type: framework.EventRunRejected, RunID: activeID})
		return nil, framework.ErrRunInProgress
	}
	var run *Run
	run = newRun(uuid.NewString(), func() {
		i.mu.Lock()
		if i.active == run {
			i.active = nil
		}
		i.mu.Unlock()
	})
	i.active = run
	i.mu.Unlock()

	go i.execute(ctx, run, framework.CloneProjects(projects))
	return run, nil
}

type updateKind int

const (
	fileFound updateKind = iota
	discoveryDone
	fileCounted
	projectDone
)

func (i *Inspector) execute(ctx context.Context, run *Run, projects []framework.Project) {
	started := i.opts.Now()
	logger := i.opts.Logger.With("run", run.ID())
	logger.Info("inspection started", "projects", len(projects))
	i.emit(framework.Event{
		Type:     framework.EventRunStart,
		RunID:    run.ID(),
		Metadata: map[string]any{"projects": len(projects)},
	})

	updates := make(chan updateKind, 256)
	coordinated := make(chan struct{})
	go func() {
		defer close(coordinated)
		coordinate(run, updates, len(projects), i.opts.ProgressStep)
	}()

	listings := make([]scan.Listing, len(projects))
	failures := make([]error, len(projects))

	var discovery errgroup.Group
	discovery.SetLimit(i.opts.Workers)
	for idx := range projects {
		discovery.Go(func() error {
			listings[idx], failures[idx] = i.discover(ctx, run.ID(), projects[idx], updates)
			return nil
		})
	}
	_ = discovery.Wait()
	updates <- discoveryDone

	var counting errgroup.Group
	counting.SetLimit(i.opts.Workers)
	for idx := range projects {
		counting.Go(func() error {
			i.count(ctx, run.ID(), &projects[idx], listings[idx], failures[idx], updates)
			updates <- projectDone
			return nil
		})
	}
	_ = counting.Wait()
	close(updates)
	<-coordinated

	res := Result{
		RunID:      run.ID(),
		StartedAt:  started,
		FinishedAt: i.opts.Now(),
		Projects:   projects,
	}
	summary := framework.Summarize(projects)
	logger.Info("inspection finished",
		"duration", res.Duration(),
		"lines", summary.All.Volume.Lines,
		"files", summary.All.Volume.Files,
		"errors", len(summary.All.Errors))
	i.emit(framework.Event{
		Type:  framework.EventRunFinish,
		RunID: run.ID(),
		Metadata: map[string]any{
			"projects":    len(projects),
			"lines":       summary.All.Volume.Lines,
			"files":       summary.All.Volume.Files,
			"errors":      len(summary.All.Errors),
			"duration_ms": res.Duration().Milliseconds(),
		},
	})
	run.finish(res)
}

func (i *Inspector) discover(ctx context.Context, runID string, p framework.Project, updates chan<- updateKind) (listing scan.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			i.opts.Logger.Error("discovery panicked", "project", p.Title, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	i.emit(framework.Event{Type: framework.EventProjectStart, RunID: runID, Project: p.Title})
	listing, err = i.scanner.EnumerateFunc(ctx, p.Path, func(scan.FileEntry) {
		updates <- fileFound
	})
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		i.emit(framework.Event{
			Type:    framework.EventProjectMissing,
			RunID:   runID,
			Project: p.Title,
			Message: err.Error(),
		})
	}
	return listing, err
}

// count replaces p's Info and LastEdit. A cancelled run leaves them
// untouched.
func (i *Inspector) count(ctx context.Context, runID string, p *framework.Project, listing scan.Listing, failure error, updates chan<- updateKind) {
	var info framework.ProjectInfo
	func() {
		defer func() {
			if r := recover(); r != nil {
				i.opts.Logger.Error("count panicked", "project", p.Title, "panic", r, "stack", string(debug.Stack()))
				info = framework.NewProjectInfo()
				info.Errors = append(info.Errors, fmt.Sprintf("%s: panic: %v", p.Path, r))
			}
		}()
		if failure != nil {
			info = scan.Failure(p.Path, failure)
			return
		}
		info = i.scanner.Count(ctx, listing, func(res scan.FileResult) {
			if res.Err != nil {
				i.emit(framework.Event{
					Type:    framework.EventFileError,
					RunID:   runID,
					Project: p.Title,
					Message: fmt.Sprintf("%s: %v", res.File.Rel, res.Err),
				})
			}
			updates <- fileCounted
		})
	}()

	if ctx.Err() != nil {
		i.opts.Logger.Warn("project scan cancelled", "project", p.Title)
		return
	}
	p.Info = info
	p.LastEdit = i.opts.Now()
	i.opts.Logger.Debug("project scanned",
		"project", p.Title,
		"lines", info.Volume.Lines,
		"files", info.Volume.Files,
		"errors", len(info.Errors))
	i.emit(framework.Event{
		Type:    framework.EventProjectFinish,
		RunID:   runID,
		Project: p.Title,
		Metadata: map[string]any{
			"lines":  info.Volume.Lines,
			"bytes":  info.Volume.Bytes,
			"files":  info.Volume.Files,
			"errors": len(info.Errors),
		},
	})
}

func (i *Inspector) emit(event framework.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = i.opts.Now()
	}
	i.opts.Telemetry.Emit(event)
}
