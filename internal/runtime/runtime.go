package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lexcodex/codebase/framework"
	"github.com/lexcodex/codebase/framework/heart"
	"github.com/lexcodex/codebase/framework/inspect"
	"github.com/lexcodex/codebase/framework/scan"
	"github.com/lexcodex/codebase/persistence"
	"github.com/lexcodex/codebase/remote"
)

// Options tune how a Runtime reports.
type Options struct {
	// Stderr receives log output next to the log file. Nil means os.Stderr.
	Stderr io.Writer
	Level  slog.Level
	Now    func() time.Time
}

// Runtime wires the catalog, scanner, inspector, heart, stores and pusher
// shared by the CLI commands and the status server.
type Runtime struct {
	Config    Config
	Logger    *slog.Logger
	Catalog   *Catalog
	Scanner   *scan.Scanner
	Inspector *inspect.Inspector
	Heart     *heart.Heart
	History   *persistence.HistoryStore
	Remote    *remote.Client
	Metrics   *Metrics
	Telemetry framework.Telemetry

	startedAt time.Time
	now       func() time.Time
	closers   []io.Closer

	sinkMu sync.Mutex
	sink   inspect.Sink
}

// New builds a runtime and loads the project list. A corrupt project file
// is an error; a missing one starts an empty list.
func New(ctx context.Context, cfg Config, opts Options) (*Runtime, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	rt := &Runtime{Config: cfg, now: now, startedAt: now()}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	out := stderr
	if cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log: %w", err)
		}
		rt.closers = append(rt.closers, logFile)
		out = io.MultiWriter(stderr, logFile)
	}
	rt.Logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: opts.Level}))

	store, err := persistence.NewFileProjectStore(cfg.DataPath)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if cfg.HistoryPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.HistoryPath), 0o755); err != nil {
			rt.Close()
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	history, err := persistence.NewHistoryStore(cfg.HistoryPath)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open history: %w", err)
	}
	rt.History = history
	rt.closers = append(rt.closers, history)

	rt.Metrics = NewMetrics()
	sinks := []framework.Telemetry{rt.Metrics, framework.LoggerTelemetry{Logger: rt.Logger}}
	if cfg.TelemetryPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.TelemetryPath), 0o755); err != nil {
			rt.Close()
			return nil, err
		}
		jsonTelemetry, err := framework.NewJSONFileTelemetry(cfg.TelemetryPath)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open telemetry: %w", err)
		}
		rt.closers = append(rt.closers, jsonTelemetry)
		sinks = append(sinks, jsonTelemetry)
	}
	rt.Telemetry = framework.MultiplexTelemetry{Sinks: sinks}

	rt.Scanner = scan.New(cfg.Rules)
	rt.Inspector = inspect.New(rt.Scanner, inspect.Options{
		Workers:      cfg.Workers,
		ProgressStep: cfg.ProgressStep,
		Telemetry:    rt.Telemetry,
		Logger:       rt.Logger,
		Now:          now,
	})
	rt.Catalog = NewCatalog(store, rt.Inspector.Running)
	if err := rt.Catalog.Load(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("load projects: %w", err)
	}
	if cfg.ReceiverURL != "" {
		rt.Remote = remote.NewClient(cfg.ReceiverURL, cfg.PushTimeout)
	}
	rt.Heart = heart.New(cfg.Interval, rt.beat, rt.Logger)
	return rt, nil
}

// Close stops the heart and releases files and the history database.
func (r *Runtime) Close() error {
	if r.Heart != nil {
		_ = r.Heart.Stop()
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Uptime returns how long the runtime has existed.
func (r *Runtime) Uptime() time.Duration {
	return r.now().Sub(r.startedAt)
}

// Projects returns a copy of the tracked projects.
func (r *Runtime) Projects() []framework.Project { return r.Catalog.Projects() }

// Summary folds the tracked projects into all, public and private totals.
func (r *Runtime) Summary() framework.Summary { return r.Catalog.Summary() }

// Running reports whether a scan is active.
func (r *Runtime) Running() bool { return r.Inspector.Running() }

// SetProgressSink routes progress of heart-triggered runs to sink.
func (r *Runtime) SetProgressSink(sink inspect.Sink) {
	r.sinkMu.Lock()
	defer r.sinkMu.Unlock()
	r.sink = sink
}

func (r *Runtime) progressSink() inspect.Sink {
	r.sinkMu.Lock()
	defer r.sinkMu.Unlock()
	return r.sink
}

// StartScan snapshots the catalog and starts a run. The caller drains the
// run and hands its result to Complete.
func (r *Runtime) StartScan(ctx context.Context) (*inspect.Run, error) {
	var run *inspect.Run
	err := r.Catalog.Snapshot(func(projects []framework.Project) error {
		var err error
		run, err = r.Inspector.Start(ctx, projects)
		return err
	})
	return run, err
}

// ScanNow runs a scan to completion, reporting progress to sink, then
// applies, records and pushes the result.
func (r *Runtime) ScanNow(ctx context.Context, sink inspect.Sink) (inspect.Result, error) {
	run, err := r.StartScan(ctx)
	if err != nil {
		return inspect.Result{}, err
	}
	res := run.Drain(sink)
	return res, r.Complete(ctx, res)
}

// ScanAsync starts a scan whose completion is handled in the background.
func (r *Runtime) ScanAsync(ctx context.Context) (string, error) {
	run, err := r.StartScan(ctx)
	if err != nil {
		return "", err
	}
	go func() {
		res := run.Drain(r.progressSink())
		if err := r.Complete(ctx, res); err != nil {
			r.Logger.Error("scan completion failed", "run", res.RunID, "err", err)
		}
	}()
	return run.ID(), nil
}

// Complete stores a finished run: the catalog is updated and saved, the run
// is added to history and, when enabled, the projects are pushed. A cancelled
// run is still stored since its finished projects carry fresh statistics.
func (r *Runtime) Complete(ctx context.Context, res inspect.Result) error {
	ctx = context.WithoutCancel(ctx)
	if err := r.Catalog.Apply(ctx, res.Projects); err != nil {
		return fmt.Errorf("save projects: %w", err)
	}
	if err := r.History.Record(ctx, res.RunID, res.StartedAt, res.FinishedAt, res.Projects); err != nil {
		r.Logger.Warn("history record failed", "run", res.RunID, "err", err)
	} else if r.Config.HistoryKeep > 0 {
		if removed, err := r.History.Prune(ctx, r.Config.HistoryKeep); err != nil {
			r.Logger.Warn("history prune failed", "err", err)
		} else if removed > 0 {
			r.Logger.Debug("history pruned", "runs", removed)
		}
	}
	if r.Config.SendData {
		if err := r.Push(ctx); err != nil {
			r.Logger.Warn("push failed", "err", err)
		}
	}
	return nil
}

// Push sends the current project list to the collector.
func (r *Runtime) Push(ctx context.Context) error {
	if r.Remote == nil {
		return errors.New("receiver_url not configured")
	}
	projects := r.Catalog.Projects()
	meta := remote.Metadata{Client: r.Config.ClientName, SentAt: r.now().UTC()}
	if err := r.Remote.UpdateProjects(ctx, meta, framework.Entities(projects)); err != nil {
		return err
	}
	r.Logger.Info("pushed projects", "projects", len(projects), "receiver", r.Config.ReceiverURL)
	return nil
}

// RemoveProject drops a project and its metrics series.
func (r *Runtime) RemoveProject(ctx context.Context, title string) error {
	if err := r.Catalog.Remove(ctx, title); err != nil {
		return err
	}
	r.Metrics.Forget(title)
	return nil
}

// beat is the heart's callback: one scan, run to completion.
func (r *Runtime) beat(ctx context.Context) {
	_, err := r.ScanNow(ctx, r.progressSink())
	switch {
	case err == nil:
	case errors.Is(err, framework.ErrRunInProgress):
		r.Logger.Debug("beat skipped, scan in progress")
	default:
		r.Logger.Error("scan failed", "err", err)
	}
}

// Watch runs the heart until ctx is done. A first beat is triggered right
// away; with Config.Watch set, file changes under project roots trigger
// beats too.
func (r *Runtime) Watch(ctx context.Context) error {
	if err := r.Heart.Start(ctx); err != nil {
		return err
	}
	defer r.Heart.Stop()
	r.Heart.Trigger()

	if r.Config.Watch {
		roots := make([]string, 0, r.Catalog.Len())
		for _, p := range r.Catalog.Projects() {
			roots = append(roots, p.Path)
		}
		w := &heart.Watcher{
			Heart:    r.Heart,
			Debounce: r.Config.WatchDebounce,
			SkipDir:  r.Config.Rules.SkipDir,
			Logger:   r.Logger,
		}
		go func() {
			if err := w.Run(ctx, roots); err != nil {
				r.Logger.Error("file watch stopped", "err", err)
			}
		}()
	}
	<-ctx.Done()
	return nil
}
