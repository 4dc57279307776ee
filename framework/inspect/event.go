package inspect

import (
	"time"

	"github.com/lexcodex/codebase/framework"
)

// Stage names a progress counter reported during a run.
type Stage int

const (
	// StageFetchingFiles counts files discovered while walking project trees.
	StageFetchingFiles Stage = iota
	// StageFetchingLines is reported once discovery ends and line counting
	// begins.
	StageFetchingLines
	// StageProgress counts files whose lines have been counted.
	StageProgress
	// StageProgress2 counts projects that finished.
	StageProgress2
)

func (s Stage) String() string {
	switch s {
	case StageFetchingFiles:
		return "fetching_files"
	case StageFetchingLines:
		return "fetching_lines"
	case StageProgress:
		return "progress"
	case StageProgress2:
		return "progress2"
	default:
		return "unknown"
	}
}

// State is a stage counter. Used never exceeds All.
type State struct {
	All  int `json:"all"`
	Used int `json:"used"`
}

// EventKind distinguishes the start marker from stage updates.
type EventKind int

const (
	EventStart EventKind = iota
	EventStage
)

// Event is one item of a run's progress stream.
type Event struct {
	Kind  EventKind
	Stage Stage
	State State
}

// Result is the outcome of a run. Projects keep the order they were given
// to Start.
type Result struct {
	RunID      string              `json:"run_id"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Projects   []framework.Project `json:"projects"`
}

// Duration returns how long the run took.
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
