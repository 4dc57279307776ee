package framework

import "errors"

var (
	// ErrRunInProgress is returned when a scan is requested while another
	// one is still active.
	ErrRunInProgress = errors.New("scan already in progress")
	// ErrProjectNotFound reports an unknown project title.
	ErrProjectNotFound = errors.New("project not found")
	// ErrDuplicateProject reports a title that is already tracked.
	ErrDuplicateProject = errors.New("project already exists")
	// ErrInvalidProject reports a project missing its title or path.
	ErrInvalidProject = errors.New("invalid project")
)
