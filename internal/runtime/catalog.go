package runtime

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lexcodex/codebase/framework"
	"github.com/lexcodex/codebase/persistence"
)

// ProjectEdit lists the fields to change on a tracked project. Nil fields
// are left alone.
type ProjectEdit struct {
	Title    *string
	Path     *string
	IsPublic *bool
}

// Catalog owns the active project list. Every mutation is saved before it
// returns.
type Catalog struct {
	store persistence.ProjectStore
	// busy reports whether a scan is running; removals and renames are
	// refused meanwhile.
	busy func() bool

	mu       sync.RWMutex
	projects []framework.Project
}

// NewCatalog builds an empty catalog backed by store.
func NewCatalog(store persistence.ProjectStore, busy func() bool) *Catalog {
	if busy == nil {
		busy = func() bool { return false }
	}
	return &Catalog{store: store, busy: busy, projects: []framework.Project{}}
}

// Load replaces the in-memory list with the stored one.
func (c *Catalog) Load(ctx context.Context) error {
	projects, err := c.store.Load(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projects = projects
	return nil
}

// Projects returns a copy of the list in display order.
func (c *Catalog) Projects() []framework.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return framework.CloneProjects(c.projects)
}

// Snapshot calls start with a copy of the projects while holding the catalog
// lock, so Remove and Edit cannot interleave with the start of a run.
func (c *Catalog) Snapshot(start func([]framework.Project) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return start(framework.CloneProjects(c.projects))
}

// Len returns the number of tracked projects.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.projects)
}

// Get returns the project with the given title.
func (c *Catalog) Get(title string) (framework.Project, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx := c.indexOf(title)
	if idx < 0 {
		return framework.Project{}, fmt.Errorf("%w: %s", framework.ErrProjectNotFound, title)
	}
	return c.projects[idx].Clone(), nil
}

// Add validates p and inserts it at the head of the list.
func (c *Catalog) Add(ctx context.Context, p framework.Project) error {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" || strings.TrimSpace(p.Path) == "" {
		return fmt.Errorf("%w: title and path are required", framework.ErrInvalidProject)
	}
	abs, err := filepath.Abs(p.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", framework.ErrInvalidProject, err)
	}
	p.Path = abs
	if p.Info.ExtensionsVolume == nil {
		p.Info = framework.NewProjectInfo()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexOf(p.Title) >= 0 {
		return fmt.Errorf("%w: %s", framework.ErrDuplicateProject, p.Title)
	}
	next := append([]framework.Project{p}, c.projects...)
	if err := c.store.Save(ctx, next); err != nil {
		return err
	}
	c.projects = next
	return nil
}

// Remove drops the project with the given title.
func (c *Catalog) Remove(ctx context.Context, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy() {
		return framework.ErrRunInProgress
	}
	idx := c.indexOf(title)
	if idx < 0 {
		return fmt.Errorf("%w: %s", framework.ErrProjectNotFound, title)
	}
	next := make([]framework.Project, 0, len(c.projects)-1)
	next = append(next, c.projects[:idx]...)
	next = append(next, c.projects[idx+1:]...)
	if err := c.store.Save(ctx, next); err != nil {
		return err
	}
	c.projects = next
	return nil
}

// Edit applies edit to the project named title. Changing the path clears the
// project's statistics. Renames and path changes are refused during a scan.
func (c *Catalog) Edit(ctx context.Context, title string, edit ProjectEdit) (framework.Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if (edit.Title != nil || edit.Path != nil) && c.busy() {
		return framework.Project{}, framework.ErrRunInProgress
	}
	idx := c.indexOf(title)
	if idx < 0 {
		return framework.Project{}, fmt.Errorf("%w: %s", framework.ErrProjectNotFound, title)
	}
	p := c.projects[idx].Clone()
	if edit.Title != nil {
		newTitle := strings.TrimSpace(*edit.Title)
		if newTitle == "" {
			return framework.Project{}, fmt.Errorf("%w: empty title", framework.ErrInvalidProject)
		}
		if newTitle != p.Title && c.indexOf(newTitle) >= 0 {
			return framework.Project{}, fmt.Errorf("%w: %s", framework.ErrDuplicateProject, newTitle)
		}
		p.Title = newTitle
	}
	if edit.Path != nil {
		abs, err := filepath.Abs(strings.TrimSpace(*edit.Path))
		if err != nil || strings.TrimSpace(*edit.Path) == "" {
			return framework.Project{}, fmt.Errorf("%w: bad path %q", framework.ErrInvalidProject, *edit.Path)
		}
		if abs != p.Path {
			p.Path = abs
			p.Info = framework.NewProjectInfo()
			p.LastEdit = time.Time{}
		}
	}
	if edit.IsPublic != nil {
		p.IsPublic = *edit.IsPublic
	}
	next := framework.CloneProjects(c.projects)
	next[idx] = p
	if err := c.store.Save(ctx, next); err != nil {
		return framework.Project{}, err
	}
	c.projects = next
	return p.Clone(), nil
}

// Apply copies scanned statistics into the matching projects, re-sorts the
// list by LastEdit and saves it. Projects removed or renamed since the scan
// started are ignored.
func (c *Catalog) Apply(ctx context.Context, scanned []framework.Project) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := framework.CloneProjects(c.projects)
	for _, s := range scanned {
		idx := indexOf(next, s.Title)
		if idx < 0 || next[idx].Path != s.Path {
			continue
		}
		next[idx].Info = s.Info.Clone()
		next[idx].LastEdit = s.LastEdit
	}
	framework.SortByLastEdit(next)
	if err := c.store.Save(ctx, next); err != nil {
		return err
	}
	c.projects = next
	return nil
}

// Summary folds the current statistics.
func (c *Catalog) Summary() framework.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return framework.Summarize(c.projects)
}

func (c *Catalog) indexOf(title string) int {
	return indexOf(c.projects, title)
}

func indexOf(projects []framework.Project, title string) int {
	for i, p := range projects {
		if p.Title == title {
			return i
		}
	}
	return -1
}
