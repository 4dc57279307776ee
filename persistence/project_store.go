package persistence

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/lexcodex/codebase/framework"
)

// ProjectStore persists the tracked project list.
type ProjectStore interface {
	Load(ctx context.Context) ([]framework.Project, error)
	Save(ctx context.Context, projects []framework.Project) error
}

const projectsVersion = 1

type projectsDocument struct {
	Version  int                 `json:"version"`
	SavedAt  time.Time           `json:"saved_at"`
	Projects []framework.Project `json:"projects"`
}

// FileProjectStore keeps projects in a JSON document on disk.
type FileProjectStore struct {
	file *JSONFile[projectsDocument]
}

// NewFileProjectStore stores projects at path.
func NewFileProjectStore(path string) (*FileProjectStore, error) {
	if path == "" {
		return nil, errors.New("project store path required")
	}
	return &FileProjectStore{file: NewJSONFile[projectsDocument](path)}, nil
}

// Path returns the document location.
func (s *FileProjectStore) Path() string { return s.file.Path() }

// Load returns the stored projects. A missing file yields an empty list.
func (s *FileProjectStore) Load(ctx context.Context) ([]framework.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.file.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []framework.Project{}, nil
		}
		return nil, err
	}
	projects := doc.Projects
	if projects == nil {
		projects = []framework.Project{}
	}
	for i := range projects {
		if projects[i].Info.ExtensionsVolume == nil {
			projects[i].Info.ExtensionsVolume = make(map[string]framework.CodeVolume)
		}
		if projects[i].Info.Errors == nil {
			projects[i].Info.Errors = []string{}
		}
	}
	return projects, nil
}

// Save replaces the stored list.
func (s *FileProjectStore) Save(ctx context.Context, projects []framework.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if projects == nil {
		projects = []framework.Project{}
	}
	return s.file.Save(projectsDocument{
		Version:  projectsVersion,
		SavedAt:  time.Now().UTC(),
		Projects: projects,
	})
}
