package framework

import (
	"sort"
	"time"
)

// ProjectInfo holds the statistics computed by one scan of a project.
type ProjectInfo struct {
	Volume           CodeVolume            `json:"volume"`
	ExtensionsVolume map[string]CodeVolume `json:"extensions_volume"`
	Errors           []string              `json:"errors"`
}

// NewProjectInfo returns an empty but valid ProjectInfo.
func NewProjectInfo() ProjectInfo {
	return ProjectInfo{
		ExtensionsVolume: make(map[string]CodeVolume),
		Errors:           []string{},
	}
}

// Clone deep-copies the info so callers can hand it across goroutines.
func (pi ProjectInfo) Clone() ProjectInfo {
	out := ProjectInfo{
		Volume:           pi.Volume,
		ExtensionsVolume: make(map[string]CodeVolume, len(pi.ExtensionsVolume)),
		Errors:           make([]string, len(pi.Errors)),
	}
	for ext, vol := range pi.ExtensionsVolume {
		out.ExtensionsVolume[ext] = vol
	}
	copy(out.Errors, pi.Errors)
	return out
}

// Project is a tracked directory plus its last computed statistics.
type Project struct {
	Title    string      `json:"title"`
	Path     string      `json:"path"`
	IsPublic bool        `json:"is_public"`
	LastEdit time.Time   `json:"last_edit"`
	Info     ProjectInfo `json:"info"`
}

// NewProject builds a project that has not been scanned yet.
func NewProject(title, path string, public bool) Project {
	return Project{
		Title:    title,
		Path:     path,
		IsPublic: public,
		Info:     NewProjectInfo(),
	}
}

// Clone deep-copies the project.
func (p Project) Clone() Project {
	out := p
	out.Info = p.Info.Clone()
	return out
}

// Entity strips local-only fields (path, error text) for publication.
func (p Project) Entity() ProjectEntity {
	ext := make(map[string]CodeVolume, len(p.Info.ExtensionsVolume))
	for k, v := range p.Info.ExtensionsVolume {
		ext[k] = v
	}
	return ProjectEntity{
		Title:            p.Title,
		IsPublic:         p.IsPublic,
		LastEdit:         p.LastEdit,
		Volume:           p.Info.Volume,
		ExtensionsVolume: ext,
		ErrorCount:       len(p.Info.Errors),
	}
}

// ProjectEntity is the outward shape of a project sent to collectors and
// served over HTTP.
type ProjectEntity struct {
	Title            string                `json:"title"`
	IsPublic         bool                  `json:"is_public"`
	LastEdit         time.Time             `json:"last_edit"`
	Volume           CodeVolume            `json:"volume"`
	ExtensionsVolume map[string]CodeVolume `json:"extensions_volume"`
	ErrorCount       int                   `json:"error_count"`
}

// Entities converts a list of projects.
func Entities(projects []Project) []ProjectEntity {
	out := make([]ProjectEntity, 0, len(projects))
	for _, p := range projects {
		out = append(out, p.Entity())
	}
	return out
}

// CloneProjects deep-copies a project list.
func CloneProjects(projects []Project) []Project {
	out := make([]Project, len(projects))
	for i, p := range projects {
		out[i] = p.Clone()
	}
	return out
}

// SortByLastEdit orders projects most recently scanned first. Ties keep their
// relative order.
func SortByLastEdit(projects []Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].LastEdit.After(projects[j].LastEdit)
	})
}
