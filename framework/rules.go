package framework

import (
	"path"
	"strings"
)

// ScanRules decide which files of a project tree are counted.
type ScanRules struct {
	// IgnoreDirs are directory base names pruned from the walk.
	IgnoreDirs []string `yaml:"ignore_dirs" json:"ignore_dirs"`
	// IgnoreExtensions are extension keys (".png") never counted.
	IgnoreExtensions []string `yaml:"ignore_extensions" json:"ignore_extensions"`
	// Extensions, when non-empty, restricts counting to these keys.
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	// IgnorePatterns are globs matched against the slash-separated path
	// relative to the project root. "**" crosses directories.
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty" json:"ignore_patterns,omitempty"`
	// MaxFileSize skips larger files. Zero disables the limit.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
	// MaxDepth caps directory recursion. Zero disables the cap.
	MaxDepth int `yaml:"max_depth" json:"max_depth"`
	// FollowSymlinks descends into symlinked directories and counts
	// symlinked files.
	FollowSymlinks bool `yaml:"follow_symlinks" json:"follow_symlinks"`
}

// DefaultScanRules returns the rules used when the config leaves them empty.
func DefaultScanRules() ScanRules {
	return ScanRules{
		IgnoreDirs: []string{
			".git", ".hg", ".svn", ".idea", ".vs", ".vscode",
			"node_modules", "vendor", "bin", "obj", "dist", "build",
			"target", "__pycache__", ".venv",
		},
		IgnoreExtensions: []string{
			".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".svg", ".webp",
			".pdf", ".zip", ".gz", ".tar", ".7z", ".rar",
			".exe", ".dll", ".so", ".dylib", ".a", ".o", ".obj", ".pdb", ".class", ".jar",
			".mp3", ".mp4", ".wav", ".ttf", ".otf", ".woff", ".woff2",
			".db", ".sqlite", ".lock",
		},
		MaxFileSize: 4 << 20,
		MaxDepth:    64,
	}
}

// ExtensionKey returns the lowercase extension of name including the dot,
// or "" when the name has none. Dotfiles such as ".gitignore" have no
// extension.
func ExtensionKey(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	idx := strings.LastIndex(base, ".")
	if idx <= 0 || idx == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[idx:])
}

// SkipDir reports whether a directory with the given base name and relative
// path is pruned.
func (r ScanRules) SkipDir(name, rel string) bool {
	for _, d := range r.IgnoreDirs {
		if strings.EqualFold(d, name) {
			return true
		}
	}
	return r.matchesPattern(rel)
}

// Eligible reports whether a file is counted. rel is slash-separated and
// relative to the project root.
func (r ScanRules) Eligible(rel string, size int64) bool {
	if r.MaxFileSize > 0 && size > r.MaxFileSize {
		return false
	}
	ext := ExtensionKey(rel)
	for _, ignored := range r.IgnoreExtensions {
		if strings.EqualFold(ignored, ext) && ext != "" {
			return false
		}
	}
	if len(r.Extensions) > 0 {
		allowed := false
		for _, want := range r.Extensions {
			if strings.EqualFold(want, ext) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return !r.matchesPattern(rel)
}

func (r ScanRules) matchesPattern(rel string) bool {
	if rel == "" || rel == "." {
		return false
	}
	for _, pattern := range r.IgnorePatterns {
		if MatchGlob(pattern, rel) || MatchGlob(pattern, path.Base(rel)) {
			return true
		}
	}
	return false
}
