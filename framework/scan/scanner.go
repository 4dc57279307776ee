package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lexcodex/codebase/framework"
)

// FileEntry is one eligible file found by Enumerate.
type FileEntry struct {
	Path string // absolute
	Rel  string // slash-separated, relative to the project root
	Ext  string
	Size int64
}

// Listing is the outcome of walking a project tree.
type Listing struct {
	Root   string
	Files  []FileEntry
	Errors []string
}

// FileResult reports the count for a single file.
type FileResult struct {
	File  FileEntry
	Lines int64
	Bytes int64
	Err   error
}

// Scanner computes ProjectInfo for directory trees. It holds no state
// besides its rules and is safe for concurrent use.
type Scanner struct {
	rules framework.ScanRules
}

// New returns a scanner using rules.
func New(rules framework.ScanRules) *Scanner {
	return &Scanner{rules: rules}
}

// Rules returns the scanner's rules.
func (s *Scanner) Rules() framework.ScanRules {
	return s.rules
}

// Enumerate walks root and returns its eligible files in lexical order.
func (s *Scanner) Enumerate(ctx context.Context, root string) (Listing, error) {
	return s.EnumerateFunc(ctx, root, nil)
}

// EnumerateFunc is Enumerate with a callback invoked for every eligible file
// as it is discovered.
func (s *Scanner) EnumerateFunc(ctx context.Context, root string, onFile func(FileEntry)) (Listing, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Listing{Root: root}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Listing{Root: abs}, err
	}
	if !info.IsDir() {
		return Listing{Root: abs}, fmt.Errorf("%w: not a directory", fs.ErrInvalid)
	}
	w := &walker{
		rules:   s.rules,
		onFile:  onFile,
		listing: Listing{Root: abs},
		failed:  make(map[string]struct{}),
	}
	if s.rules.FollowSymlinks {
		w.visited = make(map[string]struct{})
		w.files = make(map[string]struct{})
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			w.visited[real] = struct{}{}
		}
	}
	if err := w.walk(ctx, abs, "", 0); err != nil {
		return w.listing, err
	}
	return w.listing, nil
}

// Count reads every file of listing and folds the results. Unreadable or
// binary files become errors and are left out of the totals. Counting stops
// early when ctx is cancelled.
func (s *Scanner) Count(ctx context.Context, listing Listing, onFile func(FileResult)) framework.ProjectInfo {
	info := framework.NewProjectInfo()
	info.Errors = append(info.Errors, listing.Errors...)
	for _, entry := range listing.Files {
		if err := ctx.Err(); err != nil {
			info.Errors = append(info.Errors, fmt.Sprintf("%s: %v", listing.Root, err))
			return info
		}
		res := countFile(entry)
		if res.Err != nil {
			info.Errors = append(info.Errors, fmt.Sprintf("%s: %s", entry.Rel, reason(res.Err)))
		} else {
			vol := framework.CodeVolume{Lines: res.Lines, Bytes: res.Bytes, Files: 1}
			info.Volume = info.Volume.Add(vol)
			if entry.Ext != "" {
				info.ExtensionsVolume[entry.Ext] = info.ExtensionsVolume[entry.Ext].Add(vol)
			}
		}
		if onFile != nil {
			onFile(res)
		}
	}
	return info
}

// Scan enumerates and counts root. A root that cannot be walked yields an
// empty info carrying a single error.
func (s *Scanner) Scan(ctx context.Context, root string) framework.ProjectInfo {
	listing, err := s.Enumerate(ctx, root)
	if err != nil {
		return Failure(root, err)
	}
	return s.Count(ctx, listing, nil)
}

// Failure builds the info recorded for a project that could not be scanned.
func Failure(root string, err error) framework.ProjectInfo {
	info := framework.NewProjectInfo()
	info.Errors = append(info.Errors, fmt.Sprintf("%s: %s", root, reason(err)))
	return info
}

func countFile(entry FileEntry) FileResult {
	res := FileResult{File: entry}
	f, err := os.Open(entry.Path)
	if err != nil {
		res.Err = err
		return res
	}
	defer f.Close()
	res.Lines, res.Bytes, res.Err = CountLines(f)
	return res
}

// reason drops the path from fs errors since messages are already prefixed.
func reason(err error) string {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err.Error()
	}
	return err.Error()
}
