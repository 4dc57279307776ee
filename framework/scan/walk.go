package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/lexcodex/codebase/framework"
)

type walker struct {
	rules   framework.ScanRules
	onFile  func(FileEntry)
	listing Listing
	// visited holds real paths of entered directories and files holds
	// real paths of listed files; both are nil unless symlinks are followed.
	visited map[string]struct{}
	files   map[string]struct{}
	failed  map[string]struct{}
}

func (w *walker) walk(ctx context.Context, dir, rel string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// ReadDir returns the entries it managed to read alongside the error.
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.fail(rel, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		full := filepath.Join(dir, name)
		childRel := path.Join(rel, name)

		if entry.Type()&fs.ModeSymlink != 0 {
			if !w.rules.FollowSymlinks {
				continue
			}
			target, err := os.Stat(full)
			if err != nil {
				w.fail(childRel, err)
				continue
			}
			if target.IsDir() {
				if err := w.enter(ctx, full, name, childRel, depth); err != nil {
					return err
				}
			} else if target.Mode().IsRegular() {
				w.add(full, childRel, target.Size())
			}
			continue
		}
		if entry.IsDir() {
			if err := w.enter(ctx, full, name, childRel, depth); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			w.fail(childRel, err)
			continue
		}
		w.add(full, childRel, info.Size())
	}
	return nil
}

func (w *walker) enter(ctx context.Context, full, name, rel string, depth int) error {
	if w.rules.SkipDir(name, rel) {
		return nil
	}
	if w.rules.MaxDepth > 0 && depth >= w.rules.MaxDepth {
		return nil
	}
	if w.visited != nil {
		real, err := filepath.EvalSymlinks(full)
		if err != nil {
			w.fail(rel, err)
			return nil
		}
		if _, seen := w.visited[real]; seen {
			return nil
		}
		w.visited[real] = struct{}{}
	}
	return w.walk(ctx, full, rel, depth+1)
}

func (w *walker) add(full, rel string, size int64) {
	if !w.rules.Eligible(rel, size) {
		return
	}
	if w.files != nil {
		real, err := filepath.EvalSymlinks(full)
		if err != nil {
			w.fail(rel, err)
			return
		}
		if _, seen := w.files[real]; seen {
			return
		}
		w.files[real] = struct{}{}
	}
	entry := FileEntry{
		Path: full,
		Rel:  rel,
		Ext:  framework.ExtensionKey(rel),
		Size: size,
	}
	w.listing.Files = append(w.listing.Files, entry)
	if w.onFile != nil {
		w.onFile(entry)
	}
}

func (w *walker) fail(rel string, err error) {
	if rel == "" {
		rel = "."
	}
	if _, dup := w.failed[rel]; dup {
		return
	}
	w.failed[rel] = struct{}{}
	w.listing.Errors = append(w.listing.Errors, fmt.Sprintf("%s: %s", rel, reason(err)))
}
