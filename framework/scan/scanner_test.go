package scan

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/codebase/framework"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func lines(n int) string {
	return strings.Repeat("x\n", n)
}

func TestScanCountsPerExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", lines(10))
	writeFile(t, root, "pkg/util.go", lines(5))
	writeFile(t, root, "README.md", "# title\nbody")
	writeFile(t, root, "Makefile", lines(3))

	info := New(framework.ScanRules{}).Scan(context.Background(), root)

	require.Empty(t, info.Errors)
	require.Equal(t, int64(20), info.Volume.Lines)
	require.Equal(t, int64(4), info.Volume.Files)
	require.Equal(t, framework.CodeVolume{Lines: 15, Bytes: 30, Files: 2}, info.ExtensionsVolume[".go"])
	require.Equal(t, int64(2), info.ExtensionsVolume[".md"].Lines)
	require.NotContains(t, info.ExtensionsVolume, "")

	extLines := framework.SumVolumes(info.ExtensionsVolume).Lines
	require.LessOrEqual(t, extLines, info.Volume.Lines)
	require.Equal(t, info.Volume.Lines-3, extLines)
}

func TestScanUnreadableFile(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced")
	}
	root := t.TempDir()
	writeFile(t, root, "a.go", lines(10))
	writeFile(t, root, "b.go", lines(5))
	locked := writeFile(t, root, "c.txt", lines(7))
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	info := New(framework.ScanRules{}).Scan(context.Background(), root)

	require.Equal(t, int64(15), info.Volume.Lines)
	require.Equal(t, int64(2), info.Volume.Files)
	require.Len(t, info.ExtensionsVolume, 1)
	require.Equal(t, int64(15), info.ExtensionsVolume[".go"].Lines)
	require.Len(t, info.Errors, 1)
	require.True(t, strings.HasPrefix(info.Errors[0], "c.txt: "), info.Errors[0])
}

func TestScanMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "gone")

	info := New(framework.DefaultScanRules()).Scan(context.Background(), root)

	require.True(t, info.Volume.IsZero())
	require.Empty(t, info.ExtensionsVolume)
	require.Len(t, info.Errors, 1)
	require.True(t, strings.HasPrefix(info.Errors[0], root+": "), info.Errors[0])
}

func TestScanRootIsFile(t *testing.T) {
	file := writeFile(t, t.TempDir(), "single.go", lines(1))

	info := New(framework.ScanRules{}).Scan(context.Background(), file)

	require.Len(t, info.Errors, 1)
	require.Contains(t, info.Errors[0], "not a directory")
}

func TestScanBinaryFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "ok.go", lines(2))
	writeFile(t, root, "blob.dat", "abc\x00def\n")

	info := New(framework.ScanRules{}).Scan(context.Background(), root)

	require.Equal(t, int64(2), info.Volume.Lines)
	require.Equal(t, []string{"blob.dat: binary content"}, info.Errors)
}

func TestEnumerateAppliesRules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.go", lines(1))
	writeFile(t, root, "src/app_gen.go", lines(1))
	writeFile(t, root, "node_modules/lib/index.js", lines(1))
	writeFile(t, root, ".git/HEAD", "ref\n")
	writeFile(t, root, "assets/logo.png", "png")
	writeFile(t, root, "big.txt", strings.Repeat("a", 64))

	rules := framework.DefaultScanRules()
	rules.IgnorePatterns = []string{"**/*_gen.go"}
	rules.MaxFileSize = 32

	listing, err := New(rules).Enumerate(context.Background(), root)
	require.NoError(t, err)

	require.Equal(t, []string{"src/app.go"}, rels(listing))
	require.Equal(t, ".go", listing.Files[0].Ext)
}

func TestEnumerateLexicalOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b/z.go", "")
	writeFile(t, root, "a.go", "")
	writeFile(t, root, "b/a.go", "")
	writeFile(t, root, "c.go", "")

	var seen []string
	listing, err := New(framework.ScanRules{}).EnumerateFunc(context.Background(), root, func(f FileEntry) {
		seen = append(seen, f.Rel)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a.go", "b/a.go", "b/z.go", "c.go"}, seen)
	require.Len(t, listing.Files, 4)
}

func TestEnumerateMaxDepth(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "top.go", "")
	writeFile(t, root, "one/mid.go", "")
	writeFile(t, root, "one/two/deep.go", "")

	listing, err := New(framework.ScanRules{MaxDepth: 1}).Enumerate(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, listing.Files, 2)
}

func TestEnumerateSymlinkCycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges")
	}
	root := t.TempDir()
	writeFile(t, root, "pkg/a.go", lines(1))
	require.NoError(t, os.Symlink(root, filepath.Join(root, "pkg", "loop")))

	listing, err := New(framework.ScanRules{}).Enumerate(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, listing.Files, 1)

	listing, err = New(framework.ScanRules{FollowSymlinks: true}).Enumerate(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, listing.Files, 1)
	require.Empty(t, listing.Errors)
}

func TestScanSymlinkedFileCountedOnce(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges")
	}
	root := t.TempDir()
	writeFile(t, root, "a.go", lines(10))
	require.NoError(t, os.Symlink(filepath.Join(root, "a.go"), filepath.Join(root, "b.go")))
	outside := writeFile(t, t.TempDir(), "shared.go", lines(4))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "shared.go")))

	info := New(framework.ScanRules{FollowSymlinks: true}).Scan(context.Background(), root)
	require.Empty(t, info.Errors)
	require.Equal(t, framework.CodeVolume{Lines: 14, Bytes: 28, Files: 2}, info.Volume)
	require.Equal(t, info.Volume, framework.SumVolumes(info.ExtensionsVolume))

	listing, err := New(framework.ScanRules{FollowSymlinks: true}).Enumerate(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, []string{"a.go", "shared.go"}, rels(listing))

	// Without following, only the regular file is seen.
	info = New(framework.ScanRules{}).Scan(context.Background(), root)
	require.Equal(t, framework.CodeVolume{Lines: 10, Bytes: 20, Files: 1}, info.Volume)
}

func TestCountFileGoneAfterEnumerate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", lines(10))
	writeFile(t, root, "b.go", lines(5))
	gone := writeFile(t, root, "c.txt", lines(7))
	s := New(framework.ScanRules{})

	listing, err := s.Enumerate(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, listing.Files, 3)
	require.NoError(t, os.Remove(gone))

	info := s.Count(context.Background(), listing, nil)
	require.Equal(t, framework.CodeVolume{Lines: 15, Bytes: 30, Files: 2}, info.Volume)
	require.Equal(t, map[string]framework.CodeVolume{".go": {Lines: 15, Bytes: 30, Files: 2}}, info.ExtensionsVolume)
	require.Len(t, info.Errors, 1)
	require.True(t, strings.HasPrefix(info.Errors[0], "c.txt: "), info.Errors[0])
}

func rels(l Listing) []string {
	out := make([]string, 0, len(l.Files))
	for _, f := range l.Files {
		out = append(out, f.Rel)
	}
	return out
}

func TestEnumerateCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(framework.ScanRules{}).Enumerate(ctx, root)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCountReportsEveryFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", lines(3))
	writeFile(t, root, "b.go", lines(4))
	s := New(framework.ScanRules{})

	listing, err := s.Enumerate(context.Background(), root)
	require.NoError(t, err)

	var total int64
	calls := 0
	info := s.Count(context.Background(), listing, func(res FileResult) {
		calls++
		total += res.Lines
	})
	require.Equal(t, 2, calls)
	require.Equal(t, info.Volume.Lines, total)
}

func TestScanIsRepeatable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", lines(3))
	writeFile(t, root, "sub/b.py", lines(9))
	s := New(framework.DefaultScanRules())

	first := s.Scan(context.Background(), root)
	second := s.Scan(context.Background(), root)
	require.Equal(t, first, second)
}
