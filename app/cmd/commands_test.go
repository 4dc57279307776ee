package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/codebase/framework"
)

type cli struct {
	t      *testing.T
	config string
}

func newCLI(t *testing.T) cli {
	dir := t.TempDir()
	return cli{t: t, config: filepath.Join(dir, "config.yaml")}
}

func (c cli) run(args ...string) (string, error) {
	c.t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", c.config, "--quiet"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (c cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, strings.Join(args, " "))
	return out
}

func sourceTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"main.go":        strings.Repeat("line\n", 10),
		"pkg/helper.go":  strings.Repeat("line\n", 5),
		"docs/README.md": "# docs\n",
	}
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func TestProjectLifecycle(t *testing.T) {
	c := newCLI(t)
	src := sourceTree(t)

	out := c.mustRun("project", "add", "alpha", src, "--public")
	require.Contains(t, out, "added alpha (public)")

	_, err := c.run("project", "add", "alpha", src)
	require.ErrorIs(t, err, framework.ErrDuplicateProject)

	out = c.mustRun("project", "list")
	require.Contains(t, out, "alpha")
	require.Contains(t, out, "never")

	out = c.mustRun("scan", "--plain")
	require.Contains(t, out, "scanned 1 projects: 16 lines, 3 files")

	out = c.mustRun("project", "show", "alpha")
	require.Contains(t, out, "16 lines in 3 files")
	require.Contains(t, out, ".go")
	require.Contains(t, out, "Go")

	out = c.mustRun("summary", "--json")
	var summary framework.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Equal(t, int64(16), summary.All.Volume.Lines)
	require.Equal(t, int64(16), summary.Public.Volume.Lines)
	require.Zero(t, summary.Private.Volume.Lines)

	out = c.mustRun("summary")
	require.Contains(t, out, "Public")
	require.Contains(t, out, "Private")

	out = c.mustRun("history")
	require.Contains(t, out, "16")
	out = c.mustRun("history", "--project", "alpha")
	require.Contains(t, out, "16")

	out = c.mustRun("project", "edit", "alpha", "--public=false", "--title", "beta")
	require.Contains(t, out, "updated beta (private)")

	_, err = c.run("project", "edit", "beta")
	require.Error(t, err)

	c.mustRun("project", "remove", "beta")
	_, err = c.run("project", "show", "beta")
	require.ErrorIs(t, err, framework.ErrProjectNotFound)
}

func TestScanWithoutProjects(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("scan", "--plain")
	require.Contains(t, out, "no projects tracked")
}

func TestConfigCommands(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("config", "get", "workers")
	require.Error(t, err)

	c.mustRun("config", "set", "workers", "8")
	c.mustRun("config", "set", "rules.extensions", "[.go, .rs]")
	require.Equal(t, "8\n", c.mustRun("config", "get", "workers"))
	require.Equal(t, "[.go, .rs]\n", c.mustRun("config", "get", "rules.extensions"))

	_, err = c.run("config", "set", "workers", "[1, 2]")
	require.Error(t, err)

	out := c.mustRun("config", "show")
	require.Contains(t, out, "workers: 8")
	require.Contains(t, out, "interval: 30m0s")
}

func TestPushRequiresReceiver(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("push")
	require.Error(t, err)
}
